package services

import (
	"context"
	"testing"

	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/repositories"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func userRef(userID int) models.ParticipantRef {
	return models.ParticipantRef{Type: models.ParticipantTypeUser, ID: userID}
}

func TestRegisterChargesEntryFee(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 1000)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 500, 8)

	p, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	require.NoError(t, err)
	require.NotNil(t, p.UserID)
	assert.Equal(t, player.ID, *p.UserID)

	assert.Equal(t, int64(500), env.getWalletByUser(player.ID).Balance)
	assert.Equal(t, 1, env.getTournament(tournament.ID).CurrentParticipants)
	assert.Equal(t, 1, env.notifier.count(models.EventParticipantRegistered))
}

func TestRegisterFreeTournamentSkipsWallet(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 0)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 0, 8)

	_, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	require.NoError(t, err)
	assert.Equal(t, 0, env.transactionCount())
}

func TestRegisterDuplicate(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 1000)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 0, 8)

	_, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	require.NoError(t, err)

	_, err = env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	assert.ErrorIs(t, err, ErrAlreadyRegistered)
	assert.Equal(t, 1, env.getTournament(tournament.ID).CurrentParticipants)
}

func TestRegisterWhenClosed(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 1000)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationClosed, 0, 8)

	_, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestRegisterFullTournamentRollsBackFee(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	p1 := env.seedUser(models.RolePlayer, 1000)
	p2 := env.seedUser(models.RolePlayer, 1000)
	p3 := env.seedUser(models.RolePlayer, 1000)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 500, 2)

	_, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(p1.ID), p1.ID, models.RolePlayer)
	require.NoError(t, err)
	_, err = env.registrationSvc.Register(context.Background(), tournament.ID, userRef(p2.ID), p2.ID, models.RolePlayer)
	require.NoError(t, err)

	// Third registration passes the fee debit but fails the guarded
	// counter increment; the whole transaction must unwind, including the
	// debit.
	_, err = env.registrationSvc.Register(context.Background(), tournament.ID, userRef(p3.ID), p3.ID, models.RolePlayer)
	assert.ErrorIs(t, err, ErrTournamentFull)
	assert.Equal(t, int64(1000), env.getWalletByUser(p3.ID).Balance)
	assert.Equal(t, 2, env.getTournament(tournament.ID).CurrentParticipants)

	participants, listErr := env.participants.ListByTournament(context.Background(), tournament.ID, false)
	require.NoError(t, listErr)
	assert.Len(t, participants, 2)
}

func TestRegisterInsufficientFunds(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 499)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 500, 8)

	_, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	assert.ErrorIs(t, err, ErrInsufficientFunds)
	assert.Equal(t, 0, env.getTournament(tournament.ID).CurrentParticipants)
}

func TestRegisterForAnotherUserForbidden(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 1000)
	other := env.seedUser(models.RolePlayer, 1000)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 0, 8)

	_, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), other.ID, models.RolePlayer)
	assert.ErrorIs(t, err, ErrForbidden)
}

func TestRegisterTeamRequiresCaptain(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	captain := env.seedUser(models.RolePlayer, 1000)
	member := env.seedUser(models.RolePlayer, 1000)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 0, 8)

	team := &models.Team{Name: "Team Alpha", CaptainID: captain.ID}
	require.NoError(t, env.teams.Create(context.Background(), team))

	ref := models.ParticipantRef{Type: models.ParticipantTypeTeam, ID: team.ID}
	_, err := env.registrationSvc.Register(context.Background(), tournament.ID, ref, member.ID, models.RolePlayer)
	assert.ErrorIs(t, err, ErrForbidden)

	p, err := env.registrationSvc.Register(context.Background(), tournament.ID, ref, captain.ID, models.RolePlayer)
	require.NoError(t, err)
	require.NotNil(t, p.TeamID)
	assert.Equal(t, team.ID, *p.TeamID)
}

func TestWithdrawRefundsEntryFee(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 1000)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 500, 8)

	p, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	require.NoError(t, err)
	require.Equal(t, int64(500), env.getWalletByUser(player.ID).Balance)

	err = env.registrationSvc.Withdraw(context.Background(), tournament.ID, p.ID, player.ID, models.RolePlayer)
	require.NoError(t, err)

	assert.Equal(t, int64(1000), env.getWalletByUser(player.ID).Balance)
	assert.Equal(t, 0, env.getTournament(tournament.ID).CurrentParticipants)

	// The refund references the original entry fee row.
	refund, err := env.transactions.FindByIdempotencyKey(context.Background(), nil,
		withdrawRefundKey(tournament.ID, p.ID))
	require.NoError(t, err)
	require.NotNil(t, refund.ReferenceTxnID)

	// The registration row is gone, so a second withdrawal has nothing to
	// act on.
	err = env.registrationSvc.Withdraw(context.Background(), tournament.ID, p.ID, player.ID, models.RolePlayer)
	assert.ErrorIs(t, err, repositories.ErrParticipantNotFound)
}

func TestReregisterAfterWithdrawChargesAgain(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 1000)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 500, 8)

	p, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	require.NoError(t, err)
	require.NoError(t, env.registrationSvc.Withdraw(context.Background(), tournament.ID, p.ID, player.ID, models.RolePlayer))
	require.Equal(t, int64(1000), env.getWalletByUser(player.ID).Balance)

	// The new registration is a new row with its own fee key, so the old
	// refunded debit is not replayed.
	p2, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	require.NoError(t, err)
	assert.NotEqual(t, p.ID, p2.ID)
	assert.Equal(t, int64(500), env.getWalletByUser(player.ID).Balance)
	assert.Equal(t, 3, env.transactionCount())

	// And a later cancellation refunds the second fee cleanly.
	require.NoError(t, env.tournaments.UpdateStatus(context.Background(), nil, tournament.ID, models.TournamentStatusRegistrationClosed))
	require.NoError(t, env.settlementSvc.CancelAndRefund(context.Background(), tournament.ID, organizer.ID, models.RoleOrganizer, nil))
	assert.Equal(t, int64(1000), env.getWalletByUser(player.ID).Balance)
}

func TestWithdrawAfterRegistrationCloses(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 1000)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 0, 8)

	p, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	require.NoError(t, err)

	require.NoError(t, env.tournaments.UpdateStatus(context.Background(), nil, tournament.ID, models.TournamentStatusRegistrationClosed))

	err = env.registrationSvc.Withdraw(context.Background(), tournament.ID, p.ID, player.ID, models.RolePlayer)
	assert.ErrorIs(t, err, ErrRegistrationClosed)
}

func TestCheckIn(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 0)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 0, 8)

	p, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	require.NoError(t, err)

	require.NoError(t, env.registrationSvc.CheckIn(context.Background(), tournament.ID, p.ID, player.ID, models.RolePlayer))

	stored, err := env.participants.FindByID(context.Background(), nil, p.ID)
	require.NoError(t, err)
	assert.True(t, stored.CheckedIn)
}

func TestAssignSeedOrganizerOnly(t *testing.T) {
	env := newTestEnv()
	organizer := env.seedUser(models.RoleOrganizer, 0)
	player := env.seedUser(models.RolePlayer, 0)
	tournament := env.seedTournament(organizer.ID, models.TournamentStatusRegistrationOpen, 0, 8)

	p, err := env.registrationSvc.Register(context.Background(), tournament.ID, userRef(player.ID), player.ID, models.RolePlayer)
	require.NoError(t, err)

	seed := 1
	err = env.registrationSvc.AssignSeed(context.Background(), tournament.ID, p.ID, &seed, player.ID, models.RolePlayer)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, env.registrationSvc.AssignSeed(context.Background(), tournament.ID, p.ID, &seed, organizer.ID, models.RoleOrganizer))

	stored, err := env.participants.FindByID(context.Background(), nil, p.ID)
	require.NoError(t, err)
	require.NotNil(t, stored.Seed)
	assert.Equal(t, 1, *stored.Seed)
}
