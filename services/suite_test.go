package services

import (
	"fmt"
	"time"

	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/repositories"
)

// testEnv wires every service against the shared in-memory store.
type testEnv struct {
	store    *fakeStore
	notifier *recordingNotifier

	users        *fakeUserRepo
	teams        *fakeTeamRepo
	tournaments  *fakeTournamentRepo
	participants *fakeParticipantRepo
	matches      *fakeMatchRepo
	disputes     *fakeDisputeRepo
	wallets      *fakeWalletRepo
	transactions *fakeTransactionRepo

	walletSvc       *WalletService
	authSvc         *AuthService
	tournamentSvc   *TournamentService
	registrationSvc *RegistrationService
	matchSvc        *MatchService
	disputeSvc      *DisputeService
	settlementSvc   *SettlementService
}

func newTestEnv() *testEnv {
	store := newFakeStore()
	notifier := &recordingNotifier{}
	logger := testLogger()
	txManager := &fakeTxManager{store: store}

	env := &testEnv{
		store:        store,
		notifier:     notifier,
		users:        &fakeUserRepo{s: store},
		teams:        &fakeTeamRepo{s: store},
		tournaments:  &fakeTournamentRepo{s: store},
		participants: &fakeParticipantRepo{s: store},
		matches:      &fakeMatchRepo{s: store},
		disputes:     &fakeDisputeRepo{s: store},
		wallets:      &fakeWalletRepo{s: store},
		transactions: &fakeTransactionRepo{s: store},
	}

	env.walletSvc = NewWalletService(env.wallets, env.transactions, txManager, logger)
	env.authSvc = NewAuthService(env.users, env.walletSvc, txManager, "test-secret", logger)
	env.tournamentSvc = NewTournamentService(env.tournaments, env.participants, env.matches, txManager, notifier, logger)
	env.registrationSvc = NewRegistrationService(
		env.tournaments, env.participants, env.teams, env.transactions, env.wallets,
		env.walletSvc, txManager, notifier, logger)
	env.matchSvc = NewMatchService(
		env.tournaments, env.matches, env.participants, env.teams, txManager, notifier, logger)
	env.disputeSvc = NewDisputeService(
		env.tournaments, env.matches, env.disputes, env.matchSvc, txManager, notifier, logger)
	env.settlementSvc = NewSettlementService(
		env.tournaments, env.participants, env.teams, env.transactions, env.wallets,
		env.walletSvc, env.matchSvc, txManager, notifier, logger)
	return env
}

func (e *testEnv) seedUser(role models.UserRole, balance int64) *models.User {
	e.store.mu.Lock()
	id := e.store.nextID()
	user := models.User{
		ID:        id,
		FirstName: "Test",
		LastName:  "User",
		Email:     fmt.Sprintf("user%d@example.com", id),
		Role:      role,
		CreatedAt: time.Now(),
	}
	e.store.users[id] = user

	walletID := e.store.nextID()
	e.store.wallets[walletID] = models.Wallet{
		ID:       walletID,
		UserID:   id,
		Balance:  balance,
		Currency: "USD",
	}
	e.store.mu.Unlock()
	return &user
}

func (e *testEnv) seedTournament(organizerID int, status models.TournamentStatus, entryFee int64, maxParticipants int) *models.Tournament {
	e.store.mu.Lock()
	id := e.store.nextID()
	t := models.Tournament{
		ID:              id,
		Name:            fmt.Sprintf("Tournament %d", id),
		GameID:          1,
		OrganizerID:     organizerID,
		Status:          status,
		EntryFee:        entryFee,
		PrizePool:       0,
		MaxParticipants: maxParticipants,
		BracketType:     "single_elimination",
		StartDate:       time.Now().Add(24 * time.Hour),
		CreatedAt:       time.Now(),
	}
	e.store.tournaments[id] = t
	e.store.mu.Unlock()
	return &t
}

func (e *testEnv) seedParticipant(tournamentID, userID int) *models.Participant {
	e.store.mu.Lock()
	id := e.store.nextID()
	p := models.Participant{
		ID:           id,
		TournamentID: tournamentID,
		UserID:       &userID,
		RegisteredAt: time.Now(),
	}
	e.store.participants[id] = p
	t := e.store.tournaments[tournamentID]
	t.CurrentParticipants++
	e.store.tournaments[tournamentID] = t
	e.store.mu.Unlock()
	return &p
}

func (e *testEnv) seedMatch(tournamentID int, p1, p2 *int, status models.MatchStatus) *models.Match {
	e.store.mu.Lock()
	id := e.store.nextID()
	m := models.Match{
		ID:             id,
		TournamentID:   tournamentID,
		Round:          1,
		Participant1ID: p1,
		Participant2ID: p2,
		Status:         status,
		CreatedAt:      time.Now(),
	}
	e.store.matches[id] = m
	e.store.mu.Unlock()
	return &m
}

func (e *testEnv) getTournament(id int) models.Tournament {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return e.store.tournaments[id]
}

func (e *testEnv) getMatch(id int) models.Match {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return e.store.matches[id]
}

func (e *testEnv) getWalletByUser(userID int) models.Wallet {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	for _, w := range e.store.wallets {
		if w.UserID == userID {
			return w
		}
	}
	return models.Wallet{}
}

func (e *testEnv) transactionCount() int {
	e.store.mu.Lock()
	defer e.store.mu.Unlock()
	return len(e.store.transactions)
}

var _ repositories.TxManager = (*fakeTxManager)(nil)
