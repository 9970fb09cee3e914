package services

import (
	"context"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/bracketworks/arena/models"
	"github.com/bracketworks/arena/repositories"
)

// fakeStore is a shared in-memory database for the fake repositories. All
// fakes operate on value maps and hand out copies, so a rolled back
// transaction can restore a snapshot without aliasing surprises.
type fakeStore struct {
	mu sync.Mutex

	users        map[int]models.User
	teams        map[int]models.Team
	tournaments  map[int]models.Tournament
	participants map[int]models.Participant
	matches      map[int]models.Match
	disputes     map[int]models.DisputeTicket
	wallets      map[int]models.Wallet
	transactions map[int]models.Transaction

	lastID int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		users:        make(map[int]models.User),
		teams:        make(map[int]models.Team),
		tournaments:  make(map[int]models.Tournament),
		participants: make(map[int]models.Participant),
		matches:      make(map[int]models.Match),
		disputes:     make(map[int]models.DisputeTicket),
		wallets:      make(map[int]models.Wallet),
		transactions: make(map[int]models.Transaction),
	}
}

func (s *fakeStore) nextID() int {
	s.lastID++
	return s.lastID
}

type storeSnapshot struct {
	users        map[int]models.User
	teams        map[int]models.Team
	tournaments  map[int]models.Tournament
	participants map[int]models.Participant
	matches      map[int]models.Match
	disputes     map[int]models.DisputeTicket
	wallets      map[int]models.Wallet
	transactions map[int]models.Transaction
	lastID       int
}

func copyMap[K comparable, V any](src map[K]V) map[K]V {
	dst := make(map[K]V, len(src))
	for k, v := range src {
		dst[k] = v
	}
	return dst
}

func (s *fakeStore) snapshot() storeSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return storeSnapshot{
		users:        copyMap(s.users),
		teams:        copyMap(s.teams),
		tournaments:  copyMap(s.tournaments),
		participants: copyMap(s.participants),
		matches:      copyMap(s.matches),
		disputes:     copyMap(s.disputes),
		wallets:      copyMap(s.wallets),
		transactions: copyMap(s.transactions),
		lastID:       s.lastID,
	}
}

func (s *fakeStore) restore(snap storeSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users = snap.users
	s.teams = snap.teams
	s.tournaments = snap.tournaments
	s.participants = snap.participants
	s.matches = snap.matches
	s.disputes = snap.disputes
	s.wallets = snap.wallets
	s.transactions = snap.transactions
	s.lastID = snap.lastID
}

// fakeTxManager serializes transactions and rolls the store back to a
// snapshot when fn fails, mirroring the all-or-nothing semantics of the
// real manager.
type fakeTxManager struct {
	store *fakeStore
	txMu  sync.Mutex
}

func (m *fakeTxManager) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	snap := m.store.snapshot()
	if err := fn(nil); err != nil {
		m.store.restore(snap)
		return err
	}
	return nil
}

// recordingNotifier captures published events for assertions.
type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Publish(tournamentID int, event string, payload interface{}) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, event)
}

func (n *recordingNotifier) count(event string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	c := 0
	for _, e := range n.events {
		if e == event {
			c++
		}
	}
	return c
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeUserRepo struct{ s *fakeStore }

func (r *fakeUserRepo) Create(ctx context.Context, exec repositories.SQLExecutor, u *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.users {
		if existing.Email == u.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	u.ID = r.s.nextID()
	u.CreatedAt = time.Now()
	r.s.users[u.ID] = *u
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	return &u, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, u := range r.s.users {
		if u.Email == email {
			return &u, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

type fakeTeamRepo struct{ s *fakeStore }

func (r *fakeTeamRepo) Create(ctx context.Context, t *models.Team) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.teams {
		if existing.Name == t.Name {
			return repositories.ErrTeamNameConflict
		}
	}
	t.ID = r.s.nextID()
	t.CreatedAt = time.Now()
	r.s.teams[t.ID] = *t
	return nil
}

func (r *fakeTeamRepo) GetByID(ctx context.Context, id int) (*models.Team, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.teams[id]
	if !ok {
		return nil, repositories.ErrTeamNotFound
	}
	return &t, nil
}

type fakeTournamentRepo struct{ s *fakeStore }

func (r *fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.tournaments {
		if existing.OrganizerID == t.OrganizerID && existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = r.s.nextID()
	t.CreatedAt = time.Now()
	r.s.tournaments[t.ID] = *t
	return nil
}

func (r *fakeTournamentRepo) get(id int) (*models.Tournament, error) {
	t, ok := r.s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	return &t, nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r *fakeTournamentRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r *fakeTournamentRepo) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]models.Tournament, 0)
	for _, t := range r.s.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.GameID != nil && t.GameID != *filter.GameID {
			continue
		}
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) Update(ctx context.Context, t *models.Tournament) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, err := r.get(t.ID)
	if err != nil {
		return err
	}
	existing.Name = t.Name
	existing.MaxParticipants = t.MaxParticipants
	existing.StartDate = t.StartDate
	existing.Settings = t.Settings
	r.s.tournaments[t.ID] = *existing
	return nil
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, err := r.get(id)
	if err != nil {
		return err
	}
	t.Status = status
	r.s.tournaments[id] = *t
	return nil
}

func (r *fakeTournamentRepo) MarkCompleted(ctx context.Context, exec repositories.SQLExecutor, id int, endDate time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, err := r.get(id)
	if err != nil {
		return err
	}
	t.Status = models.TournamentStatusCompleted
	if t.EndDate == nil {
		t.EndDate = &endDate
	}
	r.s.tournaments[id] = *t
	return nil
}

func (r *fakeTournamentRepo) MarkCanceled(ctx context.Context, exec repositories.SQLExecutor, id int, reason *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, err := r.get(id)
	if err != nil {
		return err
	}
	t.Status = models.TournamentStatusCanceled
	t.CancelReason = reason
	r.s.tournaments[id] = *t
	return nil
}

func (r *fakeTournamentRepo) IncrementParticipants(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, err := r.get(id)
	if err != nil {
		return err
	}
	if t.CurrentParticipants >= t.MaxParticipants {
		return repositories.ErrTournamentCapacityFull
	}
	t.CurrentParticipants++
	r.s.tournaments[id] = *t
	return nil
}

func (r *fakeTournamentRepo) DecrementParticipants(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, err := r.get(id)
	if err != nil {
		return err
	}
	if t.CurrentParticipants <= 0 {
		return repositories.ErrTournamentCountZero
	}
	t.CurrentParticipants--
	r.s.tournaments[id] = *t
	return nil
}

func (r *fakeTournamentRepo) ListForAutoStatusUpdate(ctx context.Context, now time.Time) ([]*models.Tournament, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Tournament, 0)
	for _, t := range r.s.tournaments {
		if t.Status == models.TournamentStatusRegistrationOpen && !t.StartDate.After(now) {
			copied := t
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (r *fakeTournamentRepo) Delete(ctx context.Context, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tournaments[id]; !ok {
		return repositories.ErrTournamentNotFound
	}
	delete(r.s.tournaments, id)
	return nil
}

type fakeParticipantRepo struct{ s *fakeStore }

func (r *fakeParticipantRepo) Create(ctx context.Context, exec repositories.SQLExecutor, p *models.Participant) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if (p.UserID == nil) == (p.TeamID == nil) {
		return repositories.ErrParticipantTypeViolation
	}
	for _, existing := range r.s.participants {
		if existing.TournamentID != p.TournamentID {
			continue
		}
		if p.UserID != nil && existing.UserID != nil && *existing.UserID == *p.UserID {
			return repositories.ErrParticipantConflict
		}
		if p.TeamID != nil && existing.TeamID != nil && *existing.TeamID == *p.TeamID {
			return repositories.ErrParticipantConflict
		}
	}
	p.ID = r.s.nextID()
	p.RegisteredAt = time.Now()
	r.s.participants[p.ID] = *p
	return nil
}

func (r *fakeParticipantRepo) FindByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	return &p, nil
}

func (r *fakeParticipantRepo) FindByRef(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, ref models.ParticipantRef) (*models.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, p := range r.s.participants {
		if p.TournamentID != tournamentID {
			continue
		}
		if ref.Type == models.ParticipantTypeUser && p.UserID != nil && *p.UserID == ref.ID {
			copied := p
			return &copied, nil
		}
		if ref.Type == models.ParticipantTypeTeam && p.TeamID != nil && *p.TeamID == ref.ID {
			copied := p
			return &copied, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) ListByTournament(ctx context.Context, tournamentID int, includeDetails bool) ([]*models.Participant, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Participant, 0)
	for _, p := range r.s.participants {
		if p.TournamentID == tournamentID {
			copied := p
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeParticipantRepo) SetCheckedIn(ctx context.Context, id int, checkedIn bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.CheckedIn = checkedIn
	r.s.participants[id] = p
	return nil
}

func (r *fakeParticipantRepo) SetSeed(ctx context.Context, id int, seed *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.Seed = seed
	r.s.participants[id] = p
	return nil
}

func (r *fakeParticipantRepo) Delete(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.participants[id]; !ok {
		return repositories.ErrParticipantNotFound
	}
	delete(r.s.participants, id)
	return nil
}

func (r *fakeParticipantRepo) CountByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	count := 0
	for _, p := range r.s.participants {
		if p.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

type fakeMatchRepo struct{ s *fakeStore }

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m.ID = r.s.nextID()
	m.CreatedAt = time.Now()
	r.s.matches[m.ID] = *m
	return nil
}

func (r *fakeMatchRepo) get(id int) (*models.Match, error) {
	m, ok := r.s.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	return &m, nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r *fakeMatchRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int, round *int, status *models.MatchStatus) ([]*models.Match, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.s.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if round != nil && m.Round != *round {
			continue
		}
		if status != nil && m.Status != *status {
			continue
		}
		copied := m
		out = append(out, &copied)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].OrderInRound < out[j].OrderInRound
	})
	return out, nil
}

func (r *fakeMatchRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.MatchStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, err := r.get(id)
	if err != nil {
		return err
	}
	m.Status = status
	r.s.matches[id] = *m
	return nil
}

func (r *fakeMatchRepo) RecordResult(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, err := r.get(m.ID)
	if err != nil {
		return err
	}
	existing.Score1 = m.Score1
	existing.Score2 = m.Score2
	existing.WinnerParticipantID = m.WinnerParticipantID
	existing.Status = m.Status
	existing.ProofURL = m.ProofURL
	existing.SubmittedByUserID = m.SubmittedByUserID
	existing.ActualEndTime = m.ActualEndTime
	r.s.matches[m.ID] = *existing
	return nil
}

func (r *fakeMatchRepo) ApplyResolution(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, err := r.get(m.ID); err != nil {
		return err
	}
	r.s.matches[m.ID] = *m
	return nil
}

func (r *fakeMatchRepo) SetConfirmed(ctx context.Context, exec repositories.SQLExecutor, id int, confirmed bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, err := r.get(id)
	if err != nil {
		return err
	}
	m.IsConfirmed = confirmed
	r.s.matches[id] = *m
	return nil
}

func (r *fakeMatchRepo) FillSlot(ctx context.Context, exec repositories.SQLExecutor, matchID, slot, participantID int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, err := r.get(matchID)
	if err != nil {
		return err
	}
	target := &m.Participant1ID
	if slot == 2 {
		target = &m.Participant2ID
	}
	if *target != nil && **target != participantID {
		return repositories.ErrMatchSlotOccupied
	}
	*target = &participantID
	r.s.matches[matchID] = *m
	return nil
}

func (r *fakeMatchRepo) SetWinnerAdvanced(ctx context.Context, exec repositories.SQLExecutor, id int, advanced bool) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, err := r.get(id)
	if err != nil {
		return err
	}
	m.WinnerAdvanced = advanced
	r.s.matches[id] = *m
	return nil
}

func (r *fakeMatchRepo) UpdateNextMatchLinks(ctx context.Context, exec repositories.SQLExecutor, id int, nextMatchID, nextMatchSlot, nextLoserID, nextLoserSlot *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	m, err := r.get(id)
	if err != nil {
		return err
	}
	m.NextMatchID = nextMatchID
	m.NextMatchSlot = nextMatchSlot
	m.NextMatchLoserID = nextLoserID
	m.NextMatchLoserSlot = nextLoserSlot
	r.s.matches[id] = *m
	return nil
}

type fakeDisputeRepo struct{ s *fakeStore }

func (r *fakeDisputeRepo) Create(ctx context.Context, exec repositories.SQLExecutor, d *models.DisputeTicket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.disputes {
		if existing.MatchID == d.MatchID && existing.Status.IsResolvable() {
			return repositories.ErrDisputeAlreadyOpen
		}
	}
	d.ID = r.s.nextID()
	d.CreatedAt = time.Now()
	r.s.disputes[d.ID] = *d
	return nil
}

func (r *fakeDisputeRepo) get(id int) (*models.DisputeTicket, error) {
	d, ok := r.s.disputes[id]
	if !ok {
		return nil, repositories.ErrDisputeNotFound
	}
	return &d, nil
}

func (r *fakeDisputeRepo) GetByID(ctx context.Context, id int) (*models.DisputeTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r *fakeDisputeRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.DisputeTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.get(id)
}

func (r *fakeDisputeRepo) FindOpenByMatch(ctx context.Context, exec repositories.SQLExecutor, matchID int) (*models.DisputeTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, d := range r.s.disputes {
		if d.MatchID == matchID && d.Status.IsResolvable() {
			copied := d
			return &copied, nil
		}
	}
	return nil, repositories.ErrDisputeNotFound
}

func (r *fakeDisputeRepo) ListByStatus(ctx context.Context, status models.DisputeStatus, limit, offset int) ([]*models.DisputeTicket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.DisputeTicket, 0)
	for _, d := range r.s.disputes {
		if d.Status == status {
			copied := d
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeDisputeRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.DisputeStatus, moderatorUserID *int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, err := r.get(id)
	if err != nil {
		return err
	}
	d.Status = status
	if moderatorUserID != nil {
		d.ModeratorUserID = moderatorUserID
	}
	r.s.disputes[id] = *d
	return nil
}

func (r *fakeDisputeRepo) Resolve(ctx context.Context, exec repositories.SQLExecutor, id int, status models.DisputeStatus, details *string, moderatorUserID int, resolvedAt time.Time) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	d, err := r.get(id)
	if err != nil {
		return err
	}
	d.Status = status
	d.ResolutionDetails = details
	d.ModeratorUserID = &moderatorUserID
	d.ResolvedAt = &resolvedAt
	r.s.disputes[id] = *d
	return nil
}

type fakeWalletRepo struct{ s *fakeStore }

func (r *fakeWalletRepo) Create(ctx context.Context, exec repositories.SQLExecutor, w *models.Wallet) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.wallets {
		if existing.UserID == w.UserID {
			return repositories.ErrWalletAlreadyExists
		}
	}
	w.ID = r.s.nextID()
	w.CreatedAt = time.Now()
	w.UpdatedAt = w.CreatedAt
	r.s.wallets[w.ID] = *w
	return nil
}

func (r *fakeWalletRepo) GetByID(ctx context.Context, id int) (*models.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[id]
	if !ok {
		return nil, repositories.ErrWalletNotFound
	}
	return &w, nil
}

func (r *fakeWalletRepo) byUser(userID int) (*models.Wallet, error) {
	for _, w := range r.s.wallets {
		if w.UserID == userID {
			copied := w
			return &copied, nil
		}
	}
	return nil, repositories.ErrWalletNotFound
}

func (r *fakeWalletRepo) GetByUserID(ctx context.Context, userID int) (*models.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.byUser(userID)
}

func (r *fakeWalletRepo) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Wallet, error) {
	return r.GetByID(ctx, id)
}

func (r *fakeWalletRepo) GetByUserIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, userID int) (*models.Wallet, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	return r.byUser(userID)
}

func (r *fakeWalletRepo) ApplyDelta(ctx context.Context, exec repositories.SQLExecutor, walletID int, delta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	w, ok := r.s.wallets[walletID]
	if !ok {
		return repositories.ErrWalletNotFound
	}
	if w.Balance+delta < 0 {
		return repositories.ErrWalletOverdraft
	}
	w.Balance += delta
	w.UpdatedAt = time.Now()
	r.s.wallets[walletID] = w
	return nil
}

type fakeTransactionRepo struct{ s *fakeStore }

func (r *fakeTransactionRepo) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.Transaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if t.IdempotencyKey != nil {
		for _, existing := range r.s.transactions {
			if existing.IdempotencyKey != nil && *existing.IdempotencyKey == *t.IdempotencyKey {
				return repositories.ErrTransactionDuplicate
			}
		}
	}
	t.ID = r.s.nextID()
	t.TransactionDate = time.Now()
	r.s.transactions[t.ID] = *t
	return nil
}

func (r *fakeTransactionRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return nil, repositories.ErrTransactionNotFound
	}
	return &t, nil
}

func (r *fakeTransactionRepo) FindByIdempotencyKey(ctx context.Context, exec repositories.SQLExecutor, key string) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.IdempotencyKey != nil && *t.IdempotencyKey == key {
			copied := t
			return &copied, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) FindRefundOf(ctx context.Context, exec repositories.SQLExecutor, originalTxnID int) (*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, t := range r.s.transactions {
		if t.ReferenceTxnID != nil && *t.ReferenceTxnID == originalTxnID &&
			t.Type == models.TransactionTypeRefund && t.Status == models.TransactionStatusCompleted {
			copied := t
			return &copied, nil
		}
	}
	return nil, repositories.ErrTransactionNotFound
}

func (r *fakeTransactionRepo) ListByWallet(ctx context.Context, walletID int, limit, offset int) ([]*models.Transaction, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	out := make([]*models.Transaction, 0)
	for _, t := range r.s.transactions {
		if t.WalletID == walletID {
			copied := t
			out = append(out, &copied)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (r *fakeTransactionRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TransactionStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.transactions[id]
	if !ok {
		return repositories.ErrTransactionNotFound
	}
	t.Status = status
	r.s.transactions[id] = t
	return nil
}
