package services

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/academyhq/tournament-core/models"
	"github.com/academyhq/tournament-core/repositories"
)

// memStore is an in-memory stand-in for the Postgres repositories. Its
// TxRunner serializes transactions with one mutex, which mirrors how
// the real implementation serializes work on the tournament row lock,
// and it enforces the same conditional-update semantics the SQL
// statements do.
type memStore struct {
	mu sync.Mutex

	tournaments   map[int]*models.Tournament
	enrollments   map[int]*models.Enrollment
	balances      map[int]int
	transactions  []*models.CreditTransaction
	sessions      map[int]*models.Session
	standings     []*models.Standing
	transitions   []*models.StatusTransition
	distributions map[int]*models.RewardDistribution
	users         map[int]*models.User

	nextID int
}

func newMemStore() *memStore {
	return &memStore{
		tournaments:   make(map[int]*models.Tournament),
		enrollments:   make(map[int]*models.Enrollment),
		balances:      make(map[int]int),
		sessions:      make(map[int]*models.Session),
		distributions: make(map[int]*models.RewardDistribution),
		users:         make(map[int]*models.User),
	}
}

func (s *memStore) newID() int {
	s.nextID++
	return s.nextID
}

// RunInTx serializes callers the way row locks do. Rollback is not
// emulated; tests only assert on committed outcomes and on operations
// whose guards fire before any write, matching the service flows.
func (s *memStore) RunInTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(nil)
}

// --- TournamentRepository ---

func (s *memStore) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.Tournament) error {
	for _, existing := range s.tournaments {
		if existing.OrganizerID == t.OrganizerID && existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = s.newID()
	t.CreatedAt = time.Now()
	t.UpdatedAt = t.CreatedAt
	cp := *t
	s.tournaments[t.ID] = &cp
	return nil
}

func (s *memStore) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	t, ok := s.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (s *memStore) GetByIDForUpdate(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Tournament, error) {
	return s.GetByID(ctx, exec, id)
}

func (s *memStore) List(ctx context.Context, filter repositories.ListTournamentsFilter) ([]models.Tournament, error) {
	out := make([]models.Tournament, 0)
	for _, t := range s.tournaments {
		if filter.Status != nil && t.Status != *filter.Status {
			continue
		}
		if filter.OrganizerID != nil && t.OrganizerID != *filter.OrganizerID {
			continue
		}
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *memStore) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, status models.TournamentStatus) error {
	t, ok := s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = status
	t.UpdatedAt = time.Now()
	return nil
}

func (s *memStore) SetInstructor(ctx context.Context, exec repositories.SQLExecutor, id int, instructorID *int) error {
	t, ok := s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.InstructorID = instructorID
	return nil
}

func (s *memStore) MarkSessionsGenerated(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	t, ok := s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.SessionsGenerated {
		return repositories.ErrSessionsAlreadyGenerated
	}
	t.SessionsGenerated = true
	return nil
}

func (s *memStore) MarkRewardsDistributed(ctx context.Context, exec repositories.SQLExecutor, id int) error {
	t, ok := s.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	if t.Status != models.StatusCompleted || t.RewardsDistributed {
		return repositories.ErrRewardsAlreadyMarked
	}
	t.RewardsDistributed = true
	return nil
}

// enrollments returns a separate view for wiring into services, so the
// one memStore can satisfy every repository interface despite the
// overlapping method names.
type memEnrollmentRepo struct{ s *memStore }
type memCreditRepo struct{ s *memStore }
type memSessionRepo struct{ s *memStore }
type memStandingRepo struct{ s *memStore }
type memTransitionRepo struct{ s *memStore }
type memRewardRepo struct{ s *memStore }
type memUserRepo struct{ s *memStore }

// --- EnrollmentRepository ---

func (r memEnrollmentRepo) Create(ctx context.Context, exec repositories.SQLExecutor, e *models.Enrollment) error {
	for _, existing := range r.s.enrollments {
		if existing.IsActive && existing.UserID == e.UserID && existing.TournamentID == e.TournamentID {
			return repositories.ErrEnrollmentConflict
		}
	}
	e.ID = r.s.newID()
	e.CreatedAt = time.Now()
	cp := *e
	r.s.enrollments[e.ID] = &cp
	return nil
}

func (r memEnrollmentRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Enrollment, error) {
	e, ok := r.s.enrollments[id]
	if !ok {
		return nil, repositories.ErrEnrollmentNotFound
	}
	cp := *e
	return &cp, nil
}

func (r memEnrollmentRepo) GetActiveByUserAndTournament(ctx context.Context, exec repositories.SQLExecutor, userID, tournamentID int) (*models.Enrollment, error) {
	for _, e := range r.s.enrollments {
		if e.IsActive && e.UserID == userID && e.TournamentID == tournamentID {
			cp := *e
			return &cp, nil
		}
	}
	return nil, repositories.ErrEnrollmentNotFound
}

func (r memEnrollmentRepo) CountActive(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	count := 0
	for _, e := range r.s.enrollments {
		if e.IsActive && e.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

func (r memEnrollmentRepo) Deactivate(ctx context.Context, exec repositories.SQLExecutor, id int, status models.EnrollmentStatus) error {
	e, ok := r.s.enrollments[id]
	if !ok {
		return repositories.ErrEnrollmentNotFound
	}
	if !e.IsActive {
		return repositories.ErrEnrollmentAlreadyInactive
	}
	e.IsActive = false
	e.RequestStatus = status
	return nil
}

func (r memEnrollmentRepo) StampCheckIn(ctx context.Context, exec repositories.SQLExecutor, id int, at time.Time) (bool, error) {
	e, ok := r.s.enrollments[id]
	if !ok {
		return false, repositories.ErrEnrollmentNotFound
	}
	if e.CheckedInAt != nil {
		return false, nil
	}
	stamp := at
	e.CheckedInAt = &stamp
	return true, nil
}

func (r memEnrollmentRepo) list(tournamentID int, keep func(*models.Enrollment) bool) []*models.Enrollment {
	out := make([]*models.Enrollment, 0)
	for _, e := range r.s.enrollments {
		if e.TournamentID == tournamentID && keep(e) {
			cp := *e
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r memEnrollmentRepo) ListSeedable(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Enrollment, error) {
	return r.list(tournamentID, func(e *models.Enrollment) bool { return e.Seedable() }), nil
}

func (r memEnrollmentRepo) ListCheckedIn(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Enrollment, error) {
	return r.list(tournamentID, func(e *models.Enrollment) bool { return e.Seedable() && e.CheckedInAt != nil }), nil
}

func (r memEnrollmentRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.Enrollment, error) {
	return r.list(tournamentID, func(*models.Enrollment) bool { return true }), nil
}

// --- CreditRepository ---

func (r memCreditRepo) CreateAccount(ctx context.Context, exec repositories.SQLExecutor, userID, initialBalance int) error {
	if _, ok := r.s.balances[userID]; ok {
		return repositories.ErrCreditAccountConflict
	}
	r.s.balances[userID] = initialBalance
	return nil
}

func (r memCreditRepo) GetBalance(ctx context.Context, exec repositories.SQLExecutor, userID int) (int, error) {
	balance, ok := r.s.balances[userID]
	if !ok {
		return 0, repositories.ErrCreditAccountNotFound
	}
	return balance, nil
}

func (r memCreditRepo) Deduct(ctx context.Context, exec repositories.SQLExecutor, userID, amount int) error {
	balance, ok := r.s.balances[userID]
	if !ok || balance < amount {
		return repositories.ErrInsufficientCredits
	}
	r.s.balances[userID] = balance - amount
	return nil
}

func (r memCreditRepo) Refund(ctx context.Context, exec repositories.SQLExecutor, userID, amount int) error {
	if _, ok := r.s.balances[userID]; !ok {
		return repositories.ErrCreditAccountNotFound
	}
	r.s.balances[userID] += amount
	return nil
}

func (r memCreditRepo) CreateTransaction(ctx context.Context, exec repositories.SQLExecutor, t *models.CreditTransaction) error {
	t.ID = r.s.newID()
	t.CreatedAt = time.Now()
	cp := *t
	r.s.transactions = append(r.s.transactions, &cp)
	return nil
}

func (r memCreditRepo) ListTransactionsByUser(ctx context.Context, userID int, limit int) ([]*models.CreditTransaction, error) {
	out := make([]*models.CreditTransaction, 0)
	for _, t := range r.s.transactions {
		if t.UserID == userID {
			cp := *t
			out = append(out, &cp)
		}
	}
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r memCreditRepo) CountTransactionsByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	count := 0
	for _, t := range r.s.transactions {
		if t.TournamentID != nil && *t.TournamentID == tournamentID {
			count++
		}
	}
	return count, nil
}

// --- SessionRepository ---

func (r memSessionRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, sessions []*models.Session) error {
	for _, sess := range sessions {
		sess.ID = r.s.newID()
		sess.CreatedAt = time.Now()
		cp := *sess
		r.s.sessions[sess.ID] = &cp
	}
	return nil
}

func (r memSessionRepo) GetByID(ctx context.Context, exec repositories.SQLExecutor, id int) (*models.Session, error) {
	sess, ok := r.s.sessions[id]
	if !ok {
		return nil, repositories.ErrSessionNotFound
	}
	cp := *sess
	return &cp, nil
}

func (r memSessionRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Session, error) {
	out := make([]*models.Session, 0)
	for _, sess := range r.s.sessions {
		if sess.TournamentID == tournamentID {
			cp := *sess
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Round != out[j].Round {
			return out[i].Round < out[j].Round
		}
		return out[i].OrderInRound < out[j].OrderInRound
	})
	return out, nil
}

func (r memSessionRepo) RecordResult(ctx context.Context, exec repositories.SQLExecutor, id int, winnerEnrollmentID int, score *string) error {
	sess, ok := r.s.sessions[id]
	if !ok {
		return repositories.ErrSessionNotFound
	}
	if sess.Status != models.SessionScheduled {
		return repositories.ErrSessionNotScheduled
	}
	sess.Status = models.SessionCompleted
	sess.WinnerEnrollmentID = &winnerEnrollmentID
	sess.Score = score
	return nil
}

func (r memSessionRepo) CancelScheduledByEnrollment(ctx context.Context, exec repositories.SQLExecutor, tournamentID, enrollmentID int) (int, error) {
	count := 0
	for _, sess := range r.s.sessions {
		if sess.TournamentID != tournamentID || sess.Status != models.SessionScheduled {
			continue
		}
		p1 := sess.P1EnrollmentID != nil && *sess.P1EnrollmentID == enrollmentID
		p2 := sess.P2EnrollmentID != nil && *sess.P2EnrollmentID == enrollmentID
		if p1 || p2 {
			sess.Status = models.SessionCanceled
			count++
		}
	}
	return count, nil
}

func (r memSessionRepo) CountByStatus(ctx context.Context, exec repositories.SQLExecutor, tournamentID int, status models.SessionStatus) (int, error) {
	count := 0
	for _, sess := range r.s.sessions {
		if sess.TournamentID == tournamentID && sess.Status == status {
			count++
		}
	}
	return count, nil
}

func (r memSessionRepo) WinsByEnrollment(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (map[int]int, error) {
	wins := make(map[int]int)
	for _, sess := range r.s.sessions {
		if sess.TournamentID == tournamentID && sess.Status == models.SessionCompleted && sess.WinnerEnrollmentID != nil {
			wins[*sess.WinnerEnrollmentID]++
		}
	}
	return wins, nil
}

// --- StandingRepository ---

func (r memStandingRepo) CreateBatch(ctx context.Context, exec repositories.SQLExecutor, standings []*models.Standing) error {
	for _, st := range standings {
		st.ID = r.s.newID()
		st.CreatedAt = time.Now()
		cp := *st
		r.s.standings = append(r.s.standings, &cp)
	}
	return nil
}

func (r memStandingRepo) ListByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) ([]*models.Standing, error) {
	out := make([]*models.Standing, 0)
	for _, st := range r.s.standings {
		if st.TournamentID == tournamentID {
			cp := *st
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Place < out[j].Place })
	return out, nil
}

func (r memStandingRepo) ExistsByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (bool, error) {
	for _, st := range r.s.standings {
		if st.TournamentID == tournamentID {
			return true, nil
		}
	}
	return false, nil
}

// --- TransitionRepository ---

func (r memTransitionRepo) Create(ctx context.Context, exec repositories.SQLExecutor, t *models.StatusTransition) error {
	t.ID = r.s.newID()
	t.CreatedAt = time.Now()
	cp := *t
	r.s.transitions = append(r.s.transitions, &cp)
	return nil
}

func (r memTransitionRepo) ListByTournament(ctx context.Context, tournamentID int) ([]*models.StatusTransition, error) {
	out := make([]*models.StatusTransition, 0)
	for _, t := range r.s.transitions {
		if t.TournamentID == tournamentID {
			cp := *t
			out = append(out, &cp)
		}
	}
	return out, nil
}

// --- RewardRepository ---

func (r memRewardRepo) CreateDistribution(ctx context.Context, exec repositories.SQLExecutor, d *models.RewardDistribution) error {
	if _, ok := r.s.distributions[d.TournamentID]; ok {
		return repositories.ErrDistributionConflict
	}
	d.ID = r.s.newID()
	d.DistributedAt = time.Now()
	cp := *d
	r.s.distributions[d.TournamentID] = &cp
	return nil
}

func (r memRewardRepo) GetByTournament(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (*models.RewardDistribution, error) {
	d, ok := r.s.distributions[tournamentID]
	if !ok {
		return nil, repositories.ErrDistributionNotFound
	}
	cp := *d
	return &cp, nil
}

// --- UserRepository ---

func (r memUserRepo) Create(ctx context.Context, exec repositories.SQLExecutor, user *models.User) error {
	for _, existing := range r.s.users {
		if existing.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	user.ID = r.s.newID()
	user.CreatedAt = time.Now()
	cp := *user
	r.s.users[user.ID] = &cp
	return nil
}

func (r memUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	u, ok := r.s.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r memUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	for _, u := range r.s.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

// --- event recorder ---

type recordedEvent struct {
	TournamentID int
	Type         string
	Payload      interface{}
}

type eventRecorder struct {
	mu     sync.Mutex
	events []recordedEvent
}

func (r *eventRecorder) Publish(tournamentID int, eventType string, payload interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, recordedEvent{TournamentID: tournamentID, Type: eventType, Payload: payload})
}

func (r *eventRecorder) typesFor(tournamentID int) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, 0, len(r.events))
	for _, e := range r.events {
		if e.TournamentID == tournamentID {
			out = append(out, e.Type)
		}
	}
	return out
}
