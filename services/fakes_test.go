package services

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/vortexplay/arena-server/live"
	"github.com/vortexplay/arena-server/models"
	"github.com/vortexplay/arena-server/repositories"
)

// The fakes below back the service tests with in-memory state. They keep the
// repository contracts honest: compare-and-swap updates really are
// conditional, uniqueness constraints really conflict, and everything is
// safe under concurrent callers.

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeTxRunner struct{}

func (fakeTxRunner) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	return fn(nil)
}

// failingTxRunner runs the closure and then reports a commit failure,
// mimicking a transaction whose statements ran but never persisted.
type failingTxRunner struct{ err error }

func (r failingTxRunner) WithinTx(ctx context.Context, fn func(exec repositories.SQLExecutor) error) error {
	if err := fn(nil); err != nil {
		return err
	}
	return r.err
}

type recorderHub struct {
	mu     sync.Mutex
	events []live.Event
}

func (h *recorderHub) BroadcastToRoom(room string, event live.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	event.Room = room
	h.events = append(h.events, event)
}

func (h *recorderHub) byType(eventType string) []live.Event {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []live.Event
	for _, e := range h.events {
		if e.Type == eventType {
			out = append(out, e)
		}
	}
	return out
}

type fakeTournamentRepo struct {
	mu          sync.Mutex
	tournaments map[int]*models.Tournament
	nextID      int
}

func newFakeTournamentRepo() *fakeTournamentRepo {
	return &fakeTournamentRepo{tournaments: make(map[int]*models.Tournament), nextID: 1}
}

func (r *fakeTournamentRepo) Create(ctx context.Context, t *models.Tournament) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tournaments {
		if existing.Name == t.Name {
			return repositories.ErrTournamentNameConflict
		}
	}
	t.ID = r.nextID
	r.nextID++
	t.CreatedAt = time.Now()
	cp := *t
	r.tournaments[t.ID] = &cp
	return nil
}

func (r *fakeTournamentRepo) GetByID(ctx context.Context, id int) (*models.Tournament, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return nil, repositories.ErrTournamentNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeTournamentRepo) List(ctx context.Context, status *models.TournamentStatus) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Tournament, 0)
	for _, t := range r.tournaments {
		if status != nil && t.Status != *status {
			continue
		}
		cp := *t
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) ListNonTerminal(ctx context.Context) ([]*models.Tournament, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Tournament, 0)
	for _, t := range r.tournaments {
		switch t.Status {
		case models.TournamentSoon, models.TournamentRegistration, models.TournamentActive:
			cp := *t
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeTournamentRepo) UpdateStatus(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.TournamentStatus) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok || t.Status != from {
		return false, nil
	}
	t.Status = to
	return true, nil
}

func (r *fakeTournamentRepo) AdvanceRound(ctx context.Context, exec repositories.SQLExecutor, id, from, to int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok || t.CurrentRound != from {
		return false, nil
	}
	t.CurrentRound = to
	return true, nil
}

func (r *fakeTournamentRepo) Complete(ctx context.Context, exec repositories.SQLExecutor, id int, winnerParticipantID *int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.tournaments[id]
	if !ok {
		return repositories.ErrTournamentNotFound
	}
	t.Status = models.TournamentCompleted
	t.WinnerID = winnerParticipantID
	return nil
}

type fakeParticipantRepo struct {
	mu           sync.Mutex
	participants map[int]*models.Participant
	nextID       int
}

func newFakeParticipantRepo() *fakeParticipantRepo {
	return &fakeParticipantRepo{participants: make(map[int]*models.Participant), nextID: 1}
}

func (r *fakeParticipantRepo) Create(ctx context.Context, p *models.Participant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.participants {
		if existing.TournamentID != p.TournamentID {
			continue
		}
		if existing.UserID == p.UserID {
			return repositories.ErrParticipantConflict
		}
		if existing.Seed != nil && p.Seed != nil && *existing.Seed == *p.Seed {
			return repositories.ErrSeedConflict
		}
	}
	p.ID = r.nextID
	r.nextID++
	p.CreatedAt = time.Now()
	cp := *p
	r.participants[p.ID] = &cp
	return nil
}

func (r *fakeParticipantRepo) GetByID(ctx context.Context, id int) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return nil, repositories.ErrParticipantNotFound
	}
	cp := *p
	return &cp, nil
}

func (r *fakeParticipantRepo) FindByUserAndTournament(ctx context.Context, userID, tournamentID int) (*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.participants {
		if p.UserID == userID && p.TournamentID == tournamentID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repositories.ErrParticipantNotFound
}

func (r *fakeParticipantRepo) ListByTournament(ctx context.Context, tournamentID int, status *models.ParticipantStatus) ([]*models.Participant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Participant, 0)
	for _, p := range r.participants {
		if p.TournamentID != tournamentID {
			continue
		}
		if status != nil && p.Status != *status {
			continue
		}
		cp := *p
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := out[i].Seed, out[j].Seed
		switch {
		case si != nil && sj != nil && *si != *sj:
			return *si < *sj
		case si != nil && sj == nil:
			return true
		case si == nil && sj != nil:
			return false
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (r *fakeParticipantRepo) UpdateStatus(ctx context.Context, id int, status models.ParticipantStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.participants[id]
	if !ok {
		return repositories.ErrParticipantNotFound
	}
	p.Status = status
	return nil
}

type fakeMatchRepo struct {
	mu           sync.Mutex
	matches      map[int]*models.Match
	participants map[int][]models.MatchParticipant
	nextID       int
	nextMPID     int
}

func newFakeMatchRepo() *fakeMatchRepo {
	return &fakeMatchRepo{
		matches:      make(map[int]*models.Match),
		participants: make(map[int][]models.MatchParticipant),
		nextID:       1,
		nextMPID:     1,
	}
}

func (r *fakeMatchRepo) Create(ctx context.Context, exec repositories.SQLExecutor, m *models.Match) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.matches {
		if existing.TournamentID == m.TournamentID &&
			(existing.Position == m.Position || existing.MatchNumber == m.MatchNumber) {
			return repositories.ErrMatchPositionConflict
		}
	}
	m.ID = r.nextID
	r.nextID++
	m.CreatedAt = time.Now()
	cp := *m
	cp.Participants = nil
	r.matches[m.ID] = &cp
	return nil
}

func (r *fakeMatchRepo) GetByID(ctx context.Context, id int) (*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return nil, repositories.ErrMatchNotFound
	}
	cp := *m
	return &cp, nil
}

func (r *fakeMatchRepo) GetWithParticipants(ctx context.Context, id int) (*models.Match, error) {
	m, err := r.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	m.Participants, err = r.ListParticipants(ctx, id)
	return m, err
}

func (r *fakeMatchRepo) ListByTournament(ctx context.Context, tournamentID int, round *int, state *models.MatchState) ([]*models.Match, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*models.Match, 0)
	for _, m := range r.matches {
		if m.TournamentID != tournamentID {
			continue
		}
		if round != nil && m.Round != *round {
			continue
		}
		if state != nil && m.State != *state {
			continue
		}
		cp := *m
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].MatchNumber < out[j].MatchNumber })
	return out, nil
}

func (r *fakeMatchRepo) MaxMatchNumber(ctx context.Context, exec repositories.SQLExecutor, tournamentID int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	max := 0
	for _, m := range r.matches {
		if m.TournamentID == tournamentID && m.MatchNumber > max {
			max = m.MatchNumber
		}
	}
	return max, nil
}

func (r *fakeMatchRepo) AddParticipant(ctx context.Context, exec repositories.SQLExecutor, mp *models.MatchParticipant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.participants[mp.MatchID] {
		if existing.ParticipantID == mp.ParticipantID {
			return repositories.ErrMatchParticipantConflict
		}
	}
	mp.ID = r.nextMPID
	r.nextMPID++
	r.participants[mp.MatchID] = append(r.participants[mp.MatchID], *mp)
	return nil
}

func (r *fakeMatchRepo) ListParticipants(ctx context.Context, matchID int) ([]models.MatchParticipant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MatchParticipant, len(r.participants[matchID]))
	copy(out, r.participants[matchID])
	sort.Slice(out, func(i, j int) bool { return out[i].Slot < out[j].Slot })
	return out, nil
}

func (r *fakeMatchRepo) UpdateReadiness(ctx context.Context, exec repositories.SQLExecutor, matchID, participantID int, readiness models.ReadinessStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mps := r.participants[matchID]
	for i := range mps {
		if mps[i].ParticipantID == participantID {
			mps[i].Readiness = readiness
			return nil
		}
	}
	return repositories.ErrParticipantNotFound
}

func (r *fakeMatchRepo) UpdateScore(ctx context.Context, exec repositories.SQLExecutor, matchID, participantID, score int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	mps := r.participants[matchID]
	for i := range mps {
		if mps[i].ParticipantID == participantID {
			s := score
			mps[i].Score = &s
			return nil
		}
	}
	return repositories.ErrParticipantNotFound
}

func (r *fakeMatchRepo) UpdateState(ctx context.Context, exec repositories.SQLExecutor, id int, from, to models.MatchState) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok || m.State != from {
		return false, nil
	}
	m.State = to
	return true, nil
}

func (r *fakeMatchRepo) Start(ctx context.Context, exec repositories.SQLExecutor, id int, startedAt time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok || m.State != models.MatchReady {
		return false, nil
	}
	m.State = models.MatchOngoing
	ts := startedAt
	m.StartedAt = &ts
	return true, nil
}

func (r *fakeMatchRepo) End(ctx context.Context, exec repositories.SQLExecutor, id int, endedAt time.Time, outcome models.MatchOutcome, winnerParticipantID *int) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok || m.State != models.MatchOngoing {
		return false, nil
	}
	m.State = models.MatchCompleted
	ts := endedAt
	m.EndedAt = &ts
	oc := outcome
	m.Outcome = &oc
	m.WinnerParticipantID = winnerParticipantID
	return true, nil
}

func (r *fakeMatchRepo) ForceState(ctx context.Context, exec repositories.SQLExecutor, id int, to models.MatchState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.matches[id]
	if !ok {
		return repositories.ErrMatchNotFound
	}
	m.State = to
	return nil
}

type fakeByeRepo struct {
	mu     sync.Mutex
	byes   []models.RoundBye
	nextID int
}

func newFakeByeRepo() *fakeByeRepo {
	return &fakeByeRepo{nextID: 1}
}

func (r *fakeByeRepo) Create(ctx context.Context, exec repositories.SQLExecutor, bye *models.RoundBye) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	bye.ID = r.nextID
	r.nextID++
	r.byes = append(r.byes, *bye)
	return nil
}

func (r *fakeByeRepo) ListByRound(ctx context.Context, tournamentID, round int) ([]models.RoundBye, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.RoundBye, 0)
	for _, b := range r.byes {
		if b.TournamentID == tournamentID && b.Round == round {
			out = append(out, b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Seed < out[j].Seed })
	return out, nil
}

type fakeDisputeRepo struct {
	mu       sync.Mutex
	disputes map[int]*models.Dispute
	nextID   int
}

func newFakeDisputeRepo() *fakeDisputeRepo {
	return &fakeDisputeRepo{disputes: make(map[int]*models.Dispute), nextID: 1}
}

func (r *fakeDisputeRepo) Create(ctx context.Context, exec repositories.SQLExecutor, d *models.Dispute) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d.ID = r.nextID
	r.nextID++
	d.CreatedAt = time.Now()
	cp := *d
	r.disputes[d.ID] = &cp
	return nil
}

func (r *fakeDisputeRepo) GetByID(ctx context.Context, id int) (*models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return nil, repositories.ErrDisputeNotFound
	}
	cp := *d
	return &cp, nil
}

func (r *fakeDisputeRepo) ListByMatch(ctx context.Context, matchID int) ([]models.Dispute, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.Dispute, 0)
	for _, d := range r.disputes {
		if d.MatchID == matchID {
			out = append(out, *d)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeDisputeRepo) AddEvidence(ctx context.Context, id int, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return repositories.ErrDisputeNotFound
	}
	d.EvidenceKeys = append(d.EvidenceKeys, key)
	return nil
}

func (r *fakeDisputeRepo) UpdateStatus(ctx context.Context, id int, status models.DisputeStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	d, ok := r.disputes[id]
	if !ok {
		return repositories.ErrDisputeNotFound
	}
	d.Status = status
	return nil
}

type fakeMessageRepo struct {
	mu       sync.Mutex
	messages []models.MatchMessage
	nextID   int
}

func newFakeMessageRepo() *fakeMessageRepo {
	return &fakeMessageRepo{nextID: 1}
}

func (r *fakeMessageRepo) Create(ctx context.Context, exec repositories.SQLExecutor, msg *models.MatchMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	msg.ID = r.nextID
	r.nextID++
	msg.CreatedAt = time.Now()
	r.messages = append(r.messages, *msg)
	return nil
}

func (r *fakeMessageRepo) ListByMatch(ctx context.Context, matchID int) ([]models.MatchMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]models.MatchMessage, 0)
	for _, m := range r.messages {
		if m.MatchID == matchID {
			out = append(out, m)
		}
	}
	return out, nil
}

type fakeUserRepo struct {
	mu     sync.Mutex
	users  map[int]*models.User
	nextID int
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{users: make(map[int]*models.User), nextID: 1}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.users {
		if existing.Email == user.Email {
			return repositories.ErrUserEmailConflict
		}
	}
	user.ID = r.nextID
	r.nextID++
	user.CreatedAt = time.Now()
	cp := *user
	r.users[user.ID] = &cp
	return nil
}

func (r *fakeUserRepo) GetByID(ctx context.Context, id int) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeUserRepo) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

// fixture wires every fake together behind real service implementations.
type fixture struct {
	tournaments  *fakeTournamentRepo
	participants *fakeParticipantRepo
	matches      *fakeMatchRepo
	byes         *fakeByeRepo
	disputes     *fakeDisputeRepo
	messages     *fakeMessageRepo
	users        *fakeUserRepo
	hub          *recorderHub
	locks        *KeyedMutex

	tournamentSvc  TournamentService
	participantSvc ParticipantService
	bracketSvc     BracketService
	progressionSvc ProgressionService
	matchSvc       MatchService
}

func newFixture() *fixture {
	f := &fixture{
		tournaments:  newFakeTournamentRepo(),
		participants: newFakeParticipantRepo(),
		matches:      newFakeMatchRepo(),
		byes:         newFakeByeRepo(),
		disputes:     newFakeDisputeRepo(),
		messages:     newFakeMessageRepo(),
		users:        newFakeUserRepo(),
		hub:          &recorderHub{},
		locks:        NewKeyedMutex(),
	}
	logger := testLogger()
	tx := fakeTxRunner{}

	f.tournamentSvc = NewTournamentService(tx, f.tournaments, f.participants, f.matches, f.users, f.hub, logger)
	f.participantSvc = NewParticipantService(f.tournaments, f.participants, f.locks, f.hub, logger)
	f.bracketSvc = NewBracketService(tx, f.tournaments, f.participants, f.matches, f.byes, f.locks, f.hub, logger)
	f.progressionSvc = NewProgressionService(tx, f.tournaments, f.matches, f.byes, f.locks, f.hub, logger)
	f.matchSvc = NewMatchService(tx, f.matches, f.participants, f.disputes, f.messages, f.locks, f.hub, f.progressionSvc, logger)
	return f
}

// seedTournament installs a tournament with n confirmed participants, user
// IDs 101..100+n, participant seeds 1..n.
func (f *fixture) seedTournament(format models.BracketFormat, status models.TournamentStatus, n int) (*models.Tournament, []*models.Participant) {
	start := time.Now().Add(time.Hour)
	t := &models.Tournament{
		Name:            fmt.Sprintf("Arena Cup %d", f.tournaments.nextID),
		Game:            "quake",
		Format:          format,
		OrganizerID:     1,
		RegDate:         start.Add(-time.Hour),
		StartDate:       start,
		EndDate:         start.Add(48 * time.Hour),
		Status:          status,
		MaxParticipants: 64,
	}
	if err := f.tournaments.Create(context.Background(), t); err != nil {
		panic(err)
	}

	participants := make([]*models.Participant, 0, n)
	for i := 1; i <= n; i++ {
		seed := i
		p := &models.Participant{
			UserID:       100 + i,
			TournamentID: t.ID,
			Status:       models.ParticipantConfirmed,
			Seed:         &seed,
		}
		if err := f.participants.Create(context.Background(), p); err != nil {
			panic(err)
		}
		participants = append(participants, p)
	}
	return t, participants
}
