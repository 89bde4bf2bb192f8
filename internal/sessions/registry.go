// Package sessions owns debate session state: matchmaking, topic negotiation,
// role assignment and every state-machine transition.
//
// The Registry is the only mutation gateway. All reads and writes of session
// state happen under one mutex, and every session handed out is a deep copy,
// so callers can do slow work (judging, broadcasting) on a consistent snapshot
// without holding the lock.
package sessions

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/letsee/debate-backend/internal/models"
	"github.com/letsee/debate-backend/pkg/clock"
)

// Limits are the per-session time and count limits injected at creation.
type Limits struct {
	TurnSeconds       int
	TotalSeconds      int
	MaxTurns          int
	TopicRefreshLimit int
	MaxWarnings       int
}

// DefaultLimits mirrors the configuration defaults.
func DefaultLimits() Limits {
	return Limits{TurnSeconds: 30, TotalSeconds: 600, MaxTurns: 60, TopicRefreshLimit: 1, MaxWarnings: 3}
}

// Registry holds all live sessions in memory.
type Registry struct {
	mu            sync.Mutex
	sessions      map[string]*models.Session
	waitingRandom string
	limits        Limits
	clock         clock.Clock
	coin          func() bool
	logger        *zap.Logger
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock sets the time source for timestamps.
func WithClock(c clock.Clock) Option {
	return func(r *Registry) { r.clock = c }
}

// WithCoin replaces the fair coin used by the coin toss. true means swap.
func WithCoin(coin func() bool) Option {
	return func(r *Registry) { r.coin = coin }
}

// NewRegistry creates an empty registry.
func NewRegistry(limits Limits, logger *zap.Logger, opts ...Option) *Registry {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Registry{
		sessions: make(map[string]*models.Session),
		limits:   limits,
		clock:    clock.Real(),
		coin:     fairCoin,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Limits returns the limits applied to new sessions.
func (r *Registry) Limits() Limits { return r.limits }

// CreateInviteSession opens a lobby with hostName seated as proponent.
func (r *Registry) CreateInviteSession(hostName string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.newSessionLocked(models.ModeInvite, displayName(hostName, "Host"))
	if err != nil {
		return nil, err
	}
	s.CustomTopicAllowed = true
	r.logger.Info("invite session created", zap.String("session_id", s.ID), zap.String("invite_code", s.InviteCode))
	return s.Clone(), nil
}

// JoinInviteSession seats name as opponent of the session with the given
// invite code and returns the new participant's id.
func (r *Registry) JoinInviteSession(code, name string) (*models.Session, string, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, s := range r.sessions {
		if s.InviteCode != code {
			continue
		}
		if s.Participants[models.Opponent] != nil {
			return nil, "", ErrSessionFull
		}
		pid := r.joinLocked(s, displayName(name, "Guest"))
		if r.waitingRandom == s.ID {
			r.waitingRandom = ""
		}
		r.logger.Info("invite session joined", zap.String("session_id", s.ID))
		return s.Clone(), pid, nil
	}
	return nil, "", ErrInviteNotFound
}

// JoinRandomMatch pairs name with the waiting random session, or opens a new
// one and makes it the waiting session. matched reports which happened;
// participantID identifies the caller's seat either way.
func (r *Registry) JoinRandomMatch(name string) (s *models.Session, participantID string, matched bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if waiting, ok := r.sessions[r.waitingRandom]; ok && waiting.Participants[models.Opponent] == nil {
		r.waitingRandom = ""
		pid := r.joinLocked(waiting, displayName(name, "Opponent"))
		waiting.Metadata.Mode = models.ModeRandom
		r.logger.Info("random match paired", zap.String("session_id", waiting.ID))
		return waiting.Clone(), pid, true, nil
	}
	created, err := r.newSessionLocked(models.ModeRandom, displayName(name, "Player"))
	if err != nil {
		return nil, "", false, err
	}
	r.waitingRandom = created.ID
	r.logger.Info("random match waiting", zap.String("session_id", created.ID))
	return created.Clone(), created.Participants[models.Proponent].ID, false, nil
}

// WaitingRandom returns the id of the session waiting for a random opponent.
func (r *Registry) WaitingRandom() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.waitingRandom
}

// Get returns a snapshot of the session.
func (r *Registry) Get(id string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// List returns snapshots of all sessions, oldest first.
func (r *Registry) List() []*models.Session {
	r.mu.Lock()
	out := make([]*models.Session, 0, len(r.sessions))
	for _, s := range r.sessions {
		out = append(out, s.Clone())
	}
	r.mu.Unlock()
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out
}

// SetHint stores the host's topic hint used when topics are suggested.
func (r *Registry) SetHint(id, hint string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	s.Metadata.Hint = strings.TrimSpace(hint)
	return s.Clone(), nil
}

// SetTopics records proposed topics and moves the session to veto. A refresh
// beyond the session's refresh limit fails with ErrRefreshLimit.
func (r *Registry) SetTopics(id string, topics []string, refreshed bool) (*models.Session, error) {
	cleaned := make([]string, 0, len(topics))
	for _, t := range topics {
		if t = strings.TrimSpace(t); t != "" {
			cleaned = append(cleaned, t)
		}
	}
	if len(cleaned) == 0 {
		return nil, ErrNoTopics
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if s.Status != models.StatusLobby && s.Status != models.StatusVeto {
		return nil, ErrInvalidPhase
	}
	if refreshed {
		if s.TopicRefreshes >= s.TopicRefreshLimit {
			return nil, ErrRefreshLimit
		}
		s.TopicRefreshes++
	}
	s.TopicOptions = cleaned
	for _, p := range s.Participants {
		if p != nil {
			p.VetoedTopic = ""
		}
	}
	s.Status = models.StatusVeto
	return s.Clone(), nil
}

// SelectTopic fixes the topic and performs the coin toss.
func (r *Registry) SelectTopic(id, topic string) (*models.Session, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if err := r.selectTopicLocked(s, topic); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// ChooseTopic validates topic against the offered list (or the custom-topic
// permission when custom is set) and then selects it.
func (r *Registry) ChooseTopic(id, topic string, custom bool) (*models.Session, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrEmptyTopic
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if custom {
		if !s.CustomTopicAllowed {
			return nil, ErrCustomTopicNotAllowed
		}
	} else if !contains(s.TopicOptions, topic) {
		return nil, ErrTopicNotOffered
	}
	if err := r.selectTopicLocked(s, topic); err != nil {
		return nil, err
	}
	return s.Clone(), nil
}

// VetoTopic records role's veto. When exactly one offered topic survives the
// vetoes it is selected; selected is that topic, or empty.
func (r *Registry) VetoTopic(id string, role models.Role, topic string) (s *models.Session, selected string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, err := r.lookupLocked(id)
	if err != nil {
		return nil, "", err
	}
	if sess.Status != models.StatusVeto {
		return nil, "", ErrInvalidPhase
	}
	p := sess.Participants[role]
	if p == nil {
		return nil, "", ErrRoleVacant
	}
	if !contains(sess.TopicOptions, topic) {
		return nil, "", ErrTopicNotOffered
	}
	p.VetoedTopic = topic

	vetoed := make(map[string]bool, 2)
	for _, q := range sess.Participants {
		if q != nil && q.VetoedTopic != "" {
			vetoed[q.VetoedTopic] = true
		}
	}
	var remaining []string
	for _, t := range sess.TopicOptions {
		if !vetoed[t] {
			remaining = append(remaining, t)
		}
	}
	if len(remaining) == 1 {
		selected = remaining[0]
		if err := r.selectTopicLocked(sess, selected); err != nil {
			return nil, "", err
		}
	}
	return sess.Clone(), selected, nil
}

// ResolveCoinToss starts the debate. It is a no-op unless the session is in
// coin toss with both debaters seated; started reports whether it moved.
func (r *Registry) ResolveCoinToss(id string) (s *models.Session, started bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, err := r.lookupLocked(id)
	if err != nil {
		return nil, false, err
	}
	if sess.Status != models.StatusCoinToss || !sess.BothPresent() {
		return sess.Clone(), false, nil
	}
	sess.Status = models.StatusDebating
	if sess.Metadata.CoinToss == nil {
		sess.Metadata.CoinToss = &models.CoinToss{}
	}
	sess.Metadata.CoinToss.Completed = true
	sess.CurrentTurn = models.Proponent
	sess.TurnSeq++
	sess.StartedAt = r.clock.Now()
	r.logger.Info("debate started", zap.String("session_id", sess.ID), zap.String("topic", sess.ChosenTopic))
	return sess.Clone(), true, nil
}

// Submission is one argument offered by a debater.
type Submission struct {
	Role       models.Role
	Content    string
	Violations int
	// Elapsed is called only once the submission is accepted and returns the
	// seconds the speaker used (normally the turn timer's consumed time).
	Elapsed func() int
}

// SubmitOutcome describes an accepted submission.
type SubmitOutcome struct {
	Session           *models.Session
	Argument          models.Argument
	Warnings          int
	WarningsExhausted bool
	MaxTurnsReached   bool
}

// SubmitArgument appends an argument when the session is debating and role
// holds the floor. A rejected submission changes nothing.
func (r *Registry) SubmitArgument(id string, sub Submission) (*SubmitOutcome, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if s.Status != models.StatusDebating || s.Judging {
		return nil, ErrDebateNotActive
	}
	p := s.Participants[sub.Role]
	if p == nil {
		return nil, ErrRoleVacant
	}
	if s.CurrentTurn != sub.Role {
		return nil, ErrNotYourTurn
	}
	elapsed := 0
	if sub.Elapsed != nil {
		elapsed = sub.Elapsed()
	}
	arg := s.RecordArgument(sub.Role, sub.Content, elapsed, r.clock.Now())
	s.AccrueTime(sub.Role, elapsed)
	if sub.Violations > 0 {
		p.Warnings += sub.Violations
		last := &s.Transcript[len(s.Transcript)-1]
		last.Metadata = map[string]string{"censored": fmt.Sprint(sub.Violations)}
		arg.Metadata = map[string]string{"censored": fmt.Sprint(sub.Violations)}
	}
	return &SubmitOutcome{
		Session:           s.Clone(),
		Argument:          arg,
		Warnings:          p.Warnings,
		WarningsExhausted: s.MaxWarnings > 0 && p.Warnings >= s.MaxWarnings,
		MaxTurnsReached:   s.ReachedMaxTurns(),
	}, nil
}

// ExpireTurn charges the full turn limit to the speaker and passes the floor.
// It applies only if the turn identified by seq is still current; a stale
// expiry (the turn already advanced) returns expired=false.
func (r *Registry) ExpireTurn(id string, seq uint64) (s *models.Session, expired bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, err := r.lookupLocked(id)
	if err != nil {
		return nil, false, err
	}
	if sess.Status != models.StatusDebating || sess.Judging || sess.TurnSeq != seq {
		return sess.Clone(), false, nil
	}
	sess.AccrueTime(sess.CurrentTurn, sess.PerTurnLimit)
	sess.AdvanceTurn()
	return sess.Clone(), true, nil
}

// OnCurrentTurn runs fn with a snapshot while the registry lock is held, but
// only if seq still identifies the current turn of a debate that is not being
// judged. fn may use the timer manager but must not call back into the Registry.
func (r *Registry) OnCurrentTurn(id string, seq uint64, fn func(s *models.Session)) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[id]
	if !ok || s.Status != models.StatusDebating || s.Judging || s.TurnSeq != seq {
		return false
	}
	fn(s.Clone())
	return true
}

// ResolveRole returns the role currently held by participantID.
func (r *Registry) ResolveRole(id, participantID string) (models.Role, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return models.Proponent, err
	}
	role, ok := s.RoleOf(participantID)
	if !ok {
		return models.Proponent, ErrUnknownParticipant
	}
	return role, nil
}

// Attach marks role as connected through the given transport handle.
func (r *Registry) Attach(id string, role models.Role, handle string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	p := s.Participants[role]
	if p == nil {
		return nil, ErrRoleVacant
	}
	p.Connected = true
	p.TransportHandle = handle
	return s.Clone(), nil
}

// Detach marks role as disconnected if handle is still its current channel.
func (r *Registry) Detach(id string, role models.Role, handle string) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if p := s.Participants[role]; p != nil && p.TransportHandle == handle {
		p.Connected = false
		p.TransportHandle = ""
	}
	return s.Clone(), nil
}

// BeginJudging reserves a debating session for judging so concurrent finish
// triggers judge it once. ok is false when the session is already finished or
// being judged; the snapshot is returned either way.
func (r *Registry) BeginJudging(id, reason string) (s *models.Session, ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	sess, err := r.lookupLocked(id)
	if err != nil {
		return nil, false, err
	}
	if sess.Status == models.StatusFinished || sess.Judging {
		return sess.Clone(), false, nil
	}
	if sess.Status != models.StatusDebating {
		return nil, false, ErrInvalidPhase
	}
	sess.Judging = true
	sess.Metadata.EndReason = reason
	return sess.Clone(), true, nil
}

// AbortJudging releases a reservation taken by BeginJudging after a failed run.
func (r *Registry) AbortJudging(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if s, ok := r.sessions[id]; ok && s.Status != models.StatusFinished {
		s.Judging = false
	}
}

// DeadlineLeft returns the whole seconds left before the debate's total limit,
// never less than zero, and the turn length as a retry delay for a limit that has passed.
func (r *Registry) DeadlineLeft(id string) (left, retry int, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return 0, 0, err
	}
	if s.Status != models.StatusDebating || s.Judging {
		return 0, 0, ErrDebateNotActive
	}
	left = s.TotalTimeLimit - int(r.clock.Now().Sub(s.StartedAt).Seconds())
	if left < 0 {
		left = 0
	}
	return left, s.PerTurnLimit, nil
}

// CompleteSession attaches the result and finishes the session. Completing a
// finished session keeps the first result.
func (r *Registry) CompleteSession(id string, result *models.SessionResult) (*models.Session, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, err := r.lookupLocked(id)
	if err != nil {
		return nil, err
	}
	if s.Status == models.StatusFinished {
		return s.Clone(), nil
	}
	s.Result = result.Clone()
	s.Status = models.StatusFinished
	s.Judging = false
	r.logger.Info("session finished", zap.String("session_id", s.ID), zap.String("winner", s.Result.Winner()))
	return s.Clone(), nil
}

func (r *Registry) lookupLocked(id string) (*models.Session, error) {
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

func (r *Registry) newSessionLocked(mode models.MatchMode, hostName string) (*models.Session, error) {
	id, err := newSessionID()
	if err != nil {
		return nil, err
	}
	code, err := r.uniqueInviteCodeLocked()
	if err != nil {
		return nil, err
	}
	now := r.clock.Now()
	s := &models.Session{
		ID:                id,
		InviteCode:        code,
		Status:            models.StatusLobby,
		CreatedAt:         now,
		CurrentTurn:       models.Proponent,
		PerTurnLimit:      r.limits.TurnSeconds,
		TotalTimeLimit:    r.limits.TotalSeconds,
		MaxTurns:          r.limits.MaxTurns,
		TopicRefreshLimit: r.limits.TopicRefreshLimit,
		MaxWarnings:       r.limits.MaxWarnings,
		Metadata:          models.Metadata{Mode: mode},
	}
	s.Seat(models.Proponent, &models.Participant{ID: uuid.NewString(), Name: hostName, JoinedAt: now})
	r.sessions[id] = s
	return s, nil
}

func (r *Registry) uniqueInviteCodeLocked() (string, error) {
	for attempt := 0; attempt < 8; attempt++ {
		code, err := newInviteCode()
		if err != nil {
			return "", err
		}
		taken := false
		for _, s := range r.sessions {
			if s.InviteCode == code {
				taken = true
				break
			}
		}
		if !taken {
			return code, nil
		}
	}
	return "", fmt.Errorf("invite code: no free code after retries")
}

func (r *Registry) joinLocked(s *models.Session, name string) string {
	p := &models.Participant{ID: uuid.NewString(), Name: name, JoinedAt: r.clock.Now()}
	s.Seat(models.Opponent, p)
	switch s.Status {
	case models.StatusLobby:
		s.Status = models.StatusVeto
	case models.StatusCoinToss:
		// The topic was fixed while alone; toss now that both sides are seated.
		r.tossLocked(s)
	}
	return p.ID
}

func (r *Registry) selectTopicLocked(s *models.Session, topic string) error {
	switch s.Status {
	case models.StatusLobby, models.StatusVeto, models.StatusCoinToss:
	default:
		return ErrInvalidPhase
	}
	s.ChosenTopic = topic
	s.Status = models.StatusCoinToss
	r.tossLocked(s)
	return nil
}

func (r *Registry) tossLocked(s *models.Session) {
	toss := &models.CoinToss{}
	if s.BothPresent() && r.coin() {
		s.SwapRoles()
		toss.Swapped = true
	}
	if p := s.Participants[models.Proponent]; p != nil {
		toss.Pro = p.Name
	}
	if p := s.Participants[models.Opponent]; p != nil {
		toss.Con = p.Name
	}
	s.Metadata.CoinToss = toss
	s.CurrentTurn = models.Proponent
}

func displayName(name, fallback string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return fallback
}

func contains(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}
