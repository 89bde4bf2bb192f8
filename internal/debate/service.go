// Package debate runs live debates on top of the session registry: it starts
// and reacts to timers, gates arguments through moderation, judges finished
// debates and pushes every change to the session's real-time channel.
package debate

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/letsee/debate-backend/internal/models"
	"github.com/letsee/debate-backend/internal/moderation"
	"github.com/letsee/debate-backend/internal/oracle"
	"github.com/letsee/debate-backend/internal/sessions"
	"github.com/letsee/debate-backend/internal/timers"
)

// Outbound event names.
const (
	EventSessionUpdate     = "session:update"
	EventSessionError      = "session:error"
	EventTopicVetoed       = "topic:vetoed"
	EventTopicSelected     = "topic:selected"
	EventMessageNew        = "message:new"
	EventTimerTurn         = "timer:turn"
	EventTimerTurnExpired  = "timer:turnExpired"
	EventTimerTotalExpired = "timer:totalExpired"
	EventDebateStarted     = "debate:started"
	EventDebateFinished    = "debate:finished"
	EventModerationWarning = "moderation:warning"
)

// End reasons recorded on the session when judging starts.
const (
	ReasonEnded     = "ended_by_participant"
	ReasonFinished  = "finish_requested"
	ReasonTimeUp    = "time_up"
	ReasonMaxTurns  = "max_turns"
	ReasonWarnings  = "warnings_exhausted"
	ReasonExport    = "export_requested"
	defaultJudgeTTL = 60 * time.Second
)

// Judger scores a session snapshot.
type Judger interface {
	Judge(ctx context.Context, s *models.Session) (*models.SessionResult, error)
}

// TopicSource suggests debate topics. It never fails.
type TopicSource interface {
	Suggest(ctx context.Context, req oracle.TopicRequest) []string
}

// Broadcaster fans an event out to everyone watching a session.
type Broadcaster interface {
	Broadcast(sessionID, event string, payload interface{})
}

// Deps are the collaborators of a Service.
type Deps struct {
	Registry     *sessions.Registry
	Timers       *timers.Manager
	Filter       *moderation.Filter
	Judge        Judger
	Topics       TopicSource
	Broadcaster  Broadcaster
	JudgeTimeout time.Duration
}

// Service coordinates one process worth of debates.
type Service struct {
	registry     *sessions.Registry
	timers       *timers.Manager
	filter       *moderation.Filter
	judge        Judger
	topics       TopicSource
	bus          Broadcaster
	judgeTimeout time.Duration
	logger       *zap.Logger

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

type nopBroadcaster struct{}

func (nopBroadcaster) Broadcast(string, string, interface{}) {}

// NewService wires a service. Registry, Timers, Judge and Topics are required.
func NewService(d Deps, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	if d.Filter == nil {
		d.Filter = moderation.NewFilter(0, nil)
	}
	if d.Broadcaster == nil {
		d.Broadcaster = nopBroadcaster{}
	}
	if d.JudgeTimeout <= 0 {
		d.JudgeTimeout = defaultJudgeTTL
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Service{
		registry:     d.Registry,
		timers:       d.Timers,
		filter:       d.Filter,
		judge:        d.Judge,
		topics:       d.Topics,
		bus:          d.Broadcaster,
		judgeTimeout: d.JudgeTimeout,
		logger:       logger,
		ctx:          ctx,
		cancel:       cancel,
	}
}

// Create opens an invite session and returns the host's participant id.
func (s *Service) Create(name, hint string) (*models.Session, string, error) {
	sess, err := s.registry.CreateInviteSession(name)
	if err != nil {
		return nil, "", err
	}
	if hint != "" {
		if sess, err = s.registry.SetHint(sess.ID, hint); err != nil {
			return nil, "", err
		}
	}
	return sess, sess.Participants[models.Proponent].ID, nil
}

// JoinInvite seats a guest by invite code.
func (s *Service) JoinInvite(code, name string) (*models.Session, string, error) {
	sess, pid, err := s.registry.JoinInviteSession(code, name)
	if err != nil {
		return nil, "", err
	}
	s.publish(sess)
	return sess, pid, nil
}

// JoinRandom pairs the caller with a waiting player or makes them wait.
func (s *Service) JoinRandom(name string) (*models.Session, string, bool, error) {
	sess, pid, matched, err := s.registry.JoinRandomMatch(name)
	if err != nil {
		return nil, "", false, err
	}
	if matched {
		s.publish(sess)
	}
	return sess, pid, matched, nil
}

// Get returns a snapshot.
func (s *Service) Get(id string) (*models.Session, error) {
	return s.registry.Get(id)
}

// RoleOf returns the role the participant currently holds.
func (s *Service) RoleOf(id, participantID string) (models.Role, error) {
	return s.registry.ResolveRole(id, participantID)
}

// Timers reports the remaining deadlines of a session.
func (s *Service) Timers(id string) (*TimerView, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	v := &TimerView{SessionID: sess.ID, Status: sess.Status, TotalElapsed: sess.TotalElapsedSeconds}
	if sess.Status == models.StatusDebating {
		turn := sess.CurrentTurn
		v.CurrentTurn = &turn
	}
	if left, ok := s.timers.RemainingTurnTime(id); ok {
		v.TurnRemaining = &left
	}
	if left, ok := s.timers.RemainingTotalTime(id); ok {
		v.TotalRemaining = &left
	}
	return v, nil
}

// Topics returns the offered topics, asking the topic source when there are
// none yet or when refresh is set.
func (s *Service) Topics(ctx context.Context, id string, refresh bool) (*TopicsView, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if len(sess.TopicOptions) > 0 && !refresh {
		return topicsView(sess), nil
	}
	if refresh && sess.TopicRefreshes >= sess.TopicRefreshLimit {
		return nil, sessions.ErrRefreshLimit
	}
	topics := s.topics.Suggest(ctx, oracle.TopicRequest{Mode: string(sess.Metadata.Mode), Hint: sess.Metadata.Hint})
	sess, err = s.registry.SetTopics(id, topics, refresh)
	if err != nil {
		return nil, err
	}
	s.publish(sess)
	return topicsView(sess), nil
}

// ChooseTopic fixes the topic, either from the offered list or, where the
// session allows it, free text.
func (s *Service) ChooseTopic(id, topic string, custom bool) (*models.Session, error) {
	sess, err := s.registry.ChooseTopic(id, topic, custom)
	if err != nil {
		return nil, err
	}
	s.bus.Broadcast(id, EventTopicSelected, map[string]string{"topic": sess.ChosenTopic})
	s.publish(sess)
	return sess, nil
}

// VetoTopic records the participant's veto and announces the selection when
// only one topic survives.
func (s *Service) VetoTopic(id, participantID, topic string) (*models.Session, error) {
	role, err := s.registry.ResolveRole(id, participantID)
	if err != nil {
		return nil, err
	}
	sess, selected, err := s.registry.VetoTopic(id, role, topic)
	if err != nil {
		return nil, err
	}
	s.bus.Broadcast(id, EventTopicVetoed, map[string]interface{}{"role": role, "topic": topic})
	if selected != "" {
		s.bus.Broadcast(id, EventTopicSelected, map[string]string{"topic": selected})
	}
	s.publish(sess)
	return sess, nil
}

// CoinToss acknowledges the coin toss. The first acknowledgement with both
// debaters seated starts the debate and its timers.
func (s *Service) CoinToss(id string) (*models.Session, error) {
	sess, started, err := s.registry.ResolveCoinToss(id)
	if err != nil {
		return nil, err
	}
	s.publish(sess)
	if started {
		s.bus.Broadcast(id, EventDebateStarted, NewView(sess))
		s.timers.StartTotalTimer(id, sess.TotalTimeLimit, s.totalExpired)
		s.startTurn(sess)
	}
	return sess, nil
}

// Submit records the participant's argument for the current turn. A debate
// that ran out of turns or warnings is handed to judging in the background.
func (s *Service) Submit(id, participantID, content string) (*sessions.SubmitOutcome, error) {
	role, err := s.registry.ResolveRole(id, participantID)
	if err != nil {
		return nil, err
	}
	clean, violations, err := s.filter.Clean(content)
	if err != nil {
		return nil, err
	}
	out, err := s.registry.SubmitArgument(id, sessions.Submission{
		Role:       role,
		Content:    clean,
		Violations: violations,
		Elapsed:    func() int { return s.timers.ConsumeTurnTime(id) },
	})
	if err != nil {
		return nil, err
	}

	s.bus.Broadcast(id, EventMessageNew, newMessageView(out.Argument))
	if violations > 0 {
		s.bus.Broadcast(id, EventModerationWarning, map[string]interface{}{
			"role":         role,
			"warnings":     out.Warnings,
			"max_warnings": out.Session.MaxWarnings,
		})
	}
	s.publish(out.Session)

	switch {
	case out.WarningsExhausted:
		s.logger.Info("warnings exhausted", zap.String("session_id", id), zap.String("role", role.String()))
		s.FinishAsync(id, ReasonWarnings)
	case out.MaxTurnsReached:
		s.FinishAsync(id, ReasonMaxTurns)
	default:
		s.startTurn(out.Session)
	}
	return out, nil
}

// Finish judges a debating session and returns the finished snapshot. A
// session that is already finished, or being judged by another caller, is
// returned unchanged.
func (s *Service) Finish(ctx context.Context, id, reason string) (*models.Session, error) {
	sess, ok, err := s.registry.BeginJudging(id, reason)
	if err != nil {
		return nil, err
	}
	if !ok {
		return sess, nil
	}
	return s.judgeReserved(ctx, sess)
}

// FinishAsync reserves the session for judging now and judges it in the
// background. Use Wait to block until background judging is done.
func (s *Service) FinishAsync(id, reason string) {
	sess, ok, err := s.registry.BeginJudging(id, reason)
	if err != nil || !ok {
		if err != nil {
			s.logger.Debug("finish skipped", zap.String("session_id", id), zap.Error(err))
		}
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		_, _ = s.judgeReserved(s.ctx, sess)
	}()
}

// Export returns a snapshot for reporting. A debate still in progress is
// judged first; when that fails the snapshot is returned without a result.
func (s *Service) Export(ctx context.Context, id string) (*models.Session, error) {
	sess, err := s.registry.Get(id)
	if err != nil {
		return nil, err
	}
	if sess.Result != nil || sess.Status != models.StatusDebating {
		return sess, nil
	}
	done, err := s.Finish(ctx, id, ReasonExport)
	if err != nil {
		s.logger.Warn("export without result", zap.String("session_id", id), zap.Error(err))
		return s.registry.Get(id)
	}
	return done, nil
}

// Attach marks the participant connected through handle. A debate whose turn
// timer is not running (after a failed judging run) gets a fresh one; the
// total deadline is restored when judging fails.
func (s *Service) Attach(id, participantID, handle string) (*models.Session, error) {
	role, err := s.registry.ResolveRole(id, participantID)
	if err != nil {
		return nil, err
	}
	sess, err := s.registry.Attach(id, role, handle)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("participant attached", zap.String("session_id", id), zap.String("role", role.String()))
	s.publish(sess)
	if sess.Status == models.StatusDebating && !sess.Judging && !s.timers.HasTurnTimer(id) {
		s.startTurn(sess)
	}
	return sess, nil
}

// Detach marks the participant disconnected if handle is still their channel.
func (s *Service) Detach(id, participantID, handle string) {
	role, err := s.registry.ResolveRole(id, participantID)
	if err != nil {
		return
	}
	sess, err := s.registry.Detach(id, role, handle)
	if err != nil {
		return
	}
	s.publish(sess)
}

// Wait blocks until background judging has finished.
func (s *Service) Wait() { s.wg.Wait() }

// Shutdown stops all timers, cancels background judging and waits for it.
func (s *Service) Shutdown() {
	s.timers.Shutdown()
	s.cancel()
	s.wg.Wait()
}

func (s *Service) judgeReserved(ctx context.Context, sess *models.Session) (*models.Session, error) {
	id := sess.ID
	log := s.logger.With(zap.String("session_id", id))
	s.timers.CancelAll(id)

	ctx, cancel := context.WithTimeout(ctx, s.judgeTimeout)
	defer cancel()
	result, err := s.judge.Judge(ctx, sess)
	if err != nil {
		s.registry.AbortJudging(id)
		s.restoreDeadline(id, log)
		if errors.Is(err, context.DeadlineExceeded) {
			log.Error("judging timed out", zap.Duration("timeout", s.judgeTimeout), zap.Error(err))
		} else {
			log.Error("judging failed", zap.Error(err))
		}
		s.bus.Broadcast(id, EventSessionError, newErrorView(err))
		if snap, getErr := s.registry.Get(id); getErr == nil {
			s.publish(snap)
		}
		return nil, err
	}
	done, err := s.registry.CompleteSession(id, result)
	if err != nil {
		return nil, err
	}
	s.bus.Broadcast(id, EventDebateFinished, NewView(done))
	s.publish(done)
	return done, nil
}

// restoreDeadline re-arms the total timer after a failed judging run cancelled
// it. A limit that already passed is retried one turn length from now.
func (s *Service) restoreDeadline(id string, log *zap.Logger) {
	left, retry, err := s.registry.DeadlineLeft(id)
	if err != nil {
		return
	}
	if left <= 0 {
		left = retry
	}
	s.timers.StartTotalTimer(id, left, s.totalExpired)
	log.Info("debate deadline restored", zap.Int("seconds", left))
}

// startTurn arms the turn timer for the turn in snap, unless that turn has
// already passed.
func (s *Service) startTurn(snap *models.Session) {
	id, seq := snap.ID, snap.TurnSeq
	armed := s.registry.OnCurrentTurn(id, seq, func(cur *models.Session) {
		s.timers.StartTurnTimer(id, cur.PerTurnLimit, func(string) { s.turnExpired(id, seq) })
	})
	if !armed {
		return
	}
	s.bus.Broadcast(id, EventTimerTurn, map[string]interface{}{
		"role":    snap.CurrentTurn,
		"seconds": snap.PerTurnLimit,
	})
}

func (s *Service) turnExpired(id string, seq uint64) {
	sess, expired, err := s.registry.ExpireTurn(id, seq)
	if err != nil || !expired {
		return
	}
	// The floor already passed; the side that ran out is the previous speaker.
	role := sess.CurrentTurn.Other()
	s.logger.Debug("turn expired", zap.String("session_id", id), zap.String("role", role.String()))
	s.bus.Broadcast(id, EventTimerTurnExpired, map[string]interface{}{"role": role})
	s.publish(sess)
	s.startTurn(sess)
}

func (s *Service) totalExpired(id string) {
	s.bus.Broadcast(id, EventTimerTotalExpired, struct{}{})
	if _, err := s.Finish(s.ctx, id, ReasonTimeUp); err != nil {
		s.logger.Warn("finish after time up failed", zap.String("session_id", id), zap.Error(err))
	}
}

func (s *Service) publish(sess *models.Session) {
	s.bus.Broadcast(sess.ID, EventSessionUpdate, NewView(sess))
}

func topicsView(sess *models.Session) *TopicsView {
	return &TopicsView{
		Topics:        sess.TopicOptions,
		RefreshesUsed: sess.TopicRefreshes,
		RefreshLimit:  sess.TopicRefreshLimit,
	}
}
