// Package judge turns a debate transcript into a SessionResult through five
// stages: Intake, Understand, Decide, Review and Deliver.
//
// Only the Understand stage may involve an external scoring oracle. When the
// oracle is not configured the deterministic Heuristic scores the debate; when
// it is configured but fails, judging fails with ErrScoringUnavailable unless
// the caller opted into heuristic degradation.
package judge

import (
	"context"
	"errors"
	"math"

	"go.uber.org/zap"

	"github.com/letsee/debate-backend/internal/models"
	"github.com/letsee/debate-backend/pkg/apperr"
)

var (
	ErrInsufficientParticipants = apperr.New(apperr.KindValidation, "both debaters must join before judging")
	ErrOracleNotConfigured      = apperr.New(apperr.KindScoringUnavailable, "scoring oracle not configured")
	ErrScoringUnavailable       = apperr.New(apperr.KindScoringUnavailable, "scoring unavailable")
)

const (
	relatedLimit      = 5
	overtimeDivisor   = 30.0
	forfeitPenalty    = 2.5
	defaultTopicLabel = "General debate"
)

// ScoreRequest is what a Scorer sees of a debate.
type ScoreRequest struct {
	SessionID  string
	Topic      string
	Transcript []models.Argument
	Metadata   models.Metadata
	Related    []models.Material
	Pace       int
}

// Payload is the canonical scoring schema. Overall and Winner are what the
// scorer reported; the Decide stage recomputes both from PerArgument.
type Payload struct {
	PerArgument []models.ArgumentScore
	Overall     map[models.Role]float64
	Winner      string
	Summary     string
	Review      models.Review
	Source      string
}

// Scorer produces a scoring payload for a transcript.
type Scorer interface {
	Score(ctx context.Context, req ScoreRequest) (*Payload, error)
}

// Retriever finds prior material similar to a text.
type Retriever interface {
	Search(ctx context.Context, text string, limit int) ([]models.Material, error)
}

// Archiver persists a finished transcript for later retrieval.
type Archiver interface {
	Archive(ctx context.Context, sessionID string, args []models.Argument) error
}

// Judge runs the pipeline. The zero value is not usable; use New.
type Judge struct {
	scorer          Scorer
	heuristic       *Heuristic
	retriever       Retriever
	archiver        Archiver
	fallbackOnError bool
	logger          *zap.Logger
}

// Option configures a Judge.
type Option func(*Judge)

// WithScorer sets the scoring oracle.
func WithScorer(s Scorer) Option { return func(j *Judge) { j.scorer = s } }

// WithRetriever sets the related-material source used at intake.
func WithRetriever(r Retriever) Option { return func(j *Judge) { j.retriever = r } }

// WithArchiver sets the transcript sink used at delivery.
func WithArchiver(a Archiver) Option { return func(j *Judge) { j.archiver = a } }

// WithFallbackOnError scores with the heuristic when the oracle call fails.
func WithFallbackOnError(enabled bool) Option {
	return func(j *Judge) { j.fallbackOnError = enabled }
}

// New creates a judge. Without WithScorer every debate is scored by the heuristic.
func New(logger *zap.Logger, opts ...Option) *Judge {
	if logger == nil {
		logger = zap.NewNop()
	}
	j := &Judge{heuristic: NewHeuristic(), logger: logger}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

type intake struct {
	req   ScoreRequest
	roles []models.Role
}

type decision struct {
	payload     *Payload
	totals      map[models.Role]float64
	penalties   map[models.Role]float64
	winner      string
	needsReview bool
}

// Judge scores a snapshot of a session. It never mutates the snapshot and
// holds no locks; the caller attaches the result.
func (j *Judge) Judge(ctx context.Context, s *models.Session) (*models.SessionResult, error) {
	log := j.logger.With(zap.String("session_id", s.ID))
	log.Info("judging started", zap.Int("arguments", len(s.Transcript)))

	in, err := j.intake(ctx, s, log)
	if err != nil {
		return nil, err
	}
	payload, err := j.understand(ctx, in, log)
	if err != nil {
		return nil, err
	}
	d := j.decide(s, in, payload, log)
	j.review(d, log)
	return j.deliver(ctx, s, d, log), nil
}

func (j *Judge) intake(ctx context.Context, s *models.Session, log *zap.Logger) (*intake, error) {
	if !s.BothPresent() {
		log.Warn("intake rejected", zap.String("stage", "intake"), zap.Int("participants", s.ParticipantCount()))
		return nil, ErrInsufficientParticipants
	}
	topic := s.ChosenTopic
	if topic == "" {
		topic = defaultTopicLabel
	}
	in := &intake{
		req: ScoreRequest{
			SessionID:  s.ID,
			Topic:      topic,
			Transcript: s.Transcript,
			Metadata:   s.Metadata,
			Pace:       defaultPace,
		},
		roles: s.PresentRoles(),
	}
	if j.retriever != nil && len(s.Transcript) > 0 {
		last := s.Transcript[len(s.Transcript)-1]
		related, err := j.retriever.Search(ctx, last.Content, relatedLimit)
		if err != nil {
			log.Warn("related material unavailable", zap.String("stage", "intake"), zap.Error(err))
		} else {
			in.req.Related = related
		}
	}
	log.Info("intake complete", zap.String("stage", "intake"), zap.Int("related", len(in.req.Related)))
	return in, nil
}

func (j *Judge) understand(ctx context.Context, in *intake, log *zap.Logger) (*Payload, error) {
	if j.scorer == nil {
		return j.heuristicPayload(ctx, in, log, "oracle not configured")
	}
	payload, err := j.scorer.Score(ctx, in.req)
	switch {
	case err == nil && payload != nil:
		log.Info("understand complete", zap.String("stage", "understand"), zap.String("source", payload.Source))
		return payload, nil
	case errors.Is(err, ErrOracleNotConfigured):
		return j.heuristicPayload(ctx, in, log, "oracle not configured")
	case err == nil:
		err = errors.New("empty scoring payload")
	}
	if j.fallbackOnError {
		log.Warn("oracle failed, degrading to heuristic", zap.String("stage", "understand"), zap.Error(err))
		return j.heuristicPayload(ctx, in, log, "oracle failed")
	}
	log.Error("oracle failed", zap.String("stage", "understand"), zap.Error(err))
	return nil, apperr.Wrap(ErrScoringUnavailable, err)
}

func (j *Judge) heuristicPayload(ctx context.Context, in *intake, log *zap.Logger, why string) (*Payload, error) {
	payload, err := j.heuristic.Score(ctx, in.req)
	if err != nil {
		return nil, err
	}
	log.Info("understand complete", zap.String("stage", "understand"), zap.String("source", heuristicTag), zap.String("reason", why))
	return payload, nil
}

func (j *Judge) decide(s *models.Session, in *intake, p *Payload, log *zap.Logger) *decision {
	totals := make(map[models.Role]float64, len(in.roles))
	for _, r := range in.roles {
		totals[r] = 0
	}
	for _, score := range p.PerArgument {
		if _, ok := totals[score.Role]; ok {
			totals[score.Role] += score.Score
		}
	}
	penalties := TimePenalties(s)
	for r, pen := range penalties {
		if _, ok := totals[r]; ok {
			totals[r] -= pen
		}
	}
	for r, v := range totals {
		totals[r] = round2(v)
	}
	d := &decision{payload: p, totals: totals, penalties: penalties, winner: leader(totals)}
	if p.Winner != "" && p.Winner != d.winner {
		log.Debug("scorer winner overridden by adjusted totals", zap.String("reported", p.Winner), zap.String("winner", d.winner))
	}
	log.Info("decide complete", zap.String("stage", "decide"), zap.String("winner", d.winner))
	return d
}

// TimePenalties returns the per-role deductions: overtime split evenly between
// both sides, plus a forfeit penalty for a side that never used any time.
func TimePenalties(s *models.Session) map[models.Role]float64 {
	penalties := make(map[models.Role]float64)
	if s.TotalTimeLimit > 0 && s.TotalElapsedSeconds > s.TotalTimeLimit {
		overtime := float64(s.TotalElapsedSeconds - s.TotalTimeLimit)
		half := round2(overtime/overtimeDivisor) / 2
		penalties[models.Proponent] = half
		penalties[models.Opponent] = half
	}
	for _, r := range s.PresentRoles() {
		if s.Participants[r].TimeSpentSeconds == 0 {
			penalties[r] += forfeitPenalty
		}
	}
	return penalties
}

func (j *Judge) review(d *decision, log *zap.Logger) {
	switch {
	case len(d.payload.PerArgument) == 0 || len(d.totals) == 0:
		d.needsReview = true
	default:
		distinct := make(map[float64]bool, len(d.totals))
		for _, v := range d.totals {
			distinct[round2(v)] = true
		}
		d.needsReview = len(distinct) == 1
	}
	if len(d.totals) == 0 {
		d.winner = "tie"
	}
	log.Info("review complete", zap.String("stage", "review"), zap.Bool("needs_review", d.needsReview))
}

func (j *Judge) deliver(ctx context.Context, s *models.Session, d *decision, log *zap.Logger) *models.SessionResult {
	if j.archiver != nil && len(s.Transcript) > 0 {
		if err := j.archiver.Archive(ctx, s.ID, s.Transcript); err != nil {
			log.Warn("transcript archive failed", zap.String("stage", "deliver"), zap.Error(err))
		}
	}
	result := &models.SessionResult{
		OverallScore:      d.totals,
		PerArgumentScores: d.payload.PerArgument,
		Rationale:         d.payload.Summary,
		FlaggedForReview:  d.needsReview,
		Review:            d.payload.Review,
	}
	if role, err := models.ParseRole(d.winner); err == nil {
		result.WinnerRole = &role
	}
	result = result.Clone()
	log.Info("deliver complete", zap.String("stage", "deliver"), zap.String("winner", result.Winner()))
	return result
}

// nonNegative guards oracle scores that arrive out of range.
func nonNegative(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	return v
}
