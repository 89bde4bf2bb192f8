package judge

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/letsee/debate-backend/internal/models"
	"github.com/letsee/debate-backend/pkg/apperr"
)

type stubScorer struct {
	payload *Payload
	err     error
	got     ScoreRequest
	calls   int
}

func (s *stubScorer) Score(_ context.Context, req ScoreRequest) (*Payload, error) {
	s.calls++
	s.got = req
	return s.payload, s.err
}

type stubRetriever struct {
	text string
	out  []models.Material
	err  error
}

func (r *stubRetriever) Search(_ context.Context, text string, limit int) ([]models.Material, error) {
	r.text = text
	return r.out, r.err
}

type stubArchiver struct {
	sessionID string
	args      int
	err       error
}

func (a *stubArchiver) Archive(_ context.Context, sessionID string, args []models.Argument) error {
	a.sessionID = sessionID
	a.args = len(args)
	return a.err
}

func finishedSession() *models.Session {
	s := &models.Session{
		ID:             "s1",
		Status:         models.StatusDebating,
		ChosenTopic:    "Cities should ban cars",
		PerTurnLimit:   30,
		TotalTimeLimit: 600,
	}
	s.Seat(models.Proponent, &models.Participant{Name: "Alice", TimeSpentSeconds: 20})
	s.Seat(models.Opponent, &models.Participant{Name: "Bob", TimeSpentSeconds: 20})
	s.Transcript = []models.Argument{
		arg(models.Proponent, 0, "Cars pollute cities.", 10),
		arg(models.Opponent, 1, "Buses need roads too.", 10),
	}
	s.TotalElapsedSeconds = 40
	return s
}

func scored(pro, con float64) *Payload {
	return &Payload{
		PerArgument: []models.ArgumentScore{
			{Turn: 0, Role: models.Proponent, Score: pro},
			{Turn: 1, Role: models.Opponent, Score: con},
		},
		Summary: "close debate",
		Source:  "oracle",
	}
}

func TestJudgeWinner(t *testing.T) {
	scorer := &stubScorer{payload: scored(7, 6)}
	j := New(nil, WithScorer(scorer))
	res, err := j.Judge(context.Background(), finishedSession())
	require.NoError(t, err)
	require.Equal(t, "pro", res.Winner())
	require.Equal(t, 7.0, res.OverallScore[models.Proponent])
	require.Equal(t, 6.0, res.OverallScore[models.Opponent])
	require.False(t, res.FlaggedForReview)
	require.Equal(t, "close debate", res.Rationale)
	require.Len(t, res.PerArgumentScores, 2)

	require.Equal(t, "Cities should ban cars", scorer.got.Topic)
	require.Equal(t, 30, scorer.got.Pace)
}

func TestJudgePaceIgnoresTurnLimit(t *testing.T) {
	scorer := &stubScorer{payload: scored(7, 6)}
	j := New(nil, WithScorer(scorer))
	s := finishedSession()
	s.PerTurnLimit = 90
	_, err := j.Judge(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, 30, scorer.got.Pace)
}

func TestJudgeOvertimePenalty(t *testing.T) {
	s := finishedSession()
	s.TotalElapsedSeconds = 660
	j := New(nil, WithScorer(&stubScorer{payload: scored(7, 6)}))
	res, err := j.Judge(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, 6.0, res.OverallScore[models.Proponent])
	require.Equal(t, 5.0, res.OverallScore[models.Opponent])
}

func TestJudgeForfeitPenalty(t *testing.T) {
	s := finishedSession()
	s.Participants[models.Proponent].TimeSpentSeconds = 0
	j := New(nil, WithScorer(&stubScorer{payload: scored(7, 6)}))
	res, err := j.Judge(context.Background(), s)
	require.NoError(t, err)
	require.Equal(t, "con", res.Winner())
	require.Equal(t, 4.5, res.OverallScore[models.Proponent])
}

func TestTimePenalties(t *testing.T) {
	s := finishedSession()
	s.TotalElapsedSeconds = 645
	s.Participants[models.Opponent].TimeSpentSeconds = 0
	p := TimePenalties(s)
	require.InDelta(t, 0.75, p[models.Proponent], 1e-9)
	require.InDelta(t, 3.25, p[models.Opponent], 1e-9)

	require.Empty(t, TimePenalties(finishedSession()))
}

func TestJudgeTieIsFlagged(t *testing.T) {
	j := New(nil, WithScorer(&stubScorer{payload: scored(6.004, 6.001)}))
	res, err := j.Judge(context.Background(), finishedSession())
	require.NoError(t, err)
	require.True(t, res.FlaggedForReview)
	require.Equal(t, "tie", res.Winner())
	require.Nil(t, res.WinnerRole)
}

func TestJudgeNoScoresIsFlagged(t *testing.T) {
	s := finishedSession()
	s.Transcript = nil
	j := New(nil, WithScorer(&stubScorer{payload: &Payload{}}))
	res, err := j.Judge(context.Background(), s)
	require.NoError(t, err)
	require.True(t, res.FlaggedForReview)
	require.Equal(t, "tie", res.Winner())
}

func TestJudgeRequiresBothParticipants(t *testing.T) {
	s := finishedSession()
	s.Participants[models.Opponent] = nil
	scorer := &stubScorer{payload: scored(7, 6)}
	_, err := New(nil, WithScorer(scorer)).Judge(context.Background(), s)
	require.ErrorIs(t, err, ErrInsufficientParticipants)
	require.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	require.Zero(t, scorer.calls)
}

func TestJudgeHeuristicWhenUnconfigured(t *testing.T) {
	res, err := New(nil).Judge(context.Background(), finishedSession())
	require.NoError(t, err)
	require.Contains(t, res.Rationale, "Heuristic")
	require.Len(t, res.PerArgumentScores, 2)

	res2, err := New(nil, WithScorer(&stubScorer{err: ErrOracleNotConfigured})).Judge(context.Background(), finishedSession())
	require.NoError(t, err)
	require.Equal(t, res.OverallScore, res2.OverallScore)
}

func TestJudgeOracleFailureSurfaces(t *testing.T) {
	scorer := &stubScorer{err: errors.New("upstream 500")}
	_, err := New(nil, WithScorer(scorer)).Judge(context.Background(), finishedSession())
	require.ErrorIs(t, err, ErrScoringUnavailable)
	require.Equal(t, apperr.KindScoringUnavailable, apperr.KindOf(err))
	require.Contains(t, err.Error(), "upstream 500")

	res, err := New(nil, WithScorer(scorer), WithFallbackOnError(true)).Judge(context.Background(), finishedSession())
	require.NoError(t, err)
	require.Contains(t, res.Rationale, "Heuristic")
}

func TestJudgeCollaboratorsAreBestEffort(t *testing.T) {
	retriever := &stubRetriever{err: errors.New("db down")}
	archiver := &stubArchiver{err: errors.New("queue down")}
	j := New(nil, WithRetriever(retriever), WithArchiver(archiver))
	res, err := j.Judge(context.Background(), finishedSession())
	require.NoError(t, err)
	require.NotNil(t, res)
	require.Equal(t, "Buses need roads too.", retriever.text)
	require.Equal(t, "s1", archiver.sessionID)
	require.Equal(t, 2, archiver.args)
}

func TestJudgePassesRelatedMaterial(t *testing.T) {
	retriever := &stubRetriever{out: []models.Material{{SessionID: "old", Content: "prior"}}}
	scorer := &stubScorer{payload: scored(7, 6)}
	_, err := New(nil, WithScorer(scorer), WithRetriever(retriever)).Judge(context.Background(), finishedSession())
	require.NoError(t, err)
	require.Len(t, scorer.got.Related, 1)
}

func TestJudgeDoesNotMutateSnapshot(t *testing.T) {
	s := finishedSession()
	payload := scored(7, 6)
	_, err := New(nil, WithScorer(&stubScorer{payload: payload})).Judge(context.Background(), s)
	require.NoError(t, err)
	require.Nil(t, s.Result)
	require.Equal(t, models.StatusDebating, s.Status)
}
