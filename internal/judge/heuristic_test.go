package judge

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/letsee/debate-backend/internal/models"
)

func arg(role models.Role, turn int, content string, seconds int) models.Argument {
	return models.Argument{SpeakerRole: role, TurnIndex: turn, Content: content, TimeTakenSeconds: seconds}
}

func TestScoreArgumentBreakdown(t *testing.T) {
	h := NewHeuristic()
	a := arg(models.Proponent, 0, "Cars pollute cities. Studies show 40 percent of emissions come from traffic.", 30)
	score, b := h.ScoreArgument(a, "Cities should ban cars", 30)

	require.Equal(t, 12, b.Words)
	require.Equal(t, 2, b.Sentences)
	require.InDelta(t, 0.3, b.Development, 1e-9)
	require.InDelta(t, 0.9, b.Evidence, 1e-9)
	require.Zero(t, b.Logic)
	require.InDelta(t, 0.3, b.Clarity, 1e-9)
	require.InDelta(t, 0.75, b.Relevance, 1e-9)
	require.Zero(t, b.Fallacy)
	require.Zero(t, b.Pace)
	require.Equal(t, 7.25, score.Score)
	require.Equal(t, "Strong", score.Rating)
	require.Equal(t, models.Proponent, score.Role)
}

func TestScoreArgumentDeterministic(t *testing.T) {
	h := NewHeuristic()
	a := arg(models.Opponent, 3, "However, the data is clear because 3 surveys agree. Therefore we should act.", 22)
	first, _ := h.ScoreArgument(a, "Is universal basic income a sustainable policy?", 30)
	for i := 0; i < 20; i++ {
		again, _ := h.ScoreArgument(a, "Is universal basic income a sustainable policy?", 30)
		require.Equal(t, first, again)
	}
}

func TestScoreArgumentClamped(t *testing.T) {
	h := NewHeuristic()
	topic := "Is universal basic income a sustainable policy?"

	empty, _ := h.ScoreArgument(arg(models.Proponent, 0, "", 0), topic, 30)
	require.Equal(t, 4.5, empty.Score)
	require.Equal(t, "Developing", empty.Rating)

	sentence := "Research data because studies show 50 percent therefore economy jobs income growth however evidence thus cost market tax wage matters. "
	perfect, b := h.ScoreArgument(arg(models.Proponent, 0, strings.Repeat(sentence, 3), 30), topic, 30)
	require.Equal(t, 60, b.Words)
	require.Equal(t, 10.0, perfect.Score, "raw score above ten is clamped")
	require.Equal(t, "Outstanding", perfect.Rating)

	huge := strings.Repeat("idiot stupid obviously ", 3400)
	worst, b := h.ScoreArgument(arg(models.Opponent, 1, huge, 600), topic, 30)
	require.Greater(t, b.Words, 10000)
	require.Equal(t, 2.0, b.Fallacy)
	require.Equal(t, 1.0, b.Pace)
	require.GreaterOrEqual(t, worst.Score, 1.0)
	require.LessOrEqual(t, worst.Score, 10.0)
}

func TestPacePenalty(t *testing.T) {
	h := NewHeuristic()
	a := arg(models.Proponent, 0, "Short point.", 15)
	_, b := h.ScoreArgument(a, "", 30)
	require.InDelta(t, 0.25, b.Pace, 1e-9)

	a.TimeTakenSeconds = 30
	_, b = h.ScoreArgument(a, "", 0)
	require.Zero(t, b.Pace, "zero pace defaults to thirty seconds")
}

func TestLabelFor(t *testing.T) {
	cases := map[float64]string{
		10:   "Outstanding",
		8.5:  "Outstanding",
		8.49: "Strong",
		7:    "Strong",
		5.5:  "Competent",
		4:    "Developing",
		3.99: "Needs Improvement",
		1:    "Needs Improvement",
	}
	for score, want := range cases {
		require.Equal(t, want, LabelFor(score), "score=%v", score)
	}
}

func TestHeuristicPayload(t *testing.T) {
	h := NewHeuristic()
	p, err := h.Score(context.Background(), ScoreRequest{
		Topic: "Cities should ban cars",
		Transcript: []models.Argument{
			arg(models.Proponent, 0, "Cars pollute cities. Studies show 40 percent of emissions come from traffic.", 30),
			arg(models.Opponent, 1, "No.", 5),
		},
	})
	require.NoError(t, err)
	require.Len(t, p.PerArgument, 2)
	require.Equal(t, "pro", p.Winner)
	require.Equal(t, heuristicTag, p.Source)
	require.Equal(t, 7.25, p.Overall[models.Proponent])
	require.NotEmpty(t, p.Review.Pro.Summary)
	require.NotEmpty(t, p.Review.Con.Improvements)
	require.Len(t, p.Review.Highlights, 2)
	require.Equal(t, p.Summary, p.Review.Overall)
}

func TestClassifyTopic(t *testing.T) {
	cat, vocab := classifyTopic("Do large language models improve developer productivity?")
	require.Equal(t, "technology", cat)
	require.True(t, vocab["algorithm"])
	require.True(t, vocab["productivity"])

	cat, vocab = classifyTopic("Should pineapple belong on pizza?")
	require.Equal(t, "general", cat)
	require.True(t, vocab["pineapple"])
	require.False(t, vocab["should"])
}
