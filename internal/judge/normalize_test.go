package judge

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/letsee/debate-backend/internal/models"
)

func decode(t *testing.T, raw string) map[string]any {
	t.Helper()
	var m map[string]any
	require.NoError(t, json.Unmarshal([]byte(raw), &m))
	return m
}

func TestNormalizePayloadAlternateKeys(t *testing.T) {
	raw := decode(t, `{
		"per_argument": [
			{"turn": 0, "role": "pro", "score": 8.126, "rating_label": "Great", "comment": "sharp"},
			{"turn": "1", "role": "CON", "score": "6", "assessment": "Fine", "weaknesses": "thin evidence"},
			{"turn": 2, "score": 5},
			{"turn": 9, "score": 5},
			"garbage"
		],
		"overall": {"pro": 8.126, "con": 6, "judge": 1},
		"winner": "Proponent",
		"rationale": "pro argued better",
		"review": {
			"PRO": {"positives": ["clear", " "], "bad": "rushed"},
			"opponent": {"good": "calm", "development": ["more data"], "summary": "solid"},
			"summary": "good debate",
			"overall_highlights": ["turn 1"],
			"growth_areas": "pacing"
		}
	}`)
	transcript := []models.Argument{
		{SpeakerRole: models.Proponent, TurnIndex: 0},
		{SpeakerRole: models.Opponent, TurnIndex: 1},
		{SpeakerRole: models.Proponent, TurnIndex: 2},
	}

	p := NormalizePayload(raw, transcript)
	require.Len(t, p.PerArgument, 3, "entries without a resolvable role are dropped")

	require.Equal(t, 8.13, p.PerArgument[0].Score)
	require.Equal(t, "Great", p.PerArgument[0].Rating)
	require.Equal(t, "sharp", p.PerArgument[0].Feedback)

	require.Equal(t, 1, p.PerArgument[1].Turn)
	require.Equal(t, models.Opponent, p.PerArgument[1].Role)
	require.Equal(t, 6.0, p.PerArgument[1].Score)
	require.Equal(t, "Fine", p.PerArgument[1].Rating)
	require.Equal(t, []string{"thin evidence"}, p.PerArgument[1].Improvements)

	require.Equal(t, models.Proponent, p.PerArgument[2].Role, "role recovered from the transcript")
	require.Equal(t, "Developing", p.PerArgument[2].Rating, "missing rating derived from score")

	require.Equal(t, map[models.Role]float64{models.Proponent: 8.13, models.Opponent: 6}, p.Overall)
	require.Equal(t, "pro", p.Winner)
	require.Equal(t, "pro argued better", p.Summary)

	require.Equal(t, []string{"clear"}, p.Review.Pro.Strengths)
	require.Equal(t, []string{"rushed"}, p.Review.Pro.Improvements)
	require.Equal(t, []string{"calm"}, p.Review.Con.Strengths)
	require.Equal(t, []string{"more data"}, p.Review.Con.Improvements)
	require.Equal(t, "solid", p.Review.Con.Summary)
	require.Equal(t, "good debate", p.Review.Overall)
	require.Equal(t, []string{"turn 1"}, p.Review.Highlights)
	require.Equal(t, []string{"pacing"}, p.Review.Growth)
}

func TestNormalizePayloadEmpty(t *testing.T) {
	p := NormalizePayload(map[string]any{}, nil)
	require.Empty(t, p.PerArgument)
	require.Empty(t, p.Overall)
	require.Empty(t, p.Winner)
	require.Equal(t, []string{}, p.Review.Pro.Strengths)
	require.Equal(t, []string{}, p.Review.Con.Improvements)
	require.Empty(t, p.Review.Overall)
}

func TestNormalizePayloadFallsBackToSummary(t *testing.T) {
	p := NormalizePayload(decode(t, `{"summary": "even", "winner": "draw", "per_argument": [{"turn": 0, "role": "con", "score": 42}]}`), nil)
	require.Equal(t, "even", p.Review.Overall)
	require.Equal(t, "tie", p.Winner)
	require.Equal(t, 10.0, p.PerArgument[0].Score)
	require.Equal(t, "Outstanding", p.PerArgument[0].Rating)
}
