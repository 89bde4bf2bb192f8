package oracle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/letsee/debate-backend/internal/judge"
)

const scoringPrompt = `You are an impartial debate adjudicator. Rate each argument from 1 to 10 ` +
	`considering clarity, evidence, and responsiveness. Respond with a JSON object with keys: ` +
	`"per_argument" (list of objects with turn, role, score, rating, feedback, strengths, improvements), ` +
	`"overall" (object mapping role to score), "winner" ("pro", "con" or "tie"), "summary" (short rationale) ` +
	`and "review" (object with "pro" and "con" entries holding strengths, improvements and summary, ` +
	`plus "overall", "highlights" and "growth").`

type transcriptEntry struct {
	Turn      int    `json:"turn"`
	Role      string `json:"role"`
	Speaker   string `json:"speaker"`
	Content   string `json:"content"`
	TimeTaken int    `json:"time_taken"`
}

// Scorer is the scoring oracle backed by a chat model.
type Scorer struct {
	client *Client
	logger *zap.Logger
}

// NewScorer wraps client. A nil or unconfigured client makes every Score call
// return judge.ErrOracleNotConfigured.
func NewScorer(client *Client, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{client: client, logger: logger}
}

// Score asks the model to judge the transcript.
func (s *Scorer) Score(ctx context.Context, req judge.ScoreRequest) (*judge.Payload, error) {
	if !s.client.Configured() {
		return nil, judge.ErrOracleNotConfigured
	}
	entries := make([]transcriptEntry, 0, len(req.Transcript))
	for _, a := range req.Transcript {
		entries = append(entries, transcriptEntry{
			Turn:      a.TurnIndex,
			Role:      a.SpeakerRole.String(),
			Speaker:   a.SpeakerName,
			Content:   a.Content,
			TimeTaken: a.TimeTakenSeconds,
		})
	}
	transcript, err := json.Marshal(entries)
	if err != nil {
		return nil, fmt.Errorf("oracle: marshal transcript: %w", err)
	}

	var user strings.Builder
	fmt.Fprintf(&user, "The debate topic was: %q.\n", req.Topic)
	if req.Metadata.Mode != "" {
		fmt.Fprintf(&user, "Match mode: %s.\n", req.Metadata.Mode)
	}
	if len(req.Related) > 0 {
		user.WriteString("Related prior arguments:\n")
		for _, m := range req.Related {
			fmt.Fprintf(&user, "- (%s) %s\n", m.Role, m.Content)
		}
	}
	user.WriteString("Transcript:\n")
	user.Write(transcript)

	reply, err := s.client.Chat(ctx, []Message{
		{Role: "system", Content: scoringPrompt},
		{Role: "user", Content: user.String()},
	}, true)
	if errors.Is(err, ErrNotConfigured) {
		return nil, judge.ErrOracleNotConfigured
	}
	if err != nil {
		return nil, err
	}
	parsed, err := ExtractJSON(reply)
	if err != nil {
		return nil, err
	}
	raw, ok := parsed.(map[string]any)
	if !ok {
		return nil, errors.New("oracle: scoring reply is not an object")
	}
	payload := judge.NormalizePayload(raw, req.Transcript)
	s.logger.Debug("oracle scored debate", zap.String("session_id", req.SessionID), zap.Int("scores", len(payload.PerArgument)))
	return payload, nil
}
