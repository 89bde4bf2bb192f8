package oracle

import (
	"context"
	"math/rand/v2"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/letsee/debate-backend/internal/judge"
	"github.com/letsee/debate-backend/internal/models"
)

func scoreRequest() judge.ScoreRequest {
	return judge.ScoreRequest{
		SessionID: "s1",
		Topic:     "Should voting be mandatory?",
		Transcript: []models.Argument{
			{SpeakerRole: models.Proponent, SpeakerName: "Alice", Content: "Yes.", TurnIndex: 0},
			{SpeakerRole: models.Opponent, SpeakerName: "Bob", Content: "No.", TurnIndex: 1},
		},
		Related: []models.Material{{Role: models.Opponent, Content: "earlier point"}},
	}
}

func TestScorerNormalisesReply(t *testing.T) {
	reply := "```json\n" + `{"per_argument":[{"turn":0,"role":"pro","score":8,"comment":"good"},{"turn":1,"score":6}],` +
		`"winner":"pro","summary":"pro wins","review":{"PRO":{"positives":["clear"]}}}` + "\n```"
	var last chatRequest
	srv := replyServer(t, http.StatusOK, reply, &last)
	defer srv.Close()

	s := NewScorer(NewClient("sk-test", WithBaseURL(srv.URL)), nil)
	p, err := s.Score(context.Background(), scoreRequest())
	require.NoError(t, err)
	require.Len(t, p.PerArgument, 2)
	require.Equal(t, "good", p.PerArgument[0].Feedback)
	require.Equal(t, models.Opponent, p.PerArgument[1].Role)
	require.Equal(t, "pro", p.Winner)
	require.Equal(t, []string{"clear"}, p.Review.Pro.Strengths)

	require.Len(t, last.Messages, 2)
	require.Contains(t, last.Messages[1].Content, "Should voting be mandatory?")
	require.Contains(t, last.Messages[1].Content, "earlier point")
	require.Contains(t, last.Messages[1].Content, `"speaker":"Bob"`)
}

func TestScorerUnconfigured(t *testing.T) {
	_, err := NewScorer(NewClient(""), nil).Score(context.Background(), scoreRequest())
	require.ErrorIs(t, err, judge.ErrOracleNotConfigured)
	_, err = NewScorer(nil, nil).Score(context.Background(), scoreRequest())
	require.ErrorIs(t, err, judge.ErrOracleNotConfigured)
}

func TestScorerFailures(t *testing.T) {
	srv := replyServer(t, http.StatusInternalServerError, "", nil)
	defer srv.Close()
	_, err := NewScorer(NewClient("sk-test", WithBaseURL(srv.URL)), nil).Score(context.Background(), scoreRequest())
	require.Error(t, err)
	require.NotErrorIs(t, err, judge.ErrOracleNotConfigured)

	bad := replyServer(t, http.StatusOK, `["not", "an", "object"]`, nil)
	defer bad.Close()
	_, err = NewScorer(NewClient("sk-test", WithBaseURL(bad.URL)), nil).Score(context.Background(), scoreRequest())
	require.Error(t, err)
}

func TestTopicsFromModel(t *testing.T) {
	var last chatRequest
	srv := replyServer(t, http.StatusOK, `["A?", "B?", "C?"]`, &last)
	defer srv.Close()

	topics := NewTopics(NewClient("sk-test", WithBaseURL(srv.URL)), nil, nil)
	got := topics.Suggest(context.Background(), TopicRequest{Mode: "invite", Hint: "sports"})
	require.Equal(t, []string{"A?", "B?", "C?"}, got)
	require.True(t, strings.HasSuffix(last.Messages[0].Content, "involve: sports."))
}

func TestTopicsFallback(t *testing.T) {
	srv := replyServer(t, http.StatusServiceUnavailable, "", nil)
	defer srv.Close()

	for _, c := range []*Client{nil, NewClient(""), NewClient("sk-test", WithBaseURL(srv.URL))} {
		topics := NewTopics(c, rand.New(rand.NewPCG(1, 2)), nil)
		got := topics.Suggest(context.Background(), TopicRequest{})
		require.Len(t, got, 3)
		seen := map[string]bool{}
		for _, topic := range got {
			require.Contains(t, FallbackTopics, topic)
			require.False(t, seen[topic], "triplet has distinct topics")
			seen[topic] = true
		}
	}
}

func TestTopicsUnusableReplyLogsHead(t *testing.T) {
	reply := "Here are some thoughts. " + strings.Repeat("ünparsable ", 500)
	srv := replyServer(t, http.StatusOK, reply, nil)
	defer srv.Close()
	core, logs := observer.New(zap.WarnLevel)

	topics := NewTopics(NewClient("sk-test", WithBaseURL(srv.URL)), rand.New(rand.NewPCG(1, 2)), zap.New(core))
	got := topics.Suggest(context.Background(), TopicRequest{})
	require.Len(t, got, 3)

	entries := logs.FilterMessage("topic reply unusable, using fallback pool").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	require.NotContains(t, fields, "reply")
	require.EqualValues(t, len(reply), fields["reply_len"])
	head, ok := fields["reply_head"].(string)
	require.True(t, ok)
	require.True(t, strings.HasPrefix(head, "Here are some thoughts. ünparsable"))
	require.Equal(t, replyHeadRunes+3, len([]rune(head)))
}

func TestReplyHead(t *testing.T) {
	require.Equal(t, "short", replyHead("short"))
	require.Equal(t, strings.Repeat("é", replyHeadRunes)+"...", replyHead(strings.Repeat("é", 200)))
}

func TestTopicsFallbackIsSeedDeterministic(t *testing.T) {
	a := NewTopics(nil, rand.New(rand.NewPCG(7, 7)), nil).Suggest(context.Background(), TopicRequest{})
	b := NewTopics(nil, rand.New(rand.NewPCG(7, 7)), nil).Suggest(context.Background(), TopicRequest{})
	require.Equal(t, a, b)
}
