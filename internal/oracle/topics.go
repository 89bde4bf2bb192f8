package oracle

import (
	"context"
	"math/rand/v2"
	"sync"

	"go.uber.org/zap"
)

const topicPrompt = "You are helping set up a friendly debate. Suggest three neutral, contemporary topics " +
	"that work well for a timed debate. Avoid controversial or harmful content. " +
	"Respond as a JSON list of short topic strings."

const replyHeadRunes = 120

// FallbackTopics is drawn from when the model is unavailable.
var FallbackTopics = []string{
	"Should remote teams adopt four-day work weeks?",
	"Is universal basic income a sustainable policy?",
	"Do large language models improve developer productivity?",
	"Should cities ban cars from their centres?",
	"Is homework an effective learning tool?",
	"Should social media platforms verify user identities?",
	"Is nuclear energy the best path to lower emissions?",
	"Should voting be mandatory?",
	"Are standardised tests a fair measure of ability?",
	"Should sugary drinks carry a health tax?",
	"Is space exploration worth the public cost?",
	"Should schools teach personal finance?",
}

// TopicRequest carries the optional context for a suggestion.
type TopicRequest struct {
	Mode string
	Hint string
}

// Topics suggests debate topics, degrading to FallbackTopics.
type Topics struct {
	client *Client
	logger *zap.Logger

	mu  sync.Mutex
	rng *rand.Rand
}

// NewTopics creates a topic source. rng nil means a randomly seeded source.
func NewTopics(client *Client, rng *rand.Rand, logger *zap.Logger) *Topics {
	if logger == nil {
		logger = zap.NewNop()
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Topics{client: client, rng: rng, logger: logger}
}

// Suggest returns three topics. It never fails.
func (t *Topics) Suggest(ctx context.Context, req TopicRequest) []string {
	if t.client.Configured() {
		prompt := topicPrompt
		if req.Mode == "invite" && req.Hint != "" {
			prompt += " The host hinted the debate should involve: " + req.Hint + "."
		}
		reply, err := t.client.Chat(ctx, []Message{{Role: "user", Content: prompt}}, false)
		if err == nil {
			if topics := ExtractList(reply); len(topics) == 3 {
				return topics
			}
			t.logger.Warn("topic reply unusable, using fallback pool",
				zap.Int("reply_len", len(reply)),
				zap.String("reply_head", replyHead(reply)))
		} else {
			t.logger.Warn("topic suggestion failed, using fallback pool", zap.Error(err))
		}
	}
	return t.fallback()
}

// replyHead returns at most the first replyHeadRunes runes of reply.
func replyHead(reply string) string {
	r := []rune(reply)
	if len(r) <= replyHeadRunes {
		return reply
	}
	return string(r[:replyHeadRunes]) + "..."
}

func (t *Topics) fallback() []string {
	t.mu.Lock()
	defer t.mu.Unlock()
	idx := t.rng.Perm(len(FallbackTopics))[:3]
	out := make([]string, 0, 3)
	for _, i := range idx {
		out = append(out, FallbackTopics[i])
	}
	return out
}
