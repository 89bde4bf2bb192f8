package debate

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/letsee/debate-backend/internal/realtime"
	"github.com/letsee/debate-backend/pkg/apperr"
)

// Inbound event names.
const (
	InJoinSession      = "join_session"
	InVetoTopic        = "veto_topic"
	InSetCustomTopic   = "set_custom_topic"
	InSendMessage      = "send_message"
	InEndDebate        = "end_debate"
	InCoinTossComplete = "coin_toss_complete"
)

var (
	errMalformedEvent = apperr.New(apperr.KindValidation, "malformed event payload")
	errUnknownEvent   = apperr.New(apperr.KindValidation, "unknown event")
)

type topicPayload struct {
	Topic string `json:"topic"`
}

type messagePayload struct {
	Message string `json:"message"`
	Content string `json:"content"`
}

// Events adapts the Service to the real-time channel.
type Events struct {
	svc    *Service
	logger *zap.Logger
}

// NewEvents creates the socket event handler.
func NewEvents(svc *Service, logger *zap.Logger) *Events {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Events{svc: svc, logger: logger}
}

// Connected seats the socket's participant and sends them the current state.
func (e *Events) Connected(_ context.Context, c *realtime.Client) error {
	sess, err := e.svc.Attach(c.SessionID, c.ParticipantID, c.ID)
	if err != nil {
		return err
	}
	c.Send(EventSessionUpdate, NewView(sess))
	return nil
}

// Disconnected releases the participant's channel.
func (e *Events) Disconnected(c *realtime.Client) {
	e.svc.Detach(c.SessionID, c.ParticipantID, c.ID)
}

// HandleEvent dispatches one inbound event. Failures are reported to the
// sender only.
func (e *Events) HandleEvent(_ context.Context, c *realtime.Client, msg realtime.WSMessage) {
	if err := e.dispatch(c, msg); err != nil {
		if apperr.KindOf(err) == apperr.KindInternal {
			e.logger.Error("event failed", zap.String("session_id", c.SessionID), zap.String("event", msg.Event), zap.Error(err))
		}
		c.Send(EventSessionError, newErrorView(err))
	}
}

func (e *Events) dispatch(c *realtime.Client, msg realtime.WSMessage) error {
	id := c.SessionID
	switch msg.Event {
	case InJoinSession:
		sess, err := e.svc.Get(id)
		if err != nil {
			return err
		}
		c.Send(EventSessionUpdate, NewView(sess))
	case InVetoTopic:
		var p topicPayload
		if err := decode(msg.Data, &p); err != nil {
			return err
		}
		_, err := e.svc.VetoTopic(id, c.ParticipantID, strings.TrimSpace(p.Topic))
		return err
	case InSetCustomTopic:
		var p topicPayload
		if err := decode(msg.Data, &p); err != nil {
			return err
		}
		_, err := e.svc.ChooseTopic(id, p.Topic, true)
		return err
	case InSendMessage:
		var p messagePayload
		if err := decode(msg.Data, &p); err != nil {
			return err
		}
		text := p.Message
		if text == "" {
			text = p.Content
		}
		_, err := e.svc.Submit(id, c.ParticipantID, text)
		return err
	case InEndDebate:
		if _, err := e.svc.RoleOf(id, c.ParticipantID); err != nil {
			return err
		}
		e.svc.FinishAsync(id, ReasonEnded)
	case InCoinTossComplete:
		_, err := e.svc.CoinToss(id)
		return err
	default:
		return errUnknownEvent
	}
	return nil
}

func decode(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return errMalformedEvent
	}
	if err := json.Unmarshal(data, v); err != nil {
		return apperr.Wrap(errMalformedEvent, err)
	}
	return nil
}
