package debate

import (
	"time"

	"github.com/letsee/debate-backend/internal/models"
	"github.com/letsee/debate-backend/pkg/apperr"
)

// ParticipantView is a debater as shown to clients. Seat ids stay private.
type ParticipantView struct {
	Name        string      `json:"name"`
	Role        models.Role `json:"role"`
	Connected   bool        `json:"connected"`
	TimeSpent   int         `json:"time_spent"`
	VetoedTopic string      `json:"vetoed_topic,omitempty"`
	Warnings    int         `json:"warnings"`
}

// SessionView is the client representation of a session.
type SessionView struct {
	ID                 string                      `json:"session_id"`
	InviteCode         string                      `json:"invite_code"`
	Status             models.SessionStatus        `json:"status"`
	CreatedAt          time.Time                   `json:"created_at"`
	Participants       map[string]*ParticipantView `json:"participants"`
	TopicOptions       []string                    `json:"topic_options"`
	TopicRefreshes     int                         `json:"topic_refreshes"`
	TopicRefreshLimit  int                         `json:"topic_refresh_limit"`
	ChosenTopic        string                      `json:"chosen_topic,omitempty"`
	CustomTopicAllowed bool                        `json:"custom_topic_allowed"`
	CurrentTurn        *models.Role                `json:"current_turn"`
	Transcript         []models.Argument           `json:"transcript"`
	TotalElapsed       int                         `json:"total_elapsed"`
	PerTurnLimit       int                         `json:"per_turn_limit"`
	TotalTimeLimit     int                         `json:"total_time_limit"`
	MaxTurns           int                         `json:"max_turns"`
	MaxWarnings        int                         `json:"max_warnings"`
	Judging            bool                        `json:"judging"`
	Result             *ResultView                 `json:"result"`
	Metadata           models.Metadata             `json:"metadata"`
}

// ResultView flattens a SessionResult with its winner label.
type ResultView struct {
	Winner      string                  `json:"winner"`
	Overall     map[models.Role]float64 `json:"overall"`
	PerArgument []models.ArgumentScore  `json:"per_argument"`
	Rationale   string                  `json:"rationale"`
	Flagged     bool                    `json:"flagged"`
	Review      models.Review           `json:"review"`
}

// NewView renders a snapshot. The current turn is only reported while debating.
func NewView(s *models.Session) *SessionView {
	v := &SessionView{
		ID:                 s.ID,
		InviteCode:         s.InviteCode,
		Status:             s.Status,
		CreatedAt:          s.CreatedAt,
		Participants:       make(map[string]*ParticipantView, 2),
		TopicOptions:       s.TopicOptions,
		TopicRefreshes:     s.TopicRefreshes,
		TopicRefreshLimit:  s.TopicRefreshLimit,
		ChosenTopic:        s.ChosenTopic,
		CustomTopicAllowed: s.CustomTopicAllowed,
		Transcript:         s.Transcript,
		TotalElapsed:       s.TotalElapsedSeconds,
		PerTurnLimit:       s.PerTurnLimit,
		TotalTimeLimit:     s.TotalTimeLimit,
		MaxTurns:           s.MaxTurns,
		MaxWarnings:        s.MaxWarnings,
		Judging:            s.Judging,
		Metadata:           s.Metadata,
	}
	if v.TopicOptions == nil {
		v.TopicOptions = []string{}
	}
	if v.Transcript == nil {
		v.Transcript = []models.Argument{}
	}
	for _, r := range models.Roles {
		p := s.Participants[r]
		if p == nil {
			continue
		}
		v.Participants[r.String()] = &ParticipantView{
			Name:        p.Name,
			Role:        r,
			Connected:   p.Connected,
			TimeSpent:   p.TimeSpentSeconds,
			VetoedTopic: p.VetoedTopic,
			Warnings:    p.Warnings,
		}
	}
	if s.Status == models.StatusDebating {
		turn := s.CurrentTurn
		v.CurrentTurn = &turn
	}
	if res := s.Result; res != nil {
		v.Result = &ResultView{
			Winner:      res.Winner(),
			Overall:     res.OverallScore,
			PerArgument: res.PerArgumentScores,
			Rationale:   res.Rationale,
			Flagged:     res.FlaggedForReview,
			Review:      res.Review,
		}
	}
	return v
}

// SeatView is returned to whoever creates or joins a session.
type SeatView struct {
	Session *SessionView `json:"session"`
	Role    models.Role  `json:"role"`
	Ticket  string       `json:"ticket"`
	Matched *bool        `json:"matched,omitempty"`
}

// TimerView reports the remaining time of a session's deadlines.
type TimerView struct {
	SessionID      string               `json:"session_id"`
	Status         models.SessionStatus `json:"status"`
	CurrentTurn    *models.Role         `json:"current_turn"`
	TurnRemaining  *int                 `json:"turn_remaining"`
	TotalRemaining *int                 `json:"total_remaining"`
	TotalElapsed   int                  `json:"total_elapsed"`
}

// TopicsView is the response of a topic suggestion.
type TopicsView struct {
	Topics        []string `json:"topics"`
	RefreshesUsed int      `json:"refreshes_used"`
	RefreshLimit  int      `json:"refresh_limit"`
}

type messageView struct {
	Turn      int         `json:"turn"`
	Role      models.Role `json:"role"`
	Speaker   string      `json:"speaker"`
	Content   string      `json:"content"`
	TimeTaken int         `json:"time_taken"`
	Timestamp time.Time   `json:"timestamp"`
	Censored  bool        `json:"censored,omitempty"`
}

func newMessageView(a models.Argument) messageView {
	return messageView{
		Turn:      a.TurnIndex,
		Role:      a.SpeakerRole,
		Speaker:   a.SpeakerName,
		Content:   a.Content,
		TimeTaken: a.TimeTakenSeconds,
		Timestamp: a.CreatedAt,
		Censored:  a.Metadata["censored"] != "",
	}
}

type errorView struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

func newErrorView(err error) errorView {
	return errorView{Error: apperr.ReasonOf(err), Code: string(apperr.KindOf(err))}
}
