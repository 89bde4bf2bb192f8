package models

import (
	"fmt"
	"time"
)

// SessionStatus is a lifecycle phase. Phases only move forward:
// lobby -> veto -> coin_toss -> debating -> finished.
type SessionStatus string

const (
	StatusLobby    SessionStatus = "lobby"
	StatusVeto     SessionStatus = "veto"
	StatusCoinToss SessionStatus = "coin_toss"
	StatusDebating SessionStatus = "debating"
	StatusFinished SessionStatus = "finished"
)

// Role is a debate side. It doubles as the index into Session.Participants.
type Role uint8

const (
	Proponent Role = iota
	Opponent
)

// Roles lists both sides in turn order.
var Roles = [2]Role{Proponent, Opponent}

func (r Role) String() string {
	if r == Opponent {
		return "con"
	}
	return "pro"
}

// Other returns the opposing side.
func (r Role) Other() Role {
	if r == Proponent {
		return Opponent
	}
	return Proponent
}

// MarshalText encodes the role as "pro" or "con" (also used for JSON map keys).
func (r Role) MarshalText() ([]byte, error) {
	return []byte(r.String()), nil
}

// UnmarshalText accepts "pro" or "con".
func (r *Role) UnmarshalText(text []byte) error {
	parsed, err := ParseRole(string(text))
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}

// ParseRole parses "pro"/"proponent" and "con"/"opponent".
func ParseRole(s string) (Role, error) {
	switch s {
	case "pro", "proponent", "PRO":
		return Proponent, nil
	case "con", "opponent", "CON":
		return Opponent, nil
	}
	return Proponent, fmt.Errorf("unknown role %q", s)
}

// MatchMode records how the session was formed.
type MatchMode string

const (
	ModeInvite MatchMode = "invite"
	ModeRandom MatchMode = "random"
)

// Participant is a human debater seated in one role of one session.
type Participant struct {
	ID               string    `json:"id"`
	Name             string    `json:"name"`
	Role             Role      `json:"role"`
	JoinedAt         time.Time `json:"joined_at"`
	Connected        bool      `json:"connected"`
	TransportHandle  string    `json:"-"` // set once a real-time channel attaches
	TimeSpentSeconds int       `json:"time_spent"`
	VetoedTopic      string    `json:"vetoed_topic,omitempty"`
	Warnings         int       `json:"warnings"`
}

// Argument is one turn of the transcript.
type Argument struct {
	SpeakerRole      Role              `json:"role"`
	SpeakerName      string            `json:"speaker"`
	Content          string            `json:"content"`
	CreatedAt        time.Time         `json:"timestamp"`
	TurnIndex        int               `json:"turn"`
	TimeTakenSeconds int               `json:"time_taken"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

// CoinToss records the role assignment made when the topic was fixed.
type CoinToss struct {
	Pro       string `json:"pro,omitempty"`
	Con       string `json:"con,omitempty"`
	Swapped   bool   `json:"swapped"`
	Completed bool   `json:"completed"`
}

// Metadata holds session facts that are not part of the state machine.
type Metadata struct {
	Mode      MatchMode         `json:"mode"`
	Hint      string            `json:"hint,omitempty"`
	CoinToss  *CoinToss         `json:"coin_toss,omitempty"`
	EndReason string            `json:"end_reason,omitempty"`
	Extra     map[string]string `json:"extra,omitempty"`
}

// Session is the aggregate root for one debate. It is owned by the session
// registry; everything handed out of the registry is a Clone.
type Session struct {
	ID                  string          `json:"id"`
	InviteCode          string          `json:"invite_code"`
	Status              SessionStatus   `json:"status"`
	CreatedAt           time.Time       `json:"created_at"`
	StartedAt           time.Time       `json:"started_at,omitempty"`
	Participants        [2]*Participant `json:"-"`
	TopicOptions        []string        `json:"topic_options"`
	ChosenTopic         string          `json:"chosen_topic,omitempty"`
	TopicRefreshes      int             `json:"topic_refreshes"`
	Transcript          []Argument      `json:"transcript"`
	CurrentTurn         Role            `json:"current_turn"`
	TurnSeq             uint64          `json:"turn_seq"`
	TotalElapsedSeconds int             `json:"total_elapsed"`
	PerTurnLimit        int             `json:"per_turn_limit"`
	TotalTimeLimit      int             `json:"total_time_limit"`
	MaxTurns            int             `json:"max_turns"`
	TopicRefreshLimit   int             `json:"topic_refresh_limit"`
	MaxWarnings         int             `json:"max_warnings"`
	Result              *SessionResult  `json:"result,omitempty"`
	CustomTopicAllowed  bool            `json:"custom_topic_allowed"`
	Metadata            Metadata        `json:"metadata"`
	Judging             bool            `json:"judging"`
}

// Participant returns the occupant of role, or nil.
func (s *Session) Participant(r Role) *Participant {
	return s.Participants[r]
}

// BothPresent reports whether both roles are occupied.
func (s *Session) BothPresent() bool {
	return s.Participants[Proponent] != nil && s.Participants[Opponent] != nil
}

// ParticipantCount returns 0, 1 or 2.
func (s *Session) ParticipantCount() int {
	n := 0
	for _, p := range s.Participants {
		if p != nil {
			n++
		}
	}
	return n
}

// RoleOf returns the role currently held by the participant with the given id.
func (s *Session) RoleOf(participantID string) (Role, bool) {
	for _, r := range Roles {
		if p := s.Participants[r]; p != nil && p.ID == participantID {
			return r, true
		}
	}
	return Proponent, false
}

// PresentRoles returns the occupied roles in turn order.
func (s *Session) PresentRoles() []Role {
	roles := make([]Role, 0, 2)
	for _, r := range Roles {
		if s.Participants[r] != nil {
			roles = append(roles, r)
		}
	}
	return roles
}

// Seat places p in role r, keeping p.Role in sync with its slot.
func (s *Session) Seat(r Role, p *Participant) {
	if p != nil {
		p.Role = r
	}
	s.Participants[r] = p
}

// SwapRoles exchanges the two occupants.
func (s *Session) SwapRoles() {
	pro, con := s.Participants[Proponent], s.Participants[Opponent]
	s.Seat(Proponent, con)
	s.Seat(Opponent, pro)
}

// NextRole returns the side that speaks after the current one.
func (s *Session) NextRole() Role {
	return s.CurrentTurn.Other()
}

// AdvanceTurn hands the floor to the other side.
func (s *Session) AdvanceTurn() {
	s.CurrentTurn = s.NextRole()
	s.TurnSeq++
}

// RecordArgument appends a turn for role and advances the turn. Callers check
// status and turn ownership first.
func (s *Session) RecordArgument(role Role, content string, timeTaken int, at time.Time) Argument {
	name := ""
	if p := s.Participants[role]; p != nil {
		name = p.Name
	}
	arg := Argument{
		SpeakerRole:      role,
		SpeakerName:      name,
		Content:          content,
		CreatedAt:        at,
		TurnIndex:        len(s.Transcript),
		TimeTakenSeconds: timeTaken,
	}
	s.Transcript = append(s.Transcript, arg)
	s.AdvanceTurn()
	return arg
}

// AccrueTime charges seconds to role and to the session total.
func (s *Session) AccrueTime(role Role, seconds int) {
	if seconds <= 0 {
		return
	}
	if p := s.Participants[role]; p != nil {
		p.TimeSpentSeconds += seconds
	}
	s.TotalElapsedSeconds += seconds
}

// ReachedMaxTurns reports whether the transcript is full.
func (s *Session) ReachedMaxTurns() bool {
	return s.MaxTurns > 0 && len(s.Transcript) >= s.MaxTurns
}

// Clone returns a deep copy safe to read without the registry lock.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	out := *s
	for i, p := range s.Participants {
		if p != nil {
			cp := *p
			out.Participants[i] = &cp
		}
	}
	out.TopicOptions = append([]string(nil), s.TopicOptions...)
	out.Transcript = make([]Argument, len(s.Transcript))
	for i, a := range s.Transcript {
		out.Transcript[i] = a
		out.Transcript[i].Metadata = cloneStrings(a.Metadata)
	}
	if s.Metadata.CoinToss != nil {
		ct := *s.Metadata.CoinToss
		out.Metadata.CoinToss = &ct
	}
	out.Metadata.Extra = cloneStrings(s.Metadata.Extra)
	out.Result = s.Result.Clone()
	return &out
}

func cloneStrings(m map[string]string) map[string]string {
	if m == nil {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}
