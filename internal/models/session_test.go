package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newPair() *Session {
	s := &Session{ID: "s1", Status: StatusDebating, CurrentTurn: Proponent}
	s.Seat(Proponent, &Participant{Name: "Alice"})
	s.Seat(Opponent, &Participant{Name: "Bob"})
	return s
}

func TestRecordArgumentAlternatesAndIndexes(t *testing.T) {
	s := newPair()
	now := time.Unix(0, 0)

	for n := 0; n < 7; n++ {
		role := s.CurrentTurn
		arg := s.RecordArgument(role, "point", 3, now)
		require.Equal(t, n, arg.TurnIndex)
		require.Equal(t, role, arg.SpeakerRole)
		if (n+1)%2 == 0 {
			require.Equal(t, Proponent, s.CurrentTurn)
		} else {
			require.Equal(t, Opponent, s.CurrentTurn)
		}
	}
	require.Len(t, s.Transcript, 7)
	require.Equal(t, uint64(7), s.TurnSeq)
	require.Equal(t, "Alice", s.Transcript[0].SpeakerName)
	require.Equal(t, "Bob", s.Transcript[1].SpeakerName)
}

func TestSwapRolesKeepsExclusivity(t *testing.T) {
	s := newPair()
	s.SwapRoles()

	require.Equal(t, "Bob", s.Participant(Proponent).Name)
	require.Equal(t, Proponent, s.Participant(Proponent).Role)
	require.Equal(t, "Alice", s.Participant(Opponent).Name)
	require.Equal(t, Opponent, s.Participant(Opponent).Role)
}

func TestCloneIsDeep(t *testing.T) {
	s := newPair()
	s.TopicOptions = []string{"a", "b"}
	s.Metadata.CoinToss = &CoinToss{Pro: "Alice"}
	s.RecordArgument(Proponent, "x", 1, time.Unix(0, 0))
	winner := Opponent
	s.Result = &SessionResult{WinnerRole: &winner, OverallScore: map[Role]float64{Proponent: 1}}

	c := s.Clone()
	c.Participants[Proponent].Name = "Mallory"
	c.TopicOptions[0] = "z"
	c.Metadata.CoinToss.Pro = "Mallory"
	c.Transcript[0].Content = "changed"
	*c.Result.WinnerRole = Proponent
	c.Result.OverallScore[Proponent] = 9

	require.Equal(t, "Alice", s.Participants[Proponent].Name)
	require.Equal(t, "a", s.TopicOptions[0])
	require.Equal(t, "Alice", s.Metadata.CoinToss.Pro)
	require.Equal(t, "x", s.Transcript[0].Content)
	require.Equal(t, Opponent, *s.Result.WinnerRole)
	require.Equal(t, 1.0, s.Result.OverallScore[Proponent])
}

func TestRoleJSON(t *testing.T) {
	raw, err := json.Marshal(map[Role]float64{Proponent: 1.5, Opponent: 2})
	require.NoError(t, err)
	require.JSONEq(t, `{"pro":1.5,"con":2}`, string(raw))

	var r Role
	require.NoError(t, json.Unmarshal([]byte(`"con"`), &r))
	require.Equal(t, Opponent, r)
	require.Error(t, json.Unmarshal([]byte(`"judge"`), &r))
}

func TestAccrueTime(t *testing.T) {
	s := newPair()
	s.AccrueTime(Opponent, 12)
	s.AccrueTime(Opponent, 0)
	require.Equal(t, 12, s.Participant(Opponent).TimeSpentSeconds)
	require.Equal(t, 12, s.TotalElapsedSeconds)
}

func TestWinnerString(t *testing.T) {
	var r *SessionResult
	require.Equal(t, "tie", r.Winner())
	con := Opponent
	require.Equal(t, "con", (&SessionResult{WinnerRole: &con}).Winner())
}
