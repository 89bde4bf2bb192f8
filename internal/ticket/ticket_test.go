package ticket

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T, secret string) *Service {
	t.Helper()
	s, err := NewService(secret, 1)
	require.NoError(t, err)
	return s
}

func TestNewServiceNeedsSecret(t *testing.T) {
	_, err := NewService("", 1)
	require.Error(t, err)
}

func TestIssueValidate(t *testing.T) {
	s := newService(t, "secret")
	tok, err := s.Issue("s1", "p1", "Alice")
	require.NoError(t, err)

	claims, err := s.Validate(tok)
	require.NoError(t, err)
	require.Equal(t, "s1", claims.SessionID)
	require.Equal(t, "p1", claims.ParticipantID)
	require.Equal(t, "Alice", claims.Name)
	require.NotEmpty(t, claims.ID)
}

func TestValidateRejects(t *testing.T) {
	s := newService(t, "secret")
	tok, err := s.Issue("s1", "p1", "Alice")
	require.NoError(t, err)

	_, err = newService(t, "other").Validate(tok)
	require.ErrorIs(t, err, ErrInvalidTicket)

	_, err = s.Validate("garbage")
	require.ErrorIs(t, err, ErrInvalidTicket)

	// Expired.
	s.now = func() time.Time { return time.Now().Add(2 * time.Hour) }
	_, err = s.Validate(tok)
	require.ErrorIs(t, err, ErrInvalidTicket)
}

func TestValidateRejectsOtherAlgorithms(t *testing.T) {
	s := newService(t, "secret")
	unsigned := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{SessionID: "s1", ParticipantID: "p1"})
	tok, err := unsigned.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)
	_, err = s.Validate(tok)
	require.ErrorIs(t, err, ErrInvalidTicket)
}

func TestValidateRequiresSeat(t *testing.T) {
	s := newService(t, "secret")
	tok, err := s.Issue("", "p1", "Alice")
	require.NoError(t, err)
	_, err = s.Validate(tok)
	require.ErrorIs(t, err, ErrInvalidTicket)
}
