// Package ticket issues the signed seat tickets that bind a client connection
// to one participant of one debate session.
package ticket

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/letsee/debate-backend/pkg/utils"
)

const keyPurpose = "debate-seat-ticket"

var ErrInvalidTicket = errors.New("invalid ticket")

// Claims identify a seat. The role is not part of the ticket because the coin
// toss may move a participant to the other side.
type Claims struct {
	SessionID     string `json:"sid"`
	ParticipantID string `json:"pid"`
	Name          string `json:"name"`
	jwt.RegisteredClaims
}

// Service signs and validates seat tickets.
type Service struct {
	secret      []byte
	expireHours int
	now         func() time.Time
}

// NewService creates a ticket service signing with a key derived from
// secret. expireHours <= 0 means six hours.
func NewService(secret string, expireHours int) (*Service, error) {
	key, err := utils.DeriveKey(secret, keyPurpose)
	if err != nil {
		return nil, err
	}
	if expireHours <= 0 {
		expireHours = 6
	}
	return &Service{secret: key, expireHours: expireHours, now: time.Now}, nil
}

// Issue signs a ticket for the participant.
func (s *Service) Issue(sessionID, participantID, name string) (string, error) {
	now := s.now()
	claims := Claims{
		SessionID:     sessionID,
		ParticipantID: participantID,
		Name:          name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   participantID,
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Duration(s.expireHours) * time.Hour)),
			IssuedAt:  jwt.NewNumericDate(now),
			ID:        uuid.New().String(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Validate parses a ticket, returning its claims.
func (s *Service) Validate(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidTicket
		}
		return s.secret, nil
	}, jwt.WithTimeFunc(s.now))
	if err != nil {
		return nil, ErrInvalidTicket
	}
	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid || claims.SessionID == "" || claims.ParticipantID == "" {
		return nil, ErrInvalidTicket
	}
	return claims, nil
}
