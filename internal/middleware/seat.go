package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/letsee/debate-backend/internal/ticket"
	"github.com/letsee/debate-backend/pkg/response"
)

const (
	// TicketHeader carries a seat ticket for clients that cannot set Authorization.
	TicketHeader = "X-Seat-Ticket"
	// ContextSessionID is the key for the ticket's session id in gin context.
	ContextSessionID = "seat_session_id"
	// ContextParticipantID is the key for the ticket's participant id in gin context.
	ContextParticipantID = "seat_participant_id"
	// ContextSeatName is the key for the display name the ticket was issued to.
	ContextSeatName = "seat_name"
)

// Validator checks a seat ticket.
type Validator interface {
	Validate(token string) (*ticket.Claims, error)
}

// Seat returns a middleware that requires a valid seat ticket. The ticket is
// read from a Bearer Authorization header, the X-Seat-Ticket header or the
// ticket query parameter, in that order.
func Seat(v Validator) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := TicketFrom(c)
		if raw == "" {
			response.Unauthorized(c, "missing seat ticket")
			return
		}
		claims, err := v.Validate(raw)
		if err != nil {
			response.Unauthorized(c, "invalid or expired seat ticket")
			return
		}
		c.Set(ContextSessionID, claims.SessionID)
		c.Set(ContextParticipantID, claims.ParticipantID)
		c.Set(ContextSeatName, claims.Name)
		c.Next()
	}
}

// RequireSessionMatch rejects requests whose :id differs from the ticket's session.
// It must run after Seat.
func RequireSessionMatch() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Param("id") != c.GetString(ContextSessionID) {
			response.Forbidden(c, "ticket is not valid for this session")
			return
		}
		c.Next()
	}
}

// TicketFrom extracts the raw ticket from a request, or "".
func TicketFrom(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		parts := strings.SplitN(header, " ", 2)
		if len(parts) == 2 && strings.EqualFold(parts[0], "Bearer") {
			return strings.TrimSpace(parts[1])
		}
	}
	if t := strings.TrimSpace(c.GetHeader(TicketHeader)); t != "" {
		return t
	}
	return strings.TrimSpace(c.Query("ticket"))
}
