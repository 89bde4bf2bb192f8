package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Origins is a parsed CORS_ALLOWED_ORIGINS value. The zero value allows any origin.
type Origins struct {
	any     bool
	allowed map[string]bool
}

// ParseOrigins reads "*" or a comma-separated list such as
// "http://localhost:3000,http://localhost:3001". An empty list means any origin.
func ParseOrigins(s string) Origins {
	o := Origins{allowed: make(map[string]bool)}
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimRight(strings.TrimSpace(part), "/")
		switch part {
		case "":
		case "*":
			o.any = true
		default:
			o.allowed[part] = true
		}
	}
	if len(o.allowed) == 0 {
		o.any = true
	}
	return o
}

// Any reports whether every origin is allowed.
func (o Origins) Any() bool { return o.any || len(o.allowed) == 0 }

// Allows reports whether requests from origin may read responses.
func (o Origins) Allows(origin string) bool {
	return o.Any() || o.allowed[origin]
}

// CheckOrigin fits websocket.Upgrader.CheckOrigin. Non-browser clients send no
// Origin header and are let through; their ticket still gates the socket.
func (o Origins) CheckOrigin(r *http.Request) bool {
	origin := r.Header.Get("Origin")
	return origin == "" || o.Allows(origin)
}

// CORS sets the cross-origin headers debate clients need (ticket header included)
// and answers preflight requests.
func CORS(origins Origins) gin.HandlerFunc {
	return func(c *gin.Context) {
		origin := c.GetHeader("Origin")
		switch {
		case origins.Any():
			c.Header("Access-Control-Allow-Origin", "*")
		case origin != "" && origins.Allows(origin):
			c.Header("Access-Control-Allow-Origin", origin)
			c.Header("Vary", "Origin")
		default:
			origin = ""
		}
		if origin != "" || origins.Any() {
			c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			c.Header("Access-Control-Allow-Headers", "Content-Type, Authorization, "+TicketHeader)
			c.Header("Access-Control-Expose-Headers", "Content-Disposition")
			c.Header("Access-Control-Max-Age", "86400")
		}
		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}
		c.Next()
	}
}
