package debate

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/letsee/debate-backend/internal/export"
	"github.com/letsee/debate-backend/internal/middleware"
	"github.com/letsee/debate-backend/internal/models"
	"github.com/letsee/debate-backend/internal/realtime"
	"github.com/letsee/debate-backend/internal/ticket"
	"github.com/letsee/debate-backend/pkg/apperr"
	"github.com/letsee/debate-backend/pkg/response"
)

var errSeatLost = apperr.New(apperr.KindInternal, "participant not found after seating")

// Handler exposes the debate service over HTTP.
type Handler struct {
	svc     *Service
	tickets *ticket.Service
	archive *export.Archive
	logger  *zap.Logger
}

// NewHandler creates the HTTP handler. archive may be nil.
func NewHandler(svc *Service, tickets *ticket.Service, archive *export.Archive, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, tickets: tickets, archive: archive, logger: logger}
}

// Register mounts the routes on an /api group.
func (h *Handler) Register(api *gin.RouterGroup) {
	s := api.Group("/sessions")
	s.POST("/create", h.Create)
	s.POST("/join/random", h.JoinRandom)
	s.POST("/join/invite", h.JoinInvite)
	s.GET("/:id", h.Get)
	s.GET("/:id/timers", h.Timers)
	s.POST("/:id/topic", h.ChooseTopic)
	s.POST("/:id/coin-toss", h.CoinToss)
	s.POST("/:id/arguments", middleware.Seat(h.tickets), middleware.RequireSessionMatch(), h.Submit)
	s.POST("/:id/finish", h.Finish)

	api.GET("/topics/:id", h.Topics)
	api.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })
	api.GET("/export/:id", h.Export)
	api.POST("/export/:id/archive", h.Archive)
}

type nameRequest struct {
	Name string `json:"name"`
	Hint string `json:"hint"`
}

type inviteRequest struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

type topicRequest struct {
	Topic  string `json:"topic"`
	Custom bool   `json:"custom"`
}

type argumentRequest struct {
	Content string `json:"content"`
}

// Create opens an invite session.
func (h *Handler) Create(c *gin.Context) {
	var req nameRequest
	if !bindOptional(c, &req) {
		return
	}
	sess, pid, err := h.svc.Create(req.Name, req.Hint)
	if err != nil {
		h.fail(c, err)
		return
	}
	seat, err := h.seat(sess, pid, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, seat)
}

// JoinRandom answers 200 when paired and 202 while waiting for an opponent.
func (h *Handler) JoinRandom(c *gin.Context) {
	var req nameRequest
	if !bindOptional(c, &req) {
		return
	}
	sess, pid, matched, err := h.svc.JoinRandom(req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	seat, err := h.seat(sess, pid, &matched)
	if err != nil {
		h.fail(c, err)
		return
	}
	if !matched {
		response.Accepted(c, seat)
		return
	}
	response.OK(c, seat)
}

// JoinInvite seats the caller by invite code.
func (h *Handler) JoinInvite(c *gin.Context) {
	var req inviteRequest
	if !bindOptional(c, &req) {
		return
	}
	if strings.TrimSpace(req.Code) == "" {
		response.BadRequest(c, "invite code required")
		return
	}
	sess, pid, err := h.svc.JoinInvite(req.Code, req.Name)
	if err != nil {
		h.fail(c, err)
		return
	}
	seat, err := h.seat(sess, pid, nil)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, seat)
}

// Get returns a session.
func (h *Handler) Get(c *gin.Context) {
	sess, err := h.svc.Get(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, NewView(sess))
}

// Timers returns the remaining time of the session's deadlines.
func (h *Handler) Timers(c *gin.Context) {
	v, err := h.svc.Timers(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, v)
}

// Topics returns the offered topics; ?refresh=1 asks for a new set.
func (h *Handler) Topics(c *gin.Context) {
	refresh := false
	switch strings.ToLower(strings.TrimSpace(c.Query("refresh"))) {
	case "1", "true", "yes":
		refresh = true
	}
	v, err := h.svc.Topics(c.Request.Context(), c.Param("id"), refresh)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, v)
}

// ChooseTopic fixes the topic.
func (h *Handler) ChooseTopic(c *gin.Context) {
	var req topicRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	sess, err := h.svc.ChooseTopic(c.Param("id"), req.Topic, req.Custom)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, NewView(sess))
}

// CoinToss acknowledges the coin toss and starts the debate once both are seated.
func (h *Handler) CoinToss(c *gin.Context) {
	sess, err := h.svc.CoinToss(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, NewView(sess))
}

// Submit records an argument for the ticket holder.
func (h *Handler) Submit(c *gin.Context) {
	var req argumentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid body")
		return
	}
	out, err := h.svc.Submit(c.Param("id"), c.GetString(middleware.ContextParticipantID), req.Content)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, gin.H{
		"argument": newMessageView(out.Argument),
		"warnings": out.Warnings,
		"session":  NewView(out.Session),
	})
}

// Finish judges the debate and returns the finished session.
func (h *Handler) Finish(c *gin.Context) {
	sess, err := h.svc.Finish(c.Request.Context(), c.Param("id"), ReasonFinished)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.OK(c, NewView(sess))
}

// Export downloads the plain-text report.
func (h *Handler) Export(c *gin.Context) {
	sess, err := h.svc.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="`+export.Filename(sess.ID)+`"`)
	c.Data(http.StatusOK, export.ContentType, []byte(export.Report(sess)))
}

// Archive uploads the report to object storage and returns a download link.
func (h *Handler) Archive(c *gin.Context) {
	sess, err := h.svc.Export(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	archived, err := h.archive.Put(c.Request.Context(), sess)
	if err != nil {
		h.fail(c, err)
		return
	}
	response.Created(c, archived)
}

// Socket upgrades ticket holders to the session's real-time channel.
func (h *Handler) Socket(hub *realtime.Hub) gin.HandlerFunc {
	auth := func(raw string) (realtime.Seat, error) {
		claims, err := h.tickets.Validate(raw)
		if err != nil {
			return realtime.Seat{}, err
		}
		return realtime.Seat{SessionID: claims.SessionID, ParticipantID: claims.ParticipantID, Name: claims.Name}, nil
	}
	return realtime.ServeWs(hub, NewEvents(h.svc, h.logger), auth, h.logger)
}

func (h *Handler) seat(sess *models.Session, participantID string, matched *bool) (*SeatView, error) {
	role, ok := sess.RoleOf(participantID)
	if !ok {
		return nil, errSeatLost
	}
	p := sess.Participants[role]
	tok, err := h.tickets.Issue(sess.ID, participantID, p.Name)
	if err != nil {
		return nil, err
	}
	return &SeatView{Session: NewView(sess), Role: role, Ticket: tok, Matched: matched}, nil
}

func (h *Handler) fail(c *gin.Context, err error) {
	_ = c.Error(err)
	response.Error(c, err)
}

// bindOptional decodes a JSON body when one is present. It writes a 400 and
// returns false on a malformed body.
func bindOptional(c *gin.Context, v interface{}) bool {
	if c.Request.ContentLength == 0 {
		return true
	}
	if err := c.ShouldBindJSON(v); err != nil {
		response.BadRequest(c, "invalid body")
		return false
	}
	return true
}
