package debate

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"

	"github.com/letsee/debate-backend/internal/export"
	"github.com/letsee/debate-backend/internal/models"
	"github.com/letsee/debate-backend/internal/ticket"
	"github.com/letsee/debate-backend/pkg/apperr"
	"github.com/letsee/debate-backend/pkg/storage"
)

type memStore struct {
	mu      sync.Mutex
	objects map[string]string
}

func (m *memStore) Upload(_ context.Context, obj storage.Object, body io.Reader) error {
	data, err := io.ReadAll(body)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = make(map[string]string)
	}
	m.objects[obj.Key] = string(data)
	return nil
}

func (m *memStore) PresignedDownloadURL(_ context.Context, key string) (string, error) {
	return "https://objects.test/" + key, nil
}

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   string          `json:"error"`
	Code    string          `json:"code"`
}

type seatBody struct {
	Session struct {
		ID         string `json:"session_id"`
		InviteCode string `json:"invite_code"`
		Status     string `json:"status"`
	} `json:"session"`
	Role    string `json:"role"`
	Ticket  string `json:"ticket"`
	Matched *bool  `json:"matched"`
}

type api struct {
	t       *testing.T
	fix     *fixture
	handler *Handler
	router  *gin.Engine
}

func newAPI(t *testing.T, store export.ObjectStore) *api {
	t.Helper()
	gin.SetMode(gin.TestMode)
	fix := newFixture(t, testLimits)
	tickets, err := ticket.NewService("handler-test-secret", 1)
	require.NoError(t, err)
	var archive *export.Archive
	if store != nil {
		archive = export.NewArchive(store, nil)
	}
	h := NewHandler(fix.svc, tickets, archive, nil)
	router := gin.New()
	h.Register(router.Group("/api"))
	return &api{t: t, fix: fix, handler: h, router: router}
}

func (a *api) do(method, path, body, seat string) *httptest.ResponseRecorder {
	a.t.Helper()
	var reader io.Reader
	if body != "" {
		reader = bytes.NewBufferString(body)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	if seat != "" {
		req.Header.Set("Authorization", "Bearer "+seat)
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decodeEnvelope(t *testing.T, rec *httptest.ResponseRecorder, data interface{}) envelope {
	t.Helper()
	var env envelope
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	if data != nil {
		require.NoError(t, json.Unmarshal(env.Data, data))
	}
	return env
}

// seated creates a session for Alice and seats Bob through the invite code.
func (a *api) seated() (alice, bob seatBody) {
	a.t.Helper()
	rec := a.do(http.MethodPost, "/api/sessions/create", `{"name":"Alice"}`, "")
	require.Equal(a.t, http.StatusCreated, rec.Code)
	decodeEnvelope(a.t, rec, &alice)

	rec = a.do(http.MethodPost, "/api/sessions/join/invite", `{"code":"`+alice.Session.InviteCode+`","name":"Bob"}`, "")
	require.Equal(a.t, http.StatusOK, rec.Code)
	decodeEnvelope(a.t, rec, &bob)
	return alice, bob
}

// debating takes a seated session through topic choice and the coin toss.
func (a *api) debating() (alice, bob seatBody) {
	a.t.Helper()
	alice, bob = a.seated()
	id := alice.Session.ID

	rec := a.do(http.MethodGet, "/api/topics/"+id, "", "")
	require.Equal(a.t, http.StatusOK, rec.Code)
	var topics TopicsView
	decodeEnvelope(a.t, rec, &topics)
	require.NotEmpty(a.t, topics.Topics)

	rec = a.do(http.MethodPost, "/api/sessions/"+id+"/topic", `{"topic":"`+topics.Topics[0]+`"}`, "")
	require.Equal(a.t, http.StatusOK, rec.Code)

	rec = a.do(http.MethodPost, "/api/sessions/"+id+"/coin-toss", "", "")
	require.Equal(a.t, http.StatusOK, rec.Code)
	var view struct {
		Status string `json:"status"`
	}
	decodeEnvelope(a.t, rec, &view)
	require.Equal(a.t, string(models.StatusDebating), view.Status)
	return alice, bob
}

func TestHealth(t *testing.T) {
	a := newAPI(t, nil)
	rec := a.do(http.MethodGet, "/api/health", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Contains(t, rec.Body.String(), `"ok"`)
}

func TestCreateAndJoinInvite(t *testing.T) {
	a := newAPI(t, nil)
	alice, bob := a.seated()

	require.Equal(t, "pro", alice.Role)
	require.NotEmpty(t, alice.Ticket)
	require.Nil(t, alice.Matched)
	require.Equal(t, "con", bob.Role)
	require.Equal(t, alice.Session.ID, bob.Session.ID)
	require.NotEqual(t, alice.Ticket, bob.Ticket)
	require.Equal(t, string(models.StatusVeto), bob.Session.Status)
}

func TestCreateWithoutBody(t *testing.T) {
	a := newAPI(t, nil)
	rec := a.do(http.MethodPost, "/api/sessions/create", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
}

func TestJoinInviteErrors(t *testing.T) {
	a := newAPI(t, nil)

	rec := a.do(http.MethodPost, "/api/sessions/join/invite", `{"name":"Bob"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/api/sessions/join/invite", `{"code":"ZZZZZZ"}`, "")
	require.Equal(t, http.StatusNotFound, rec.Code)
	env := decodeEnvelope(t, rec, nil)
	require.False(t, env.Success)
	require.Equal(t, string(apperr.KindNotFound), env.Code)

	rec = a.do(http.MethodPost, "/api/sessions/join/invite", `{"code":`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	alice, _ := a.seated()
	rec = a.do(http.MethodPost, "/api/sessions/join/invite", `{"code":"`+alice.Session.InviteCode+`"}`, "")
	require.Equal(t, http.StatusConflict, rec.Code)
}

func TestJoinRandom(t *testing.T) {
	a := newAPI(t, nil)

	rec := a.do(http.MethodPost, "/api/sessions/join/random", `{"name":"Ann"}`, "")
	require.Equal(t, http.StatusAccepted, rec.Code)
	var ann seatBody
	decodeEnvelope(t, rec, &ann)
	require.NotNil(t, ann.Matched)
	require.False(t, *ann.Matched)
	require.NotEmpty(t, ann.Ticket)

	rec = a.do(http.MethodPost, "/api/sessions/join/random", `{"name":"Ben"}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
	var ben seatBody
	decodeEnvelope(t, rec, &ben)
	require.True(t, *ben.Matched)
	require.Equal(t, ann.Session.ID, ben.Session.ID)
	require.Equal(t, "con", ben.Role)
}

func TestGetSession(t *testing.T) {
	a := newAPI(t, nil)
	alice, _ := a.seated()

	rec := a.do(http.MethodGet, "/api/sessions/"+alice.Session.ID, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NotContains(t, rec.Body.String(), alice.Ticket)
	var view SessionView
	decodeEnvelope(t, rec, &view)
	require.Equal(t, "Alice", view.Participants["pro"].Name)
	require.Equal(t, "Bob", view.Participants["con"].Name)
	require.Nil(t, view.CurrentTurn)

	rec = a.do(http.MethodGet, "/api/sessions/missing", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTopicRefreshLimit(t *testing.T) {
	a := newAPI(t, nil)
	alice, _ := a.seated()
	path := "/api/topics/" + alice.Session.ID

	require.Equal(t, http.StatusOK, a.do(http.MethodGet, path, "", "").Code)
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, path+"?refresh=true", "", "").Code)
	rec := a.do(http.MethodGet, path+"?refresh=1", "", "")
	require.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestChooseTopicRejectsUnknown(t *testing.T) {
	a := newAPI(t, nil)
	alice, _ := a.seated()
	id := alice.Session.ID
	require.Equal(t, http.StatusOK, a.do(http.MethodGet, "/api/topics/"+id, "", "").Code)

	rec := a.do(http.MethodPost, "/api/sessions/"+id+"/topic", `{"topic":"Something else"}`, "")
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = a.do(http.MethodPost, "/api/sessions/"+id+"/topic", `{"topic":"Something else","custom":true}`, "")
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestSubmitArgumentNeedsSeat(t *testing.T) {
	a := newAPI(t, nil)
	alice, bob := a.debating()
	path := "/api/sessions/" + alice.Session.ID + "/arguments"
	body := `{"content":"Dense cities need fewer cars because space is scarce."}`

	require.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, path, body, "").Code)
	require.Equal(t, http.StatusUnauthorized, a.do(http.MethodPost, path, body, "not-a-ticket").Code)
	require.Equal(t, http.StatusConflict, a.do(http.MethodPost, path, body, bob.Ticket).Code)

	other, _ := a.seated()
	require.Equal(t, http.StatusForbidden, a.do(http.MethodPost, path, body, other.Ticket).Code)

	rec := a.do(http.MethodPost, path, body, alice.Ticket)
	require.Equal(t, http.StatusCreated, rec.Code)
	var out struct {
		Argument struct {
			Role    string `json:"role"`
			Content string `json:"content"`
		} `json:"argument"`
		Warnings int `json:"warnings"`
	}
	decodeEnvelope(t, rec, &out)
	require.Equal(t, "pro", out.Argument.Role)
	require.Zero(t, out.Warnings)

	rec = a.do(http.MethodGet, "/api/sessions/"+alice.Session.ID+"/timers", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var timers TimerView
	decodeEnvelope(t, rec, &timers)
	require.Equal(t, models.Opponent, *timers.CurrentTurn)
	require.Equal(t, 30, *timers.TurnRemaining)
}

func TestFinishAndExport(t *testing.T) {
	store := &memStore{}
	a := newAPI(t, store)
	alice, _ := a.debating()
	id := alice.Session.ID
	rec := a.do(http.MethodPost, "/api/sessions/"+id+"/arguments", `{"content":"Studies show 40 percent less traffic."}`, alice.Ticket)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = a.do(http.MethodPost, "/api/sessions/"+id+"/finish", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var view SessionView
	decodeEnvelope(t, rec, &view)
	require.Equal(t, models.StatusFinished, view.Status)
	require.NotNil(t, view.Result)
	require.NotEmpty(t, view.Result.Winner)

	rec = a.do(http.MethodGet, "/api/export/"+id, "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, export.ContentType, rec.Header().Get("Content-Type"))
	require.Contains(t, rec.Header().Get("Content-Disposition"), export.Filename(id))
	require.True(t, strings.Contains(rec.Body.String(), "Studies show 40 percent less traffic."))

	rec = a.do(http.MethodPost, "/api/export/"+id+"/archive", "", "")
	require.Equal(t, http.StatusCreated, rec.Code)
	var archived export.Archived
	decodeEnvelope(t, rec, &archived)
	require.True(t, strings.HasPrefix(archived.Key, "exports/"+id+"/"))
	require.Equal(t, "https://objects.test/"+archived.Key, archived.URL)
	require.Contains(t, store.objects[archived.Key], "Studies show 40 percent less traffic.")
	require.Equal(t, 1, a.fix.judge.Calls())
}

func TestExportUnknownSession(t *testing.T) {
	a := newAPI(t, nil)
	require.Equal(t, http.StatusNotFound, a.do(http.MethodGet, "/api/export/missing", "", "").Code)
}

func TestArchiveDisabled(t *testing.T) {
	a := newAPI(t, nil)
	alice, _ := a.seated()
	rec := a.do(http.MethodPost, "/api/export/"+alice.Session.ID+"/archive", "", "")
	require.Equal(t, http.StatusNotFound, rec.Code)
}
