package routes

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/sharpline/sharpline-go/internal/application/container"
	"github.com/sharpline/sharpline-go/internal/application/services"
	"github.com/sharpline/sharpline-go/internal/infrastructure/messaging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/observability/logging"
	"github.com/sharpline/sharpline-go/internal/infrastructure/persistence/database/testutil"
	"github.com/sharpline/sharpline-go/internal/infrastructure/security"
)

const (
	testSecret        = "routes-test-secret-routes-test-secret"
	testAdminPassword = "let me in"
)

type testApp struct {
	router    *gin.Engine
	container *container.Container
}

func newTestApp(t *testing.T) *testApp {
	t.Helper()
	gin.SetMode(gin.TestMode)

	db := testutil.OpenSQLite(t)
	testutil.Exec(t, db,
		`INSERT INTO pages (id, slug, title, is_published, visibility_rules, created_at) VALUES
			('p-open', 'open', 'Open Page', 1, NULL, '2026-08-01T12:00:00Z'),
			('p-members', 'members', 'Members Page', 1, '{"requiresAuth":true}', '2026-08-01T12:00:00Z'),
			('p-funded', 'funded', 'Funded Page', 1, '{"minTokens":500}', '2026-08-01T12:00:00Z'),
			('p-draft', 'draft', 'Draft Page', 0, NULL, '2026-08-01T12:00:00Z')`,
		`INSERT INTO page_blocks (id, page_id, block_type, position, config, visibility_rules) VALUES
			('b-text', 'p-open', 'text', 0, '{"body":"hello"}', NULL),
			('b-picks', 'p-open', 'analyzer', 1, NULL, '{"minTokens":50}'),
			('b-history', 'p-open', 'leaderboard', 2, NULL, '{"hasUsedAnalyzer":"nfl-model"}'),
			('b-mobile-ad', 'p-open', 'ad', 3, NULL, '{"device":"mobile"}')`,
		`INSERT INTO user_tokens (user_id, balance) VALUES ('u-rich', 100), ('u-poor', 0)`,
		`INSERT INTO analyzer_requests (id, user_id, model_id, status, created_at) VALUES
			('a1', 'u-rich', 'nfl-model', 'completed', '2026-08-02T10:00:00Z'),
			('a2', 'u-poor', 'nfl-model', 'failed', '2026-08-02T10:00:00Z')`,
	)

	c := container.NewContainer(context.Background(), container.Options{
		DB:        db,
		Logger:    logging.NewDiscardLogger(),
		JWTSecret: testSecret,
	})
	hash, err := bcrypt.GenerateFromPassword([]byte(testAdminPassword), bcrypt.MinCost)
	require.NoError(t, err)
	c.AuthService = services.NewAuthService(services.AuthConfig{
		JWTSecret:         testSecret,
		AdminPasswordHash: string(hash),
	}, c.Logger)

	return &testApp{router: SetupRoutes(c), container: c}
}

func (a *testApp) viewerToken(t *testing.T, userID string) string {
	t.Helper()
	token, err := a.container.AuthService.IssueViewerToken(userID)
	require.NoError(t, err)
	return token
}

func (a *testApp) adminToken(t *testing.T) string {
	t.Helper()
	result := a.container.AuthService.AuthenticateAdmin(testAdminPassword)
	require.True(t, result.Success)
	return result.Token
}

func (a *testApp) do(t *testing.T, method, path, token string, body any, headers ...string) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}

	w := httptest.NewRecorder()
	a.router.ServeHTTP(w, req)
	return w
}

type renderedPageResponse struct {
	Page struct {
		ID    string `json:"id"`
		Slug  string `json:"slug"`
		Title string `json:"title"`
	} `json:"page"`
	Blocks []struct {
		ID       string `json:"id"`
		Position int    `json:"position"`
	} `json:"blocks"`
	HiddenCount int `json:"hiddenCount"`
	Profile     struct {
		IsAuthenticated bool   `json:"isAuthenticated"`
		TokenBalance    int    `json:"tokenBalance"`
		DeviceClass     string `json:"deviceClass"`
	} `json:"profile"`
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) renderedPageResponse {
	t.Helper()
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var page renderedPageResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &page))
	return page
}

func blockIDs(page renderedPageResponse) []string {
	ids := make([]string, 0, len(page.Blocks))
	for _, b := range page.Blocks {
		ids = append(ids, b.ID)
	}
	return ids
}

func TestGetPage_AnonymousDesktopSeesOnlyUngatedBlocks(t *testing.T) {
	app := newTestApp(t)

	page := decodePage(t, app.do(t, http.MethodGet, "/api/v1/pages/open", "", nil))
	assert.Equal(t, "open", page.Page.Slug)
	assert.Equal(t, []string{"b-text"}, blockIDs(page))
	assert.Equal(t, 3, page.HiddenCount)
	assert.False(t, page.Profile.IsAuthenticated)
	assert.Equal(t, "desktop", page.Profile.DeviceClass)
}

func TestGetPage_ViewportSelectsDevice(t *testing.T) {
	app := newTestApp(t)

	byHeader := decodePage(t, app.do(t, http.MethodGet, "/api/v1/pages/open", "", nil, "X-Viewport-Width", "768"))
	assert.Equal(t, []string{"b-text", "b-mobile-ad"}, blockIDs(byHeader))
	assert.Equal(t, "mobile", byHeader.Profile.DeviceClass)

	byQuery := decodePage(t, app.do(t, http.MethodGet, "/api/v1/pages/open?vw=769", "", nil))
	assert.Equal(t, []string{"b-text"}, blockIDs(byQuery))
	assert.Equal(t, "desktop", byQuery.Profile.DeviceClass)
}

func TestGetPage_MemberSeesGatedBlocks(t *testing.T) {
	app := newTestApp(t)
	token := app.viewerToken(t, "u-rich")

	mobile := decodePage(t, app.do(t, http.MethodGet, "/api/v1/pages/open", token, nil, "X-Viewport-Width", "390"))
	assert.Equal(t, []string{"b-text", "b-picks", "b-history", "b-mobile-ad"}, blockIDs(mobile))
	assert.Equal(t, 0, mobile.HiddenCount)
	assert.True(t, mobile.Profile.IsAuthenticated)
	assert.Equal(t, 100, mobile.Profile.TokenBalance)

	desktop := decodePage(t, app.do(t, http.MethodGet, "/api/v1/pages/open", token, nil, "X-Viewport-Width", "1440"))
	assert.Equal(t, []string{"b-text", "b-picks", "b-history"}, blockIDs(desktop))

	poor := decodePage(t, app.do(t, http.MethodGet, "/api/v1/pages/open", app.viewerToken(t, "u-poor"), nil, "X-Viewport-Width", "1440"))
	assert.Equal(t, []string{"b-text"}, blockIDs(poor))
}

func TestGetPage_PageRules(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/v1/pages/members", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"requires_auth"`)

	member := decodePage(t, app.do(t, http.MethodGet, "/api/v1/pages/members", app.viewerToken(t, "u-poor"), nil))
	assert.Equal(t, "members", member.Page.Slug)

	w = app.do(t, http.MethodGet, "/api/v1/pages/funded", app.viewerToken(t, "u-rich"), nil)
	assert.Equal(t, http.StatusForbidden, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"min_tokens"`)
}

func TestGetPage_NotFound(t *testing.T) {
	app := newTestApp(t)

	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/v1/pages/draft", "", nil).Code)
	assert.Equal(t, http.StatusNotFound, app.do(t, http.MethodGet, "/api/v1/pages/missing", "", nil).Code)
}

func TestGetPage_BadTokenIsAnonymous(t *testing.T) {
	app := newTestApp(t)

	page := decodePage(t, app.do(t, http.MethodGet, "/api/v1/pages/open", "not-a-jwt", nil))
	assert.False(t, page.Profile.IsAuthenticated)
	assert.Equal(t, []string{"b-text"}, blockIDs(page))
}

func TestCheckGate(t *testing.T) {
	app := newTestApp(t)
	rule := map[string]any{"rule": map[string]any{"minTokens": 50}}

	var anon services.GateResult
	w := app.do(t, http.MethodPost, "/api/v1/gate", "", rule)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &anon))
	assert.False(t, anon.Visible)
	assert.Equal(t, "min_tokens", anon.Reason)
	assert.Equal(t, services.ProfileSourceAnonymous, anon.ProfileSource)

	var rich services.GateResult
	w = app.do(t, http.MethodPost, "/api/v1/gate", app.viewerToken(t, "u-rich"), rule)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &rich))
	assert.True(t, rich.Visible)
	assert.Equal(t, services.ProfileSourceDatabase, rich.ProfileSource)

	var malformed services.GateResult
	w = app.do(t, http.MethodPost, "/api/v1/gate", "", `{"rule":"nonsense"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &malformed))
	assert.True(t, malformed.Visible)

	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/api/v1/gate", "", `not json`).Code)
}

func TestProfileEndpoints(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/api/v1/profile", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"source":"anonymous"`)
	assert.Contains(t, w.Body.String(), `"cacheMode":"request"`)

	token := app.viewerToken(t, "u-rich")
	w = app.do(t, http.MethodGet, "/api/v1/profile", token, nil)
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Profile struct {
			IsAuthenticated bool     `json:"isAuthenticated"`
			TokenBalance    int      `json:"tokenBalance"`
			UsedAnalyzerIDs []string `json:"usedAnalyzerIds"`
		} `json:"profile"`
		Source string `json:"source"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.True(t, body.Profile.IsAuthenticated)
	assert.Equal(t, 100, body.Profile.TokenBalance)
	assert.Equal(t, []string{"nfl-model"}, body.Profile.UsedAnalyzerIDs)
	assert.Equal(t, "database", body.Source)

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodPost, "/api/v1/profile/invalidate", "", nil).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/v1/profile/invalidate", token, nil).Code)
	assert.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/v1/profile/invalidate", token, map[string]string{"reason": "tokens_spent"}).Code)
}

func TestAdminEndpoints(t *testing.T) {
	app := newTestApp(t)

	evaluate := map[string]any{
		"rule":    map[string]any{"requiresAuth": true, "minTokens": 10},
		"profile": map[string]any{"isAuthenticated": true, "tokenBalance": 5},
	}

	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodPost, "/api/v1/admin/evaluate", "", evaluate).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodPost, "/api/v1/admin/evaluate", app.viewerToken(t, "u-rich"), evaluate).Code)
	assert.Equal(t, http.StatusUnauthorized, app.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"password": "nope"}).Code)

	w := app.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{"password": testAdminPassword})
	require.Equal(t, http.StatusOK, w.Code)
	var login services.AuthResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &login))
	require.True(t, login.Success)
	admin := login.Token

	w = app.do(t, http.MethodPost, "/api/v1/admin/evaluate", admin, evaluate)
	require.Equal(t, http.StatusOK, w.Code)
	var decision struct {
		Decision struct {
			Visible bool   `json:"visible"`
			Reason  string `json:"reason"`
		} `json:"decision"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &decision))
	assert.False(t, decision.Decision.Visible)
	assert.Equal(t, "min_tokens", decision.Decision.Reason)

	w = app.do(t, http.MethodPost, "/api/v1/admin/evaluate", admin, map[string]any{"rule": nil})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"reason":"no_rule"`)

	assert.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/v1/admin/profiles/u-rich/invalidate", admin, nil).Code)

	w = app.do(t, http.MethodGet, "/api/v1/admin/performance", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "admin_evaluate_request")

	w = app.do(t, http.MethodGet, "/api/v1/admin/logs/levels", admin, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"cache"`)

	assert.Equal(t, http.StatusOK, app.do(t, http.MethodPost, "/api/v1/admin/logs/levels", admin, map[string]string{"channel": "cache", "level": "debug"}).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/api/v1/admin/logs/levels", admin, map[string]string{"channel": "cache", "level": "loud"}).Code)
	assert.Equal(t, http.StatusBadRequest, app.do(t, http.MethodPost, "/api/v1/admin/logs/levels", admin, map[string]string{"channel": "nope", "level": "info"}).Code)
}

func TestHealthAndRequestID(t *testing.T) {
	app := newTestApp(t)

	w := app.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"status":"ok"`)
	assert.True(t, security.IsULID(w.Header().Get("X-Request-ID")))

	incoming := security.GenerateULID()
	w = app.do(t, http.MethodGet, "/health", "", nil, "X-Request-ID", incoming)
	assert.Equal(t, incoming, w.Header().Get("X-Request-ID"))

	w = app.do(t, http.MethodGet, "/health", "", nil, "X-Request-ID", "<script>")
	assert.NotEqual(t, "<script>", w.Header().Get("X-Request-ID"))
}

func TestProfileStream(t *testing.T) {
	app := newTestApp(t)
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go app.container.ProfileBroadcaster.Run(ctx)

	srv := httptest.NewServer(app.router)
	t.Cleanup(srv.Close)
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/v1/profile/stream"

	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.Error(t, err)
	require.NotNil(t, resp)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	token := app.viewerToken(t, "u-rich")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL+"?token="+token, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool {
		return app.container.ProfileBroadcaster.ClientCount("u-rich") == 1
	}, 2*time.Second, 5*time.Millisecond)

	req, err := http.NewRequest(http.MethodPost, srv.URL+"/api/v1/profile/invalidate", strings.NewReader(`{"reason":"tokens_purchased"}`))
	require.NoError(t, err)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event messaging.ProfileEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, messaging.EventProfileInvalidated, event.Type)
	assert.Equal(t, "u-rich", event.UserID)
	assert.Equal(t, "tokens_purchased", event.Reason)
}
