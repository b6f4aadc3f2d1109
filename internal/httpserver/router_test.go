package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/Skotchmaster/shopcart/internal/db"
	"github.com/Skotchmaster/shopcart/internal/db/dbtest"
	"github.com/Skotchmaster/shopcart/internal/events/eventstest"
	"github.com/Skotchmaster/shopcart/internal/middleware/metrics"
	"github.com/Skotchmaster/shopcart/internal/models"
	"github.com/Skotchmaster/shopcart/internal/repo"
	"github.com/Skotchmaster/shopcart/internal/service"
	"github.com/Skotchmaster/shopcart/internal/session"
)

type testServer struct {
	e      *echo.Echo
	db     *gorm.DB
	events *eventstest.Recorder
}

type serverOpts struct {
	loginRate int
	checks    []ReadyCheck
	csrf      bool
}

func newTestServer(t *testing.T, opts serverOpts) *testServer {
	t.Helper()
	gdb := dbtest.InitTestDB(t)
	r := &repo.GormRepo{DB: gdb}
	sessions := &session.Manager{
		Store:  &session.GormStore{DB: gdb},
		Secret: []byte("test-secret"),
		TTL:    time.Hour,
	}
	rec := &eventstest.Recorder{}
	m := metrics.New("shop")

	if opts.loginRate == 0 {
		opts.loginRate = 1000
	}
	if opts.checks == nil {
		opts.checks = []ReadyCheck{func(ctx context.Context) error { return db.Ping(ctx, gdb) }}
	}

	e := New(slog.New(slog.NewJSONHandler(io.Discard, nil)), m)
	Register(e, &Deps{
		AuthHandler:     &AuthHTTP{Svc: &service.AuthService{Users: r, Sessions: sessions, Events: rec}},
		CatalogHandler:  &CatalogHTTP{Svc: &service.CatalogService{Repo: r, Events: rec}},
		CartHandler:     &CartHTTP{Svc: &service.CartService{Users: r, Products: r, Cart: r, Events: rec}},
		UserHandler:     &UserHTTP{Svc: &service.UserService{Users: r, Sessions: sessions, Events: rec}},
		Sessions:        sessions,
		Metrics:         m,
		ReadyChecks:     opts.checks,
		LoginRatePerMin: opts.loginRate,
		CSRF:            opts.csrf,
	})
	return &testServer{e: e, db: gdb, events: rec}
}

func (s *testServer) do(t *testing.T, method, path string, body any, token string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		rdr = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		rdr = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, rdr)
	if rdr != nil {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	if token != "" {
		req.AddCookie(&http.Cookie{Name: "session", Value: token})
	}
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	return rec
}

func (s *testServer) signup(t *testing.T, username string) string {
	t.Helper()
	rec := s.do(t, http.MethodPost, "/api/users/add", map[string]string{"username": username, "password": "password"}, "")
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/login", map[string]string{"username": username, "password": "password"}, "")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var cookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "session" {
			cookie = ck
		}
	}
	require.NotNil(t, cookie)
	require.True(t, cookie.HttpOnly)
	return cookie.Value
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func message(t *testing.T, rec *httptest.ResponseRecorder) string {
	return decode[map[string]any](t, rec)["message"].(string)
}

func TestHealth(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/live", nil, "").Code)
	assert.Equal(t, http.StatusOK, s.do(t, http.MethodGet, "/health/ready", nil, "").Code)

	down := newTestServer(t, serverOpts{checks: []ReadyCheck{
		func(context.Context) error { return errors.New("db down") },
	}})
	assert.Equal(t, http.StatusServiceUnavailable, down.do(t, http.MethodGet, "/health/ready", nil, "").Code)
}

func TestEmptyCatalog(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	rec := s.do(t, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
}

func TestLoginErrors(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.signup(t, "alice")

	tests := []struct {
		name string
		body any
		code int
	}{
		{name: "wrong password", body: map[string]string{"username": "alice", "password": "nope-nope"}, code: http.StatusUnauthorized},
		{name: "unknown user", body: map[string]string{"username": "bob", "password": "password"}, code: http.StatusNotFound},
		{name: "missing password", body: map[string]string{"username": "alice"}, code: http.StatusBadRequest},
		{name: "malformed json", body: `{"username":`, code: http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := s.do(t, http.MethodPost, "/login", tt.body, "")
			assert.Equal(t, tt.code, rec.Code, rec.Body.String())
			assert.NotEmpty(t, message(t, rec))
		})
	}
}

func TestLoginRateLimit(t *testing.T) {
	s := newTestServer(t, serverOpts{loginRate: 2})
	body := map[string]string{"username": "ghost", "password": "password"}

	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/login", body, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodPost, "/login", body, "").Code)
	rec := s.do(t, http.MethodPost, "/login", body, "")
	assert.Equal(t, http.StatusTooManyRequests, rec.Code)
}

func TestLoginRateLimitIgnoresForwardedHeaders(t *testing.T) {
	s := newTestServer(t, serverOpts{loginRate: 2})

	codes := make([]int, 0, 6)
	for i := 0; i < 6; i++ {
		req := httptest.NewRequest(http.MethodPost, "/login", bytes.NewBufferString(`{"username":"ghost","password":"password"}`))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		req.Header.Set(echo.HeaderXForwardedFor, fmt.Sprintf("198.51.100.%d", i+1))
		req.Header.Set(echo.HeaderXRealIP, fmt.Sprintf("203.0.113.%d", i+1))
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		codes = append(codes, rec.Code)
	}
	assert.Equal(t, []int{404, 404, 429, 429, 429, 429}, codes)
}

func TestIPExtractorTrustedProxies(t *testing.T) {
	_, err := IPExtractor([]string{"not-a-cidr"})
	require.Error(t, err)

	direct, err := IPExtractor(nil)
	require.NoError(t, err)
	viaProxy, err := IPExtractor([]string{"192.0.2.0/24"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "192.0.2.10:4000"
	req.Header.Set(echo.HeaderXForwardedFor, "198.51.100.7")
	assert.Equal(t, "192.0.2.10", direct(req))
	assert.Equal(t, "198.51.100.7", viaProxy(req))

	req.RemoteAddr = "203.0.113.9:4000"
	assert.Equal(t, "203.0.113.9", viaProxy(req))
}

func TestProtectedRoutesNeedSession(t *testing.T) {
	s := newTestServer(t, serverOpts{})

	routes := []struct{ method, path string }{
		{http.MethodPost, "/logout"},
		{http.MethodPost, "/api/products/add"},
		{http.MethodPut, "/api/products/update/1"},
		{http.MethodDelete, "/api/products/delete/1"},
		{http.MethodGet, "/api/cart"},
		{http.MethodPost, "/api/cart/add/1"},
		{http.MethodDelete, "/api/cart/remove/1"},
		{http.MethodPost, "/api/cart/checkout"},
		{http.MethodPut, "/api/users/update"},
		{http.MethodDelete, "/api/users/delete"},
	}
	for _, r := range routes {
		t.Run(r.method+" "+r.path, func(t *testing.T) {
			assert.Equal(t, http.StatusUnauthorized, s.do(t, r.method, r.path, nil, "").Code)
			assert.Equal(t, http.StatusUnauthorized, s.do(t, r.method, r.path, nil, "forged.token.value").Code)
		})
	}
}

func TestProductLifecycle(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	token := s.signup(t, "alice")

	rec := s.do(t, http.MethodPost, "/api/products/add", map[string]any{"name": "Pen"}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/products/add", map[string]any{"name": "Pen", "price": -1}, token)
	require.Equal(t, http.StatusBadRequest, rec.Code)

	for _, price := range []string{"1.999", "10000000000", "12345678901234567890.12"} {
		rec = s.do(t, http.MethodPost, "/api/products/add", `{"name":"Pen","price":`+price+`}`, token)
		require.Equal(t, http.StatusBadRequest, rec.Code, price)
	}

	rec = s.do(t, http.MethodPost, "/api/products/add", `{"name":"Pen","price":1.50,"description":"blue ink"}`, token)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[models.Product](t, rec)
	require.NotZero(t, created.ID)

	rec = s.do(t, http.MethodGet, "/api/products/1", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"id":1,"name":"Pen","price":1.5,"description":"blue ink"}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/products/update/1", `{"price":9.99}`, token)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"id":1,"name":"Pen","price":9.99,"description":"blue ink"}`, rec.Body.String())

	rec = s.do(t, http.MethodPut, "/api/products/update/1", `{"name":""}`, token)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPut, "/api/products/update/42", `{"name":"x"}`, token)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/products", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[{"id":1,"name":"Pen","price":9.99}]`, rec.Body.String())

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodGet, "/api/products/abc", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/products/42", nil, "").Code)

	rec = s.do(t, http.MethodDelete, "/api/products/delete/1", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodGet, "/api/products/1", nil, "").Code)
	assert.Equal(t, http.StatusNotFound, s.do(t, http.MethodDelete, "/api/products/delete/1", nil, token).Code)

	assert.Equal(t, []string{"register", "login", "create_product", "update_product", "delete_product"}, s.events.Types())
}

func TestCartFlow(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	alice := s.signup(t, "alice")
	bob := s.signup(t, "bob")

	rec := s.do(t, http.MethodPost, "/api/products/add", map[string]any{"name": "Pen", "price": "1.50"}, alice)
	require.Equal(t, http.StatusCreated, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/products/add", map[string]any{"name": "Book", "price": 12}, alice)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cart/add/1", map[string]any{"quantity": 2}, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.JSONEq(t, `{"product_id":1,"username":"alice","product_name":"Pen","price":1.5,"quantity":2}`, rec.Body.String())

	rec = s.do(t, http.MethodPost, "/api/cart/add/1", map[string]any{"quantity": 1}, alice)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPost, "/api/cart/add/1", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.EqualValues(t, 1, decode[map[string]any](t, rec)["quantity"])

	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/cart/add/2", map[string]any{"quantity": 0}, alice).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/cart/add/99", nil, alice).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodPost, "/api/cart/add/x", nil, alice).Code)

	rec = s.do(t, http.MethodPost, "/api/cart/add/2", map[string]any{"quantity": 1}, alice)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodGet, "/api/cart", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	lines := decode[[]map[string]any](t, rec)
	require.Len(t, lines, 2)
	assert.Equal(t, "Pen", lines[0]["product_name"])
	assert.EqualValues(t, 2, lines[0]["quantity"])

	assert.Equal(t, http.StatusOK, s.do(t, http.MethodDelete, "/api/cart/remove/2", nil, alice).Code)
	assert.Equal(t, http.StatusBadRequest, s.do(t, http.MethodDelete, "/api/cart/remove/2", nil, alice).Code)

	rec = s.do(t, http.MethodPost, "/api/cart/checkout", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"message":"checkout complete","removed_items":1}`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/cart", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())

	rec = s.do(t, http.MethodGet, "/api/cart", nil, bob)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]map[string]any](t, rec), 1)

	assert.False(t, s.db.Migrator().HasTable("orders"))
}

func TestBearerTokenAndLogout(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	token := s.signup(t, "alice")

	req := httptest.NewRequest(http.MethodGet, "/api/cart", nil)
	req.Header.Set(echo.HeaderAuthorization, "Bearer "+token)
	rec := httptest.NewRecorder()
	s.e.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	rec = s.do(t, http.MethodPost, "/logout", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var cleared bool
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == "session" && ck.MaxAge < 0 {
			cleared = true
		}
	}
	assert.True(t, cleared)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/cart", nil, token).Code)
}

func TestUserAccount(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	alice := s.signup(t, "alice")
	s.signup(t, "bob")

	rec := s.do(t, http.MethodPost, "/api/users/add", map[string]string{"username": "alice", "password": "password"}, "")
	assert.Equal(t, http.StatusConflict, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/users/add", map[string]string{"username": "al", "password": "password"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	rec = s.do(t, http.MethodPost, "/api/users/add", map[string]string{"username": "carol", "password": "123"}, "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/users/update", map[string]string{"username": "bob"}, alice)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = s.do(t, http.MethodPut, "/api/users/update", map[string]string{"username": "alicia"}, alice)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "alicia", decode[map[string]any](t, rec)["username"])

	rec = s.do(t, http.MethodDelete, "/api/users/delete", nil, alice)
	require.Equal(t, http.StatusOK, rec.Code)

	assert.Equal(t, http.StatusUnauthorized, s.do(t, http.MethodGet, "/api/cart", nil, alice).Code)
	rec = s.do(t, http.MethodPost, "/login", map[string]string{"username": "alicia", "password": "password"}, "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestServer(t, serverOpts{})
	s.do(t, http.MethodGet, "/api/products", nil, "")

	rec := s.do(t, http.MethodGet, "/metrics", nil, "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `shop_http_requests_total{method="GET",route="/api/products",status="200"} 1`)
}

func TestCSRFGuard(t *testing.T) {
	s := newTestServer(t, serverOpts{csrf: true})
	token := s.signup(t, "alice")
	body := `{"name":"Pen","price":1}`

	post := func(cookies []*http.Cookie, header map[string]string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/api/products/add", bytes.NewBufferString(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
		for _, ck := range cookies {
			req.AddCookie(ck)
		}
		for k, v := range header {
			req.Header.Set(k, v)
		}
		rec := httptest.NewRecorder()
		s.e.ServeHTTP(rec, req)
		return rec
	}
	sessionCookie := &http.Cookie{Name: "session", Value: token}

	rec := post([]*http.Cookie{sessionCookie}, nil)
	assert.GreaterOrEqual(t, rec.Code, 400)
	assert.Less(t, rec.Code, 500)

	rec = s.do(t, http.MethodGet, "/api/products", nil, token)
	require.Equal(t, http.StatusOK, rec.Code)
	var csrfCookie *http.Cookie
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == CSRFCookie {
			csrfCookie = ck
		}
	}
	require.NotNil(t, csrfCookie)

	rec = post([]*http.Cookie{sessionCookie, csrfCookie}, map[string]string{CSRFHeader: "wrong"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = post([]*http.Cookie{sessionCookie, csrfCookie}, map[string]string{CSRFHeader: csrfCookie.Value})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = post(nil, map[string]string{echo.HeaderAuthorization: "Bearer " + token})
	assert.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}
