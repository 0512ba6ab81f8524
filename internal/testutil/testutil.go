// Package testutil wires a gin engine over the in-memory store for handler
// tests.
package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/tunehaven/tunehaven/internal/auth"
	"github.com/tunehaven/tunehaven/internal/validate"
	"github.com/tunehaven/tunehaven/pkg/jwt"
	"github.com/tunehaven/tunehaven/pkg/models"
	"github.com/tunehaven/tunehaven/pkg/storage"
)

// Password is the password of every user made by CreateUser.
const Password = "Secret123!"

type Env struct {
	t *testing.T

	Store  *storage.Memory
	Engine *gin.Engine
	// API is the authenticated /api group.
	API *gin.RouterGroup
	// Public is the /api group without the session middleware.
	Public   *gin.RouterGroup
	Auth     *auth.Handler
	Sessions *auth.MemorySessions
	Log      *zap.Logger
}

func New(t *testing.T) *Env {
	t.Helper()
	gin.SetMode(gin.TestMode)
	validate.Register()

	store := storage.NewMemory()
	log := zap.NewNop()
	sessions := auth.NewMemorySessions()
	h := auth.NewHandler(store, sessions, jwt.NewSigner("test-secret", time.Hour), log, false)

	engine := gin.New()
	public := engine.Group("/api")
	h.RegisterRoutes(public)

	return &Env{
		t:        t,
		Store:    store,
		Engine:   engine,
		API:      public.Group("", h.Middleware()),
		Public:   public,
		Auth:     h,
		Sessions: sessions,
		Log:      log,
	}
}

func (e *Env) CreateUser(username string, admin bool) *models.User {
	e.t.Helper()
	user, err := e.Store.CreateUser(context.Background(), models.NewUser{
		Username: username,
		Password: Password,
		Email:    username + "@example.com",
		IsAdmin:  admin,
	})
	if err != nil {
		e.t.Fatalf("create user %s: %v", username, err)
	}
	return user
}

// Login signs in and returns the session cookie.
func (e *Env) Login(username string) *http.Cookie {
	e.t.Helper()
	rec := e.Do(http.MethodPost, "/api/login", map[string]string{
		"username": username,
		"password": Password,
	}, nil)
	if rec.Code != http.StatusOK {
		e.t.Fatalf("login %s: status %d body %s", username, rec.Code, rec.Body.String())
	}
	for _, ck := range rec.Result().Cookies() {
		if ck.Name == auth.CookieName {
			return ck
		}
	}
	e.t.Fatalf("login %s: no session cookie", username)
	return nil
}

// UserSession creates a user and logs them in.
func (e *Env) UserSession(username string, admin bool) (*models.User, *http.Cookie) {
	e.t.Helper()
	user := e.CreateUser(username, admin)
	return user, e.Login(username)
}

// Do sends body as JSON unless it is nil.
func (e *Env) Do(method, path string, body interface{}, cookie *http.Cookie) *httptest.ResponseRecorder {
	e.t.Helper()
	var r io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		if err != nil {
			e.t.Fatalf("marshal body: %v", err)
		}
		r = bytes.NewReader(buf)
	}
	req := httptest.NewRequest(method, path, r)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return e.Serve(req, cookie)
}

func (e *Env) Serve(req *http.Request, cookie *http.Cookie) *httptest.ResponseRecorder {
	if cookie != nil {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	e.Engine.ServeHTTP(rec, req)
	return rec
}

// Decode unmarshals the recorded JSON body into a T.
func Decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rec.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return out
}

// ExpectStatus fails the test when the recorded status differs.
func ExpectStatus(t *testing.T, rec *httptest.ResponseRecorder, want int) {
	t.Helper()
	if rec.Code != want {
		t.Fatalf("status = %d, want %d; body %s", rec.Code, want, rec.Body.String())
	}
}
