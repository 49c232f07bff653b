package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"go-llmlab/internal/archive"
	"go-llmlab/internal/auth"
	"go-llmlab/internal/config"
	"go-llmlab/internal/convo"
	"go-llmlab/internal/db"
	"go-llmlab/internal/llm"
	"go-llmlab/internal/tools"
	"go-llmlab/internal/user"
)

const testPassword = "pw1"

func contains(s, substr string) bool {
	return strings.Contains(s, substr)
}

// setupTestDB points db.DB at a fresh in-memory database.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	dbConn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := dbConn.AutoMigrate(&user.User{}); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	if err := dbConn.AutoMigrate(archive.Models()...); err != nil {
		t.Fatalf("failed to migrate: %v", err)
	}
	db.DB = dbConn
	return dbConn
}

func seedUser(t *testing.T, username string, role user.Role) user.User {
	t.Helper()
	hash, err := user.HashPassword(testPassword)
	if err != nil {
		t.Fatalf("failed to hash password: %v", err)
	}
	u := user.User{Username: username, PasswordHash: hash, Role: role, CreatedAt: time.Now()}
	if err := db.DB.Create(&u).Error; err != nil {
		t.Fatalf("failed to seed user: %v", err)
	}
	return u
}

// scripted answers with its reply, or fails with err.
type scripted struct {
	name  string
	reply string
	err   error

	mu   sync.Mutex
	reqs []llm.Request
}

func (s *scripted) Name() string { return s.name }

func (s *scripted) Generate(_ context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.reqs = append(s.reqs, req)
	s.mu.Unlock()
	if s.err != nil {
		return "", s.err
	}
	if s.reply != "" {
		return s.reply, nil
	}
	return "reply from " + s.name, nil
}

func unavailableBackend(name string) *scripted {
	return &scripted{name: name, err: &llm.BackendError{Backend: name, Kind: llm.ErrBackendUnavailable, Err: errors.New("connection refused")}}
}

type fakePages struct {
	contents map[string]string
	links    []string
}

func (f *fakePages) FetchWebsiteContents(_ context.Context, url string) (string, error) {
	text, ok := f.contents[url]
	if !ok {
		return "", fmt.Errorf("%w: HTTP 404", tools.ErrFetchFailed)
	}
	return text, nil
}

func (f *fakePages) FetchWebsiteLinks(context.Context, string) ([]string, error) {
	return f.links, nil
}

type testEnv struct {
	cfg    *config.Config
	svc    *Services
	router *gin.Engine
}

func newTestEnv(t *testing.T, backends ...llm.Backend) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	dbConn := setupTestDB(t)

	cfg := &config.Config{}
	cfg.Server.JWTSecret = "secret"
	cfg.Backends = []config.BackendConfig{{Name: "a", Provider: "openai", Model: "gpt-4o-mini", APIKeyEnv: "OPENAI_API_KEY"}}
	cfg.Summary.Backend = "summarizer"
	cfg.Brochure.Backend = "writer"
	cfg.Brochure.LinkBackend = "links"

	reg := &llm.Registry{}
	for _, b := range backends {
		reg.Register(b)
	}
	svc := &Services{
		Registry: reg,
		Pages: &fakePages{contents: map[string]string{
			"https://acme.test":       "Acme Rockets\n\nWe build rockets",
			"https://acme.test/about": "About Acme\n\nFounded 1949",
		}, links: []string{"/about", "/privacy"}},
		Store:    archive.NewStore(dbConn),
		Sessions: auth.NewMemorySessions(),
	}
	return &testEnv{cfg: cfg, svc: svc, router: SetupRouter(cfg, svc)}
}

// login issues a token for u and stores its session.
func (e *testEnv) login(t *testing.T, u user.User) string {
	t.Helper()
	token, err := auth.GenerateJWT(e.cfg.Server.JWTSecret, u.ID, u.Username, string(u.Role), time.Hour)
	if err != nil {
		t.Fatalf("failed to generate JWT: %v", err)
	}
	if err := e.svc.Sessions.Set(context.Background(), u.ID, token, time.Hour); err != nil {
		t.Fatalf("failed to store session: %v", err)
	}
	return token
}

func (e *testEnv) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		b, _ := json.Marshal(body)
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

func duoRequest(secondBackend string, rounds int) ConversationRequest {
	return ConversationRequest{
		Cast: &convo.Cast{
			Name: "duo",
			Speakers: []convo.CastMember{
				{ID: "a", Name: "Ann", Persona: "You are Ann", Backend: "a", Seed: "hello"},
				{ID: "b", Name: "Bob", Persona: "You are Bob", Backend: secondBackend, Seed: "hi"},
			},
		},
		Rounds: &rounds,
	}
}
