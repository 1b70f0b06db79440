package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/vibecorp/vibecorp/agent"
	"github.com/vibecorp/vibecorp/comms"
	"github.com/vibecorp/vibecorp/config"
	"github.com/vibecorp/vibecorp/internal/db"
	"github.com/vibecorp/vibecorp/memory"
	"github.com/vibecorp/vibecorp/task"
)

// fakeSim is a SimControl for handler tests.
type fakeSim struct{ running bool }

func (f *fakeSim) StartSim() error { f.running = true; return nil }
func (f *fakeSim) StopSim()        { f.running = false }
func (f *fakeSim) SimRunning() bool {
	return f.running
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	f, err := os.CreateTemp("", "vibecorp-server-*.db")
	if err != nil {
		t.Fatalf("create temp file: %v", err)
	}
	f.Close()
	path := f.Name()
	t.Cleanup(func() { os.Remove(path) })

	conn, err := db.Open(path)
	if err != nil {
		t.Fatalf("db.Open: %v", err)
	}
	t.Cleanup(func() { conn.Close() })

	agents := agent.NewStore(conn)
	tasks := task.NewSQLiteStore(conn)
	channels := comms.NewSQLiteStore(conn)
	memories := memory.NewStore(conn)
	for _, init := range []func() error{
		agents.InitTables, tasks.InitTables, channels.InitTables, memories.InitTables,
	} {
		if err := init(); err != nil {
			t.Fatalf("InitTables: %v", err)
		}
	}

	hash, err := bcrypt.GenerateFromPassword([]byte("secret"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}
	cfg := config.Config{
		Server: config.ServerConfig{Addr: ":0"},
		Auth: config.AuthConfig{
			AdminUser: "admin",
			AdminPass: string(hash),
			JWTSecret: "test-secret-key-1234567890",
		},
	}
	return New(cfg, "test", nil, Deps{
		Agents:   agents,
		Tasks:    tasks,
		Comms:    channels,
		Memories: memories,
		Sim:      &fakeSim{},
	})
}

func TestSignAndVerifyJWT(t *testing.T) {
	secret := "my-test-secret"
	claims := jwtClaims{
		Sub: "alice",
		Iat: time.Now().Unix(),
		Exp: time.Now().Add(time.Hour).Unix(),
	}
	token, err := signJWT(secret, claims)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}
	subject, err := verifyJWT(secret, token)
	if err != nil {
		t.Fatalf("verifyJWT: %v", err)
	}
	if subject != "alice" {
		t.Errorf("subject = %q, want alice", subject)
	}
}

func TestVerifyJWT_ExpiredToken(t *testing.T) {
	secret := "my-test-secret"
	claims := jwtClaims{
		Sub: "alice",
		Iat: time.Now().Add(-2 * time.Hour).Unix(),
		Exp: time.Now().Add(-time.Hour).Unix(),
	}
	token, err := signJWT(secret, claims)
	if err != nil {
		t.Fatalf("signJWT: %v", err)
	}
	if _, err := verifyJWT(secret, token); err == nil {
		t.Fatal("expected error for expired token")
	}
}

func TestVerifyJWT_BadSignature(t *testing.T) {
	claims := jwtClaims{
		Sub: "alice",
		Iat: time.Now().Unix(),
		Exp: time.Now().Add(time.Hour).Unix(),
	}
	token, _ := signJWT("correct-secret", claims)
	if _, err := verifyJWT("wrong-secret", token); err == nil {
		t.Fatal("expected error for wrong secret")
	}
}

func TestHandleLogin_Success(t *testing.T) {
	s := newTestServer(t)
	s.registerRoutes()

	body := `{"username":"admin","password":"secret"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if resp["token"] == "" {
		t.Error("expected non-empty token in response")
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	s := newTestServer(t)
	s.registerRoutes()

	body := `{"username":"admin","password":"wrong"}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestHandleLogin_NoPasswordConfigured(t *testing.T) {
	s := newTestServer(t)
	s.cfg.Auth.AdminPass = ""
	s.registerRoutes()

	body := `{"username":"admin","password":""}`
	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(body))
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401 when login is disabled, got %d", rr.Code)
	}
}

func TestAuthMiddleware_MissingToken(t *testing.T) {
	s := newTestServer(t)
	s.registerRoutes()

	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	rr := httptest.NewRecorder()

	s.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusUnauthorized {
		t.Errorf("expected 401, got %d", rr.Code)
	}
}

func TestAuthMiddleware_ValidToken(t *testing.T) {
	s := newTestServer(t)
	s.registerRoutes()

	loginBody := `{"username":"admin","password":"secret"}`
	loginReq := httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewBufferString(loginBody))
	loginRR := httptest.NewRecorder()
	s.mux.ServeHTTP(loginRR, loginReq)
	if loginRR.Code != http.StatusOK {
		t.Fatalf("login failed: %d", loginRR.Code)
	}
	var loginResp map[string]string
	json.NewDecoder(loginRR.Body).Decode(&loginResp) //nolint:errcheck

	req := httptest.NewRequest(http.MethodGet, "/api/agents", nil)
	req.Header.Set("Authorization", "Bearer "+loginResp["token"])
	rr := httptest.NewRecorder()
	s.mux.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
}
