package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/AzaLess/guesswho/internal/config"
	"github.com/AzaLess/guesswho/internal/db"
	"github.com/AzaLess/guesswho/internal/game"
)

func newTestServer(t *testing.T, cfg config.Config) *httptest.Server {
	t.Helper()
	conn, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	engine := game.New(conn, cfg, game.WithPicker(func(n int) int { return 0 }))
	handler := New(engine, cfg).Handler()

	listener, err := net.Listen("tcp4", "127.0.0.1:0")
	if err != nil {
		t.Skipf("skipping test; listen unavailable: %v", err)
	}
	ts := &httptest.Server{
		Listener: listener,
		Config:   &http.Server{Handler: handler},
	}
	ts.Start()
	t.Cleanup(ts.Close)
	return ts
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.RateLimitPerMinute = 0
	return cfg
}

func doRequest(t *testing.T, ts *httptest.Server, method, path string, payload any) *http.Response {
	t.Helper()
	var body *bytes.Reader
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(data)
	} else {
		body = bytes.NewReader(nil)
	}

	req, err := http.NewRequest(method, ts.URL+path, body)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	t.Cleanup(func() {
		_ = resp.Body.Close()
	})
	return resp
}

func decodeBody(t *testing.T, resp *http.Response) map[string]any {
	t.Helper()
	var body map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	return body
}

func expectStatus(t *testing.T, resp *http.Response, status int) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected %d, got %d", status, resp.StatusCode)
	}
}

func expectReason(t *testing.T, resp *http.Response, status int, reason string) {
	t.Helper()
	expectStatus(t, resp, status)
	body := decodeBody(t, resp)
	if body["reason"] != reason {
		t.Fatalf("expected reason %s, got %v", reason, body)
	}
}

func createGame(t *testing.T, ts *httptest.Server) (string, uint) {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games", map[string]string{"name": "H"})
	expectStatus(t, resp, http.StatusCreated)
	body := decodeBody(t, resp)
	token, ok := body["token"].(string)
	if !ok || token == "" {
		t.Fatalf("expected token, got %v", body)
	}
	return token, idOf(t, body["player"])
}

func joinPlayer(t *testing.T, ts *httptest.Server, token, name string) uint {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+token+"/join", map[string]string{"name": name})
	expectStatus(t, resp, http.StatusCreated)
	return idOf(t, decodeBody(t, resp)["player"])
}

func submitFact(t *testing.T, ts *httptest.Server, token string, playerID uint, text string) uint {
	t.Helper()
	resp := doRequest(t, ts, http.MethodPost, "/api/games/"+token+"/facts", map[string]any{
		"player_id": playerID,
		"text":      text,
	})
	expectStatus(t, resp, http.StatusCreated)
	return idOf(t, decodeBody(t, resp)["fact"])
}

func fetchState(t *testing.T, ts *httptest.Server, token string) map[string]any {
	t.Helper()
	resp := doRequest(t, ts, http.MethodGet, "/api/games/"+token, nil)
	expectStatus(t, resp, http.StatusOK)
	return decodeBody(t, resp)
}

func idOf(t *testing.T, value any) uint {
	t.Helper()
	obj, ok := value.(map[string]any)
	if !ok {
		t.Fatalf("expected object, got %T", value)
	}
	id, ok := obj["id"].(float64)
	if !ok {
		t.Fatalf("expected numeric id, got %v", obj["id"])
	}
	return uint(id)
}

func gamePath(token, suffix string) string {
	return fmt.Sprintf("/api/games/%s/%s", token, suffix)
}
