package remote

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tunehaven/tunehaven/internal/testutil"
)

type fixture struct {
	hub    *Hub
	server *httptest.Server
	cookie *http.Cookie
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	env := testutil.New(t)
	hub := NewHub()
	NewHandler(hub, []string{"http://localhost:5173"}, env.Log).RegisterRoutes(env.API)
	_, cookie := env.UserSession("alice", false)

	server := httptest.NewServer(env.Engine)
	t.Cleanup(server.Close)
	return &fixture{hub: hub, server: server, cookie: cookie}
}

func (f *fixture) dial(t *testing.T, token string, role Role) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/remote/ws?token=" + token + "&role=" + string(role)
	header := http.Header{}
	header.Set("Cookie", f.cookie.String())
	conn, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		status := 0
		if resp != nil {
			status = resp.StatusCode
		}
		t.Fatalf("dial %s: %v (status %d)", role, err, status)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func (f *fixture) waitFor(t *testing.T, token string, player bool, controllers int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		p, n := f.hub.Connected(token)
		if p == player && n == controllers {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	p, n := f.hub.Connected(token)
	t.Fatalf("pairing %s: player=%v controllers=%d, want %v/%d", token, p, n, player, controllers)
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var out map[string]interface{}
	if err := conn.ReadJSON(&out); err != nil {
		t.Fatalf("read: %v", err)
	}
	return out
}

func TestTokenEndpoint(t *testing.T) {
	f := newFixture(t)
	req, _ := http.NewRequest(http.MethodGet, f.server.URL+"/api/remote/token", nil)
	req.AddCookie(f.cookie)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var body struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatal(err)
	}
	if resp.StatusCode != http.StatusOK || body.Token == "" {
		t.Fatalf("status %d token %q", resp.StatusCode, body.Token)
	}

	resp, err = http.Get(f.server.URL + "/api/remote/token")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("anonymous token status = %d", resp.StatusCode)
	}
}

func TestRelay(t *testing.T) {
	f := newFixture(t)
	pair := f.hub.Issue()
	player := f.dial(t, pair, RolePlayer)
	f.waitFor(t, pair, true, 0)
	controller := f.dial(t, pair, RoleController)
	f.waitFor(t, pair, true, 1)

	// Unknown commands never reach the player; the valid one after it does.
	if err := controller.WriteJSON(map[string]interface{}{"type": "command", "command": "shuffle"}); err != nil {
		t.Fatal(err)
	}
	if err := controller.WriteJSON(map[string]interface{}{"type": "command", "command": "volume", "value": 40}); err != nil {
		t.Fatal(err)
	}
	got := readJSON(t, player)
	if got["command"] != "volume" || got["value"] != float64(40) {
		t.Errorf("player got %v", got)
	}

	status := map[string]interface{}{"type": "status", "currentSong": map[string]interface{}{"id": 3}, "isPlaying": true, "volume": 40}
	if err := player.WriteJSON(status); err != nil {
		t.Fatal(err)
	}
	got = readJSON(t, controller)
	if got["type"] != "status" || got["isPlaying"] != true {
		t.Errorf("controller got %v", got)
	}

	player.Close()
	if got := readJSON(t, controller); got["type"] != "disconnected" {
		t.Errorf("controller got %v after player left", got)
	}
	f.waitFor(t, pair, false, 1)
}

func TestPairingsAreIsolated(t *testing.T) {
	f := newFixture(t)
	a, b := f.hub.Issue(), f.hub.Issue()
	playerA := f.dial(t, a, RolePlayer)
	playerB := f.dial(t, b, RolePlayer)
	f.waitFor(t, a, true, 0)
	f.waitFor(t, b, true, 0)
	controllerA := f.dial(t, a, RoleController)
	f.waitFor(t, a, true, 1)

	if err := controllerA.WriteJSON(map[string]string{"type": "command", "command": "pause"}); err != nil {
		t.Fatal(err)
	}
	if got := readJSON(t, playerA); got["command"] != "pause" {
		t.Errorf("player a got %v", got)
	}

	_ = playerB.SetReadDeadline(time.Now().Add(100 * time.Millisecond))
	if _, _, err := playerB.ReadMessage(); err == nil {
		t.Error("player b received a message for another pairing")
	}
}

func TestConnectValidation(t *testing.T) {
	f := newFixture(t)
	url := "ws" + strings.TrimPrefix(f.server.URL, "http") + "/api/remote/ws?token=x&role=spectator"
	header := http.Header{}
	header.Set("Cookie", f.cookie.String())
	_, resp, err := websocket.DefaultDialer.Dial(url, header)
	if err == nil {
		t.Fatal("expected dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("resp = %v", resp)
	}

	header.Set("Origin", "http://evil.example")
	_, resp, err = websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.server.URL, "http")+"/api/remote/ws?token="+f.hub.Issue()+"&role=player", header)
	if err == nil || resp == nil || resp.StatusCode != http.StatusForbidden {
		t.Errorf("foreign origin: err=%v resp=%v", err, resp)
	}
}

func TestConnectRejectsUnissuedToken(t *testing.T) {
	f := newFixture(t)
	header := http.Header{}
	header.Set("Cookie", f.cookie.String())
	_, resp, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(f.server.URL, "http")+"/api/remote/ws?token=made-up&role=player", header)
	if err == nil {
		t.Fatal("dial with a made-up token succeeded")
	}
	if resp == nil || resp.StatusCode != http.StatusBadRequest {
		t.Errorf("resp = %v", resp)
	}
	if p, _ := f.hub.Connected("made-up"); p {
		t.Error("made-up token joined the hub")
	}
}
