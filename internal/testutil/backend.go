package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/membit-bot/botctl/internal/client"
)

// Fake backend credentials.
const (
	BackendUsername = "admin"
	BackendPassword = "password123"
	BackendCode     = "123456"
	BackendCookie   = "test-session"
	BackendSecret   = "JBSWY3DPEHPK3PXP"
)

// Backend is an in-process fake of the bot backend: the JSON API plus a
// minimal Socket.IO endpoint. It records every request and command.
type Backend struct {
	t      testing.TB
	server *httptest.Server

	upgrader websocket.Upgrader

	mu       sync.Mutex
	session  client.Session
	config   client.BotConfig
	keys     client.Credentials
	status   client.BotStatus
	logs     []client.LogEntry
	calls    map[string]int
	failures map[string]failure
	commands []string
	sockets  map[*socketConn]struct{}
	connects int
	reject   bool
	// early sends the connect snapshot before the namespace ack, as
	// python-socketio does when its connect handler emits.
	early bool
}

type failure struct {
	status int
	body   string
}

type socketConn struct {
	conn *websocket.Conn
	mu   sync.Mutex
}

func (s *socketConn) send(msg string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.conn.WriteMessage(websocket.TextMessage, []byte(msg))
}

// NewBackend starts a fake backend that is already set up and has no
// logged-in session. It is closed with the test.
func NewBackend(t testing.TB) *Backend {
	t.Helper()

	b := &Backend{
		t:        t,
		session:  client.Session{SetupCompleted: true, Username: BackendUsername},
		config:   client.DefaultBotConfig(),
		calls:    map[string]int{},
		failures: map[string]failure{},
		sockets:  map[*socketConn]struct{}{},
	}
	b.config.PromptTemplate = "Write a tweet about {topic}"
	b.keys = client.Credentials{
		MembitKey:           client.UnsetKey,
		GeminiKey:           client.UnsetKey,
		TwitterKey:          client.UnsetKey,
		TwitterSecret:       client.UnsetKey,
		TwitterToken:        client.UnsetKey,
		TwitterAccessSecret: client.UnsetKey,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/auth/status", b.handleAuthStatus)
	mux.HandleFunc("/api/auth/setup", b.handleSetup)
	mux.HandleFunc("/api/auth/verify-setup", b.handleVerifySetup)
	mux.HandleFunc("/api/auth/login", b.handleLogin)
	mux.HandleFunc("/api/auth/logout", b.handleLogout)
	mux.HandleFunc("/api/config", b.authed(b.handleConfig))
	mux.HandleFunc("/api/keys", b.authed(b.handleKeys))
	mux.HandleFunc("/api/prompt", b.authed(b.handlePrompt))
	mux.HandleFunc("/api/status", b.authed(b.handleStatus))
	mux.HandleFunc("/api/logs", b.authed(b.handleLogs))
	mux.HandleFunc("/socket.io/", b.handleSocket)

	b.server = httptest.NewServer(b.record(mux))
	t.Cleanup(b.Close)

	return b
}

// URL returns the backend base URL.
func (b *Backend) URL() string {
	return b.server.URL
}

// Close disconnects every socket and stops the server.
func (b *Backend) Close() {
	b.DropSockets()
	b.server.Close()
}

// Calls returns how many times method path was requested.
func (b *Backend) Calls(method, path string) int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.calls[method+" "+path]
}

// Commands returns the live-channel commands received, in order.
func (b *Backend) Commands() []string {
	b.mu.Lock()
	defer b.mu.Unlock()

	return append([]string(nil), b.commands...)
}

// SocketConnects returns how many namespace connects were accepted.
func (b *Backend) SocketConnects() int {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.connects
}

// SetSession replaces the auth status.
func (b *Backend) SetSession(s client.Session) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.session = s
}

// Session returns the current auth status.
func (b *Backend) Session() client.Session {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.session
}

// SetConfig replaces the stored bot configuration.
func (b *Backend) SetConfig(cfg client.BotConfig) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.config = cfg
}

// Config returns the stored bot configuration.
func (b *Backend) Config() client.BotConfig {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.config
}

// SetKeys replaces the stored API keys.
func (b *Backend) SetKeys(keys client.Credentials) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.keys = keys
}

// Keys returns the stored API keys.
func (b *Backend) Keys() client.Credentials {
	b.mu.Lock()
	defer b.mu.Unlock()

	return b.keys
}

// SetStatus replaces the bot status.
func (b *Backend) SetStatus(s client.BotStatus) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.status = s
}

// SetLogs replaces the retained log history.
func (b *Backend) SetLogs(logs []client.LogEntry) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.logs = append([]client.LogEntry(nil), logs...)
}

// Fail makes every method path request answer with status and body.
func (b *Backend) Fail(method, path string, status int, body string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.failures[method+" "+path] = failure{status: status, body: body}
}

// LoginCookie returns a cookie the backend accepts as logged in.
func (b *Backend) LoginCookie() *http.Cookie {
	b.mu.Lock()
	b.session.SetupCompleted = true
	b.session.LoggedIn = true
	b.mu.Unlock()

	return &http.Cookie{Name: client.SessionCookieName, Value: BackendCookie}
}

// RejectSockets makes every namespace connect fail with connect_error.
func (b *Backend) RejectSockets() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.reject = true
}

// SnapshotBeforeAck makes new sockets receive the status and log replay
// before the namespace connect ack.
func (b *Backend) SnapshotBeforeAck() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.early = true
}

// Push sends an event to every connected socket.
func (b *Backend) Push(event string, data any) {
	msg := eventFrame(b.t, event, data)

	for _, s := range b.socketList() {
		_ = s.send(msg)
	}
}

// PushRaw sends a raw frame to every connected socket.
func (b *Backend) PushRaw(frame string) {
	for _, s := range b.socketList() {
		_ = s.send(frame)
	}
}

// DropSockets closes every socket without a close handshake.
func (b *Backend) DropSockets() {
	b.mu.Lock()
	socks := b.sockets
	b.sockets = map[*socketConn]struct{}{}
	b.mu.Unlock()

	for s := range socks {
		_ = s.conn.Close()
	}
}

// WaitForSockets blocks until n sockets are connected or timeout elapses.
func (b *Backend) WaitForSockets(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if len(b.socketList()) >= n {
			return true
		}

		time.Sleep(5 * time.Millisecond)
	}

	return false
}

// WaitForCommands blocks until n commands were received or timeout elapses.
func (b *Backend) WaitForCommands(n int, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)

	for time.Now().Before(deadline) {
		if len(b.Commands()) >= n {
			return true
		}

		time.Sleep(5 * time.Millisecond)
	}

	return false
}

func (b *Backend) socketList() []*socketConn {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]*socketConn, 0, len(b.sockets))
	for s := range b.sockets {
		out = append(out, s)
	}

	return out
}

func (b *Backend) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := r.Method + " " + r.URL.Path

		b.mu.Lock()
		b.calls[key]++
		f, failing := b.failures[key]
		b.mu.Unlock()

		if failing {
			w.WriteHeader(f.status)
			_, _ = w.Write([]byte(f.body))

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (b *Backend) loggedIn(r *http.Request) bool {
	cookie, err := r.Cookie(client.SessionCookieName)
	if err != nil || cookie.Value != BackendCookie {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	return b.session.LoggedIn
}

func (b *Backend) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !b.loggedIn(r) {
			writeJSON(w, http.StatusUnauthorized, map[string]any{"error": "Authentication required"})
			return
		}

		next(w, r)
	}
}

func (b *Backend) handleAuthStatus(w http.ResponseWriter, r *http.Request) {
	b.mu.Lock()
	s := b.session
	b.mu.Unlock()

	if s.LoggedIn && !b.loggedIn(r) {
		s.LoggedIn = false
	}

	writeJSON(w, http.StatusOK, s)
}

func (b *Backend) handleSetup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	_ = json.NewDecoder(r.Body).Decode(&body)

	b.mu.Lock()
	done := b.session.SetupCompleted
	b.mu.Unlock()

	if done {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Setup already completed"})
		return
	}

	b.mu.Lock()
	b.session.Username = body.Username
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: client.SessionCookieName, Value: BackendCookie, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{
		"success":      true,
		"qr_code":      "iVBORw0KGgo=",
		"totp_secret":  BackendSecret,
		"backup_codes": []string{"A1B2C3D4", "E5F6A7B8"},
	})
}

func (b *Backend) handleVerifySetup(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Code string `json:"totp_code"`
	}

	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.Code != BackendCode {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Invalid verification code"})
		return
	}

	b.mu.Lock()
	b.session.SetupCompleted = true
	b.session.LoggedIn = true
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handleLogin(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
		Code     string `json:"totp_code"`
	}

	_ = json.NewDecoder(r.Body).Decode(&body)

	switch {
	case body.Username != BackendUsername || body.Password != BackendPassword:
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Invalid credentials"})
		return
	case body.Code != BackendCode:
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Invalid verification code"})
		return
	}

	b.mu.Lock()
	b.session.LoggedIn = true
	b.mu.Unlock()

	http.SetCookie(w, &http.Cookie{Name: client.SessionCookieName, Value: BackendCookie, Path: "/"})
	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handleLogout(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	b.session.LoggedIn = false
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handleConfig(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, b.Config())
		return
	}

	var update client.ConfigUpdate
	if err := json.NewDecoder(r.Body).Decode(&update); err != nil {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": err.Error()})
		return
	}

	b.mu.Lock()
	prompt := b.config.PromptTemplate
	b.config = client.BotConfig{
		ScheduleHours:        update.ScheduleHours,
		MaxRetries:           update.MaxRetries,
		MaxTweetLength:       update.MaxTweetLength,
		PromptTemplate:       prompt,
		EnableImage:          update.EnableImage,
		ImageStyle:           update.ImageStyle,
		ImageWidth:           update.ImageWidth,
		ImageHeight:          update.ImageHeight,
		MembitUseTrending:    update.MembitUseTrending,
		MembitUseClusterInfo: update.MembitUseClusterInfo,
		MembitUsePosts:       update.MembitUsePosts,
	}
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handleKeys(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodGet {
		writeJSON(w, http.StatusOK, b.Keys())
		return
	}

	var in client.Credentials
	_ = json.NewDecoder(r.Body).Decode(&in)

	b.mu.Lock()
	setIf(&b.keys.MembitKey, in.MembitKey)
	setIf(&b.keys.GeminiKey, in.GeminiKey)
	setIf(&b.keys.TwitterKey, in.TwitterKey)
	setIf(&b.keys.TwitterSecret, in.TwitterSecret)
	setIf(&b.keys.TwitterToken, in.TwitterToken)
	setIf(&b.keys.TwitterAccessSecret, in.TwitterAccessSecret)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handlePrompt(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Prompt string `json:"prompt_template"`
	}

	_ = json.NewDecoder(r.Body).Decode(&body)

	if body.Prompt == "" {
		writeJSON(w, http.StatusOK, map[string]any{"success": false, "error": "Prompt template cannot be empty"})
		return
	}

	b.mu.Lock()
	b.config.PromptTemplate = body.Prompt
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{"success": true})
}

func (b *Backend) handleStatus(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	s := b.status
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, s)
}

func (b *Backend) handleLogs(w http.ResponseWriter, _ *http.Request) {
	b.mu.Lock()
	logs := append([]client.LogEntry{}, b.logs...)
	b.mu.Unlock()

	writeJSON(w, http.StatusOK, logs)
}

func (b *Backend) handleSocket(w http.ResponseWriter, r *http.Request) {
	if r.URL.Query().Get("EIO") != "4" || r.URL.Query().Get("transport") != "websocket" {
		http.Error(w, "unsupported transport", http.StatusBadRequest)
		return
	}

	conn, err := b.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	s := &socketConn{conn: conn}
	defer conn.Close()

	if err := s.send(`0{"sid":"fake-sid","upgrades":[],"pingInterval":25000,"pingTimeout":20000,"maxPayload":1000000}`); err != nil {
		return
	}

	_, msg, err := conn.ReadMessage()
	if err != nil || !strings.HasPrefix(string(msg), "40") {
		return
	}

	b.mu.Lock()
	reject := b.reject
	b.mu.Unlock()

	if reject || !b.loggedIn(r) {
		_ = s.send(`44{"message":"Authentication required"}`)
		return
	}

	b.mu.Lock()
	status := b.status
	logs := append([]client.LogEntry(nil), b.logs...)
	early := b.early
	b.mu.Unlock()

	snapshot := func() {
		_ = s.send(eventFrame(b.t, "status_update", status))
		for _, entry := range logs {
			_ = s.send(eventFrame(b.t, "log", entry))
		}
	}

	if early {
		snapshot()
	}

	if err := s.send(`40{"sid":"fake-socket"}`); err != nil {
		return
	}

	b.mu.Lock()
	b.sockets[s] = struct{}{}
	b.connects++
	b.mu.Unlock()

	defer func() {
		b.mu.Lock()
		delete(b.sockets, s)
		b.mu.Unlock()
	}()

	if !early {
		snapshot()
	}

	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}

		b.handleSocketMessage(s, string(msg))
	}
}

func (b *Backend) handleSocketMessage(s *socketConn, msg string) {
	if !strings.HasPrefix(msg, "42") {
		return
	}

	var parts []json.RawMessage
	if err := json.Unmarshal([]byte(msg[2:]), &parts); err != nil || len(parts) == 0 {
		return
	}

	var name string
	if err := json.Unmarshal(parts[0], &name); err != nil {
		return
	}

	b.mu.Lock()
	b.commands = append(b.commands, name)
	b.mu.Unlock()

	switch name {
	case "start_bot":
		b.mu.Lock()
		already := b.status.Running
		missing := b.keys.Missing()
		if !already && len(missing) == 0 {
			b.status.Running = true
		}
		status := b.status
		b.mu.Unlock()

		if already {
			_ = s.send(eventFrame(b.t, "error", map[string]string{"message": "Bot is already running"}))
			return
		}

		if len(missing) > 0 {
			_ = s.send(eventFrame(b.t, "error", map[string]string{
				"message": "Cannot start bot. Missing API keys: " + strings.Join(missing, ", ") + ". Please configure them in Settings.",
			}))
			return
		}

		_ = s.send(eventFrame(b.t, "status_update", status))
	case "stop_bot":
		b.mu.Lock()
		wasRunning := b.status.Running
		b.status.Running = false
		status := b.status
		b.mu.Unlock()

		if !wasRunning {
			_ = s.send(eventFrame(b.t, "error", map[string]string{"message": "Bot is not running"}))
			return
		}

		_ = s.send(eventFrame(b.t, "status_update", status))
	case "run_once":
		_ = s.send(eventFrame(b.t, "log", client.LogEntry{
			Level:     client.LevelInfo,
			Timestamp: time.Now().Format("2006-01-02 15:04:05"),
			Message:   "Running single tweet generation...",
		}))
	}
}

func eventFrame(t testing.TB, event string, data any) string {
	body, err := json.Marshal([]any{event, data})
	if err != nil {
		t.Errorf("marshal %s event: %v", event, err)
		return ""
	}

	return fmt.Sprintf("42%s", body)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func setIf(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}
