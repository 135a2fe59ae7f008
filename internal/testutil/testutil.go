package testutil

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/coder/websocket"
	"golang.org/x/time/rate"

	"github.com/cfilipov/copilot-lexical/internal/config"
	"github.com/cfilipov/copilot-lexical/internal/db"
	"github.com/cfilipov/copilot-lexical/internal/handlers"
	"github.com/cfilipov/copilot-lexical/internal/models"
	"github.com/cfilipov/copilot-lexical/internal/static"
	"github.com/cfilipov/copilot-lexical/internal/tools"
	"github.com/cfilipov/copilot-lexical/internal/ws"
)

var msgIDCounter int64

// IndexHTML is the entry document written into every test build root.
const IndexHTML = `<!doctype html><html><body><div id="root"></div></body></html>`

// TestEnv holds a fully wired test application with a temp DB and build root.
type TestEnv struct {
	App      *handlers.App
	Config   *config.Config
	Server   *httptest.Server
	WSServer *ws.Server
	DataDir  string
	DistDir  string
}

// Option adjusts the configuration before the environment is wired.
type Option func(*config.Config)

// WithCopilotKey configures a CopilotKit public key, enabling the sidebar.
func WithCopilotKey(key string) Option {
	return func(c *config.Config) { c.CopilotKey = key }
}

// WithToolRate sets the per-client tool rate limit.
func WithToolRate(perSecond float64, burst int) Option {
	return func(c *config.Config) {
		c.ToolRate = perSecond
		c.ToolBurst = burst
	}
}

// Setup creates a test environment with a real HTTP server, BoltDB and a
// build root holding an entry document and one asset.
func Setup(t testing.TB, opts ...Option) *TestEnv {
	t.Helper()

	tmpDir := t.TempDir()
	cfg := config.Default()
	cfg.Watch = false
	for _, opt := range opts {
		opt(cfg)
	}
	if err := cfg.Finalize([]string{"0", tmpDir}, func(string) string { return "" }); err != nil {
		t.Fatal(err)
	}
	// Finalize reads the key from the environment only; reapply options.
	for _, opt := range opts {
		opt(cfg)
	}

	if err := os.MkdirAll(filepath.Join(cfg.DistDir, "assets"), 0755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(cfg.DistDir, cfg.Entry), IndexHTML)
	writeFile(t, filepath.Join(cfg.DistDir, "assets", "app.js"), "console.log('app')")

	database, err := db.Open(cfg.DataDir)
	if err != nil {
		t.Fatal(err)
	}

	wss := ws.NewServer(rate.Limit(cfg.ToolRate), cfg.ToolBurst)

	app := &handlers.App{
		Settings:    models.NewSettingStore(database),
		Documents:   models.NewDocumentStore(database),
		Tools:       tools.NewRegistry(),
		WS:          wss,
		Config:      cfg,
		Version:     "test",
		ToolLimiter: rate.NewLimiter(rate.Limit(cfg.ToolRate), cfg.ToolBurst),
	}

	mux := http.NewServeMux()
	app.RegisterAll(mux)
	mux.Handle("/", static.NewHandler(os.DirFS(cfg.DistDir), cfg.Entry, cfg.BasePath))

	server := httptest.NewServer(mux)

	t.Cleanup(func() {
		wss.CloseAll()
		server.Close()
		database.Close()
	})

	return &TestEnv{
		App:      app,
		Config:   cfg,
		Server:   server,
		WSServer: wss,
		DataDir:  cfg.DataDir,
		DistDir:  cfg.DistDir,
	}
}

func writeFile(t testing.TB, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal("write file:", err)
	}
}

// DialWS opens a WebSocket connection to the test server.
// The info push sent on connect is not drained here;
// SendAndReceive skips non-ack messages automatically.
func (e *TestEnv) DialWS(t testing.TB) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + e.Server.URL[4:] + "/ws" // http -> ws
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatal("dial ws:", err)
	}
	conn.SetReadLimit(4 << 20)

	t.Cleanup(func() {
		conn.Close(websocket.StatusNormalClosure, "")
	})

	return conn
}

// SendAndReceive sends a WS event with an ack ID and returns the parsed ack response.
func (e *TestEnv) SendAndReceive(t testing.TB, conn *websocket.Conn, event string, args ...any) map[string]any {
	t.Helper()

	id := atomic.AddInt64(&msgIDCounter, 1)

	argsJSON, err := json.Marshal(args)
	if err != nil {
		t.Fatal("marshal args:", err)
	}

	msg := map[string]any{
		"id":    id,
		"event": event,
		"args":  json.RawMessage(argsJSON),
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	data, err := json.Marshal(msg)
	if err != nil {
		t.Fatal("marshal msg:", err)
	}

	if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
		t.Fatal("write:", err)
	}

	// Read messages until we find our ack
	for {
		_, respData, err := conn.Read(ctx)
		if err != nil {
			t.Fatal("read:", err)
		}

		var raw map[string]json.RawMessage
		if err := json.Unmarshal(respData, &raw); err != nil {
			t.Fatal("unmarshal response:", err)
		}

		if idRaw, ok := raw["id"]; ok {
			var ackID int64
			if err := json.Unmarshal(idRaw, &ackID); err == nil && ackID == id {
				var ack struct {
					Data map[string]any `json:"data"`
				}
				if err := json.Unmarshal(respData, &ack); err != nil {
					t.Fatal("unmarshal ack:", err)
				}
				return ack.Data
			}
		}
		// Not our ack, it's a push message; skip it
	}
}

// WaitForEvent reads until a push with the given event name arrives and
// returns its data. Other messages are skipped.
func (e *TestEnv) WaitForEvent(t testing.TB, conn *websocket.Conn, event string) map[string]any {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for {
		_, data, err := conn.Read(ctx)
		if err != nil {
			t.Fatalf("waiting for %q: %v", event, err)
		}
		var push struct {
			Event string         `json:"event"`
			Data  map[string]any `json:"data"`
		}
		if err := json.Unmarshal(data, &push); err != nil {
			t.Fatal("unmarshal push:", err)
		}
		if push.Event == event {
			return push.Data
		}
	}
}

// Do sends an HTTP request to the test server and returns the status and body.
func (e *TestEnv) Do(t testing.TB, method, path string, body []byte, header ...string) (*http.Response, []byte) {
	t.Helper()

	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequest(method, e.Server.URL+path, rd)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i+1 < len(header); i += 2 {
		req.Header.Set(header[i], header[i+1])
	}
	resp, err := e.Server.Client().Do(req)
	if err != nil {
		t.Fatal(method, path, err)
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal("read body:", err)
	}
	return resp, data
}
