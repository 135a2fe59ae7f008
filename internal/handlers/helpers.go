package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/cfilipov/copilot-lexical/internal/config"
	"github.com/cfilipov/copilot-lexical/internal/models"
	"github.com/cfilipov/copilot-lexical/internal/tools"
	"github.com/cfilipov/copilot-lexical/internal/ws"
)

// App holds shared dependencies for all handlers.
type App struct {
	Settings  *models.SettingStore
	Documents *models.DocumentStore
	Tools     *tools.Registry
	WS        *ws.Server
	Config    *config.Config
	Version   string

	// ToolLimiter throttles tool runs over HTTP. Nil means unlimited.
	// WebSocket clients are limited per connection instead.
	ToolLimiter *rate.Limiter
}

// RegisterAll wires every WebSocket event and HTTP route.
func (app *App) RegisterAll(mux *http.ServeMux) {
	RegisterAppHandlers(app)
	RegisterDocumentHandlers(app)
	RegisterToolHandlers(app)
	app.RegisterRoutes(mux)
}

var (
	errInvalidState   = errors.New("invalid editor state")
	errInvalidRequest = errors.New("invalid request")
	errRateLimited    = errors.New("too many tool calls, slow down")
)

func errMissingArg(name string) error {
	return fmt.Errorf("%w: %s is required", errInvalidRequest, name)
}

// sendError acks msg with an error payload, if the client asked for an ack.
func sendError(c *ws.Conn, msg *ws.ClientMessage, err error) {
	if msg.ID == nil {
		return
	}
	ws.SendAck(c, *msg.ID, ws.ErrorResponse{Msg: err.Error(), Code: errorCode(err)})
}

// errorCode maps domain errors to stable codes shared by HTTP and WebSocket
// error payloads.
func errorCode(err error) string {
	switch {
	case errors.Is(err, models.ErrDocumentNotFound):
		return "not_found"
	case errors.Is(err, models.ErrRevisionMismatch):
		return "conflict"
	case errors.Is(err, models.ErrInvalidID), errors.Is(err, errInvalidState),
		errors.Is(err, errInvalidRequest), errors.Is(err, tools.ErrInvalidArgs):
		return "invalid"
	case errors.Is(err, tools.ErrUnknownTool):
		return "unknown_tool"
	case errors.Is(err, errRateLimited):
		return "rate_limited"
	default:
		return "internal"
	}
}

// parseArgs unmarshals the Args JSON array into a slice of json.RawMessage.
func parseArgs(msg *ws.ClientMessage) []json.RawMessage {
	if msg == nil || len(msg.Args) == 0 {
		return nil
	}
	var args []json.RawMessage
	if err := json.Unmarshal(msg.Args, &args); err != nil {
		slog.Warn("parse args", "err", err)
		return nil
	}
	return args
}

// argString extracts a string from args at the given index.
func argString(args []json.RawMessage, index int) string {
	if index >= len(args) {
		return ""
	}
	var s string
	if err := json.Unmarshal(args[index], &s); err != nil {
		return ""
	}
	return s
}

// argRaw returns the raw JSON at the given index, or nil.
func argRaw(args []json.RawMessage, index int) json.RawMessage {
	if index >= len(args) {
		return nil
	}
	return args[index]
}

// argBool extracts a bool from args at the given index. ok is false when
// the argument is missing or not a JSON boolean.
func argBool(args []json.RawMessage, index int) (value, ok bool) {
	if index >= len(args) {
		return false, false
	}
	var b *bool
	if err := json.Unmarshal(args[index], &b); err != nil || b == nil {
		return false, false
	}
	return *b, true
}
