package handlers

import (
	"encoding/json"
	"fmt"
	"testing"

	"github.com/cfilipov/copilot-lexical/internal/models"
	"github.com/cfilipov/copilot-lexical/internal/tools"
	"github.com/cfilipov/copilot-lexical/internal/ws"
)

func TestParseArgs(t *testing.T) {
	t.Parallel()

	t.Run("nil message", func(t *testing.T) {
		t.Parallel()
		if args := parseArgs(nil); args != nil {
			t.Error("expected nil for nil message")
		}
	})

	t.Run("null args", func(t *testing.T) {
		t.Parallel()
		msg := &ws.ClientMessage{Event: "test", Args: json.RawMessage(`null`)}
		if args := parseArgs(msg); len(args) != 0 {
			t.Errorf("expected no args, got %d", len(args))
		}
	})

	t.Run("valid JSON array", func(t *testing.T) {
		t.Parallel()
		msg := &ws.ClientMessage{
			Event: "saveDocument",
			Args:  json.RawMessage(`["notes", {"root": {}}, "rev"]`),
		}
		args := parseArgs(msg)
		if len(args) != 3 {
			t.Fatalf("expected 3 args, got %d", len(args))
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		t.Parallel()
		msg := &ws.ClientMessage{Event: "test", Args: json.RawMessage(`not json`)}
		if args := parseArgs(msg); args != nil {
			t.Error("expected nil for invalid JSON")
		}
	})
}

func TestArgString(t *testing.T) {
	t.Parallel()

	args := []json.RawMessage{
		json.RawMessage(`"notes"`),
		json.RawMessage(`42`),
	}

	if got := argString(args, 0); got != "notes" {
		t.Errorf("argString(0) = %q, want notes", got)
	}
	if got := argString(args, 1); got != "" {
		t.Errorf("argString(1) for number = %q, want empty", got)
	}
	if got := argString(args, 10); got != "" {
		t.Errorf("argString(10) = %q, want empty", got)
	}
	if got := argString(nil, 0); got != "" {
		t.Errorf("argString(nil, 0) = %q, want empty", got)
	}
}

func TestArgBool(t *testing.T) {
	t.Parallel()

	args := []json.RawMessage{
		json.RawMessage(`true`),
		json.RawMessage(`false`),
		json.RawMessage(`"true"`),
		json.RawMessage(`null`),
		json.RawMessage(`1`),
	}

	if v, ok := argBool(args, 0); !v || !ok {
		t.Errorf("argBool(0) = %v, %v; want true, true", v, ok)
	}
	if v, ok := argBool(args, 1); v || !ok {
		t.Errorf("argBool(1) = %v, %v; want false, true", v, ok)
	}
	for _, i := range []int{2, 3, 4, 10} {
		if v, ok := argBool(args, i); v || ok {
			t.Errorf("argBool(%d) = %v, %v; want false, false", i, v, ok)
		}
	}
}

func TestArgRaw(t *testing.T) {
	t.Parallel()

	args := []json.RawMessage{json.RawMessage(`{"text":"hi"}`)}
	if got := string(argRaw(args, 0)); got != `{"text":"hi"}` {
		t.Errorf("argRaw(0) = %s", got)
	}
	if got := argRaw(args, 1); got != nil {
		t.Errorf("argRaw(1) = %s, want nil", got)
	}
}

func TestErrorCode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		err  error
		want string
	}{
		{fmt.Errorf("delete document %q: %w", "x", models.ErrDocumentNotFound), "not_found"},
		{fmt.Errorf("put document: %w", models.ErrRevisionMismatch), "conflict"},
		{models.ErrInvalidID, "invalid"},
		{fmt.Errorf("%w: %w", errInvalidState, fmt.Errorf("bad")), "invalid"},
		{errMissingArg("hasKernel"), "invalid"},
		{fmt.Errorf("%w: text is required", tools.ErrInvalidArgs), "invalid"},
		{fmt.Errorf("%w: %q", tools.ErrUnknownTool, "x"), "unknown_tool"},
		{errRateLimited, "rate_limited"},
		{fmt.Errorf("disk full"), "internal"},
	}
	for _, tt := range tests {
		if got := errorCode(tt.err); got != tt.want {
			t.Errorf("errorCode(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}
