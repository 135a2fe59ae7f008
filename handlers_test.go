package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cfilipov/copilot-lexical/internal/testutil"
)

const helloState = `{"root":{"type":"root","version":1,"children":[` +
	`{"type":"paragraph","version":1,"children":[{"type":"text","version":1,"text":"Hello"}]}]}}`

func decode(t *testing.T, body []byte) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out), string(body))
	return out
}

// blocks returns the top-level children of a serialized document.
func blocks(t *testing.T, doc map[string]any) []any {
	t.Helper()
	state, _ := doc["state"].(map[string]any)
	root, _ := state["root"].(map[string]any)
	children, ok := root["children"].([]any)
	require.True(t, ok, "document has no root children: %v", doc)
	return children
}

func requireEmptyParagraph(t *testing.T, doc map[string]any) {
	t.Helper()
	children := blocks(t, doc)
	require.Len(t, children, 1)
	p := children[0].(map[string]any)
	assert.Equal(t, "paragraph", p["type"])
	assert.Empty(t, p["children"])
}

func TestHealthz(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)

	resp, body := env.Do(t, http.MethodGet, "/healthz", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", string(body))
	assert.NoError(t, healthcheck(env.Server.URL+"/healthz"))
	assert.Error(t, healthcheck(env.Server.URL+"/api/missing"))
}

func TestFrontendRoutes(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)

	for _, p := range []string{"/", "/copilot-lexical/", "/copilot-lexical/some/route", "/missing.js"} {
		resp, body := env.Do(t, http.MethodGet, p, nil)
		assert.Equal(t, http.StatusOK, resp.StatusCode, p)
		assert.Equal(t, "text/html", resp.Header.Get("Content-Type"), p)
		assert.Equal(t, testutil.IndexHTML, string(body), p)
	}

	resp, body := env.Do(t, http.MethodGet, "/copilot-lexical/assets/app.js", nil)
	assert.Equal(t, "text/javascript", resp.Header.Get("Content-Type"))
	assert.Equal(t, "console.log('app')", string(body))

	// Unknown API routes are not swallowed by the SPA fallback.
	resp, body = env.Do(t, http.MethodGet, "/api/nope", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.Equal(t, "not_found", decode(t, body)["code"])
}

func TestFrontendWithoutEntryIsServerError(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)
	require.NoError(t, os.Remove(filepath.Join(env.DistDir, "index.html")))

	for _, p := range []string{"/", "/assets/app.js"} {
		resp, body := env.Do(t, http.MethodGet, p, nil)
		assert.Equal(t, http.StatusInternalServerError, resp.StatusCode, p)
		assert.Equal(t, "500 Internal Server Error", string(body), p)
	}
}

func TestAppWithoutCopilotKey(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)

	resp, body := env.Do(t, http.MethodGet, "/api/app", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	app := decode(t, body)

	assert.Equal(t, "Jupyter UI ❤️ Lexical + CopilotKit", app["title"])
	assert.Equal(t, false, app["hasKernel"])
	assert.Equal(t, "copilot-lexical-document", app["documentId"])
	assert.Contains(t, app["warning"], "VITE_COPILOT_KIT_API_KEY")
	assert.Nil(t, app["tools"])

	copilot := app["copilot"].(map[string]any)
	assert.Equal(t, false, copilot["enabled"])
	assert.Nil(t, copilot["publicApiKey"])

	editor := app["editor"].(map[string]any)
	assert.Equal(t, "CopilotLexicalEditor", editor["namespace"])
	assert.Contains(t, editor["nodes"], "jupyter-output")
}

func TestAppWithCopilotKey(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t, testutil.WithCopilotKey("ck_pub_test"))

	_, body := env.Do(t, http.MethodGet, "/api/app", nil)
	app := decode(t, body)

	assert.Nil(t, app["warning"])
	copilot := app["copilot"].(map[string]any)
	assert.Equal(t, true, copilot["enabled"])
	assert.Equal(t, "ck_pub_test", copilot["publicApiKey"])
	assert.Equal(t, "Lexical AI Copilot", copilot["title"])
	assert.Equal(t, true, copilot["defaultOpen"])
	assert.Equal(t, false, copilot["clickOutsideToClose"])
	assert.True(t, strings.HasPrefix(copilot["initial"].(string), "Hi! I can help you edit the Lexical document."))
	assert.Len(t, app["tools"], 13)
}

func TestKernelResolution(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)

	hasKernel := func(query string) any {
		_, body := env.Do(t, http.MethodGet, "/api/app"+query, nil)
		return decode(t, body)["hasKernel"]
	}

	assert.Equal(t, false, hasKernel(""))
	assert.Equal(t, true, hasKernel("?kernel=true"))
	assert.Equal(t, false, hasKernel("?kernel=yes"))

	resp, body := env.Do(t, http.MethodPut, "/api/settings/kernel", []byte(`{"hasKernel":true}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	assert.Equal(t, true, hasKernel(""))
	// The query parameter wins over the stored toggle.
	assert.Equal(t, false, hasKernel("?kernel=false"))
	assert.Equal(t, false, hasKernel("?kernel="))

	resp, _ = env.Do(t, http.MethodPut, "/api/settings/kernel", []byte(`{}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestKernelToggleOverWebSocket(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)

	watcher := env.DialWS(t)
	info := env.WaitForEvent(t, watcher, "info")
	assert.Equal(t, "test", info["version"])

	conn := env.DialWS(t)
	resp := env.SendAndReceive(t, conn, "setKernel", true)
	require.Equal(t, true, resp["ok"], resp)

	changed := env.WaitForEvent(t, watcher, "kernelChanged")
	assert.Equal(t, true, changed["hasKernel"])

	resp = env.SendAndReceive(t, conn, "getApp")
	assert.Equal(t, true, resp["app"].(map[string]any)["hasKernel"])
	resp = env.SendAndReceive(t, conn, "getApp", "false")
	assert.Equal(t, false, resp["app"].(map[string]any)["hasKernel"])

	resp = env.SendAndReceive(t, conn, "setKernel")
	assert.Equal(t, false, resp["ok"])
	assert.Equal(t, "invalid", resp["code"])

	// Non-boolean values are rejected the same way the HTTP route rejects
	// them, and the stored toggle is left alone.
	for _, bad := range []any{"yes", "false", nil, 0} {
		resp = env.SendAndReceive(t, conn, "setKernel", bad)
		assert.Equal(t, "invalid", resp["code"], bad)
	}
	resp = env.SendAndReceive(t, conn, "getApp")
	assert.Equal(t, true, resp["app"].(map[string]any)["hasKernel"])

	_, body := env.Do(t, http.MethodGet, "/api/settings", nil)
	assert.JSONEq(t, `{"hasKernel":"true"}`, string(body))
}

func TestDocumentLifecycle(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)

	// A document that was never saved reads as a single empty paragraph.
	resp, body := env.Do(t, http.MethodGet, "/api/documents/notes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	doc := decode(t, body)
	assert.Equal(t, "", doc["revision"])
	requireEmptyParagraph(t, doc)

	resp, body = env.Do(t, http.MethodPut, "/api/documents/notes", []byte(helloState))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	rev := decode(t, body)["revision"].(string)
	assert.NotEmpty(t, rev)
	assert.Equal(t, `"`+rev+`"`, resp.Header.Get("ETag"))

	resp, body = env.Do(t, http.MethodGet, "/api/documents/notes", nil)
	assert.Equal(t, rev, decode(t, body)["revision"])
	assert.Equal(t, `"`+rev+`"`, resp.Header.Get("ETag"))

	// Conditional writes.
	resp, _ = env.Do(t, http.MethodPut, "/api/documents/notes", []byte(helloState), "If-Match", `"stale"`)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	resp, _ = env.Do(t, http.MethodPut, "/api/documents/notes", []byte(helloState), "If-Match", `"`+rev+`"`)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Invalid states and ids are rejected.
	for _, bad := range []string{`{"root":`, `{"nope":1}`, `{"root":{"type":"root","children":[{"type":"widget"}]}}`} {
		resp, body = env.Do(t, http.MethodPut, "/api/documents/notes", []byte(bad))
		assert.Equal(t, http.StatusBadRequest, resp.StatusCode, bad)
		assert.Equal(t, "invalid", decode(t, body)["code"], bad)
	}
	resp, _ = env.Do(t, http.MethodGet, "/api/documents/bad%21id", nil)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	_, body = env.Do(t, http.MethodGet, "/api/documents", nil)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(body, &list))
	require.Len(t, list, 1)
	assert.Equal(t, "notes", list[0]["id"])

	resp, _ = env.Do(t, http.MethodDelete, "/api/documents/notes", nil)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.Do(t, http.MethodDelete, "/api/documents/notes", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	_, body = env.Do(t, http.MethodGet, "/api/documents", nil)
	assert.JSONEq(t, `[]`, string(body))
}

func TestMalformedStoredDocumentLoadsEmpty(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)

	for id, content := range map[string]string{
		"truncated": `{"root":{"type":"root"`,
		"wrongroot": `{"root":{"type":"paragraph","children":[]}}`,
		"empty":     ``,
		"array":     `[1,2,3]`,
	} {
		require.NoError(t, env.App.Documents.PutRaw(id, []byte(content)))
		resp, body := env.Do(t, http.MethodGet, "/api/documents/"+id, nil)
		require.Equal(t, http.StatusOK, resp.StatusCode, id)
		requireEmptyParagraph(t, decode(t, body))
	}
}

func TestSaveDocumentBroadcasts(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)

	watcher := env.DialWS(t)
	env.WaitForEvent(t, watcher, "info")

	editor := env.DialWS(t)
	var state map[string]any
	require.NoError(t, json.Unmarshal([]byte(helloState), &state))
	resp := env.SendAndReceive(t, editor, "saveDocument", "", state)
	require.Equal(t, true, resp["ok"], resp)
	assert.Equal(t, "copilot-lexical-document", resp["id"])

	changed := env.WaitForEvent(t, watcher, "documentChanged")
	assert.Equal(t, "copilot-lexical-document", changed["id"])
	assert.Equal(t, resp["revision"], changed["revision"])
	assert.NotEmpty(t, changed["origin"])

	// The state may also arrive as the editor's serialized string.
	resp = env.SendAndReceive(t, editor, "saveDocument", "other", helloState, "")
	require.Equal(t, true, resp["ok"], resp)

	got := env.SendAndReceive(t, editor, "getDocument", "other")
	require.Equal(t, true, got["ok"])
	doc := got["document"].(map[string]any)
	assert.Len(t, blocks(t, doc), 1)

	resp = env.SendAndReceive(t, editor, "saveDocument", "other", "{not json")
	assert.Equal(t, false, resp["ok"])
	assert.Equal(t, "invalid", resp["code"])

	resp = env.SendAndReceive(t, editor, "saveDocument", "other", helloState, "stale")
	assert.Equal(t, "conflict", resp["code"])

	resp = env.SendAndReceive(t, editor, "deleteDocument", "other")
	assert.Equal(t, map[string]any{"ok": true}, resp)
	resp = env.SendAndReceive(t, editor, "deleteDocument", "other")
	assert.Equal(t, "not_found", resp["code"])
}

func TestToolsOverHTTP(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)

	_, body := env.Do(t, http.MethodGet, "/api/tools", nil)
	var list []map[string]any
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Len(t, list, 13)

	resp, body := env.Do(t, http.MethodPost, "/api/tools/insertHeading?document=notes", []byte(`{"text":"Plan","level":2}`))
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	res := decode(t, body)
	assert.Equal(t, true, res["changed"])
	assert.Equal(t, "\n\nPlan", res["text"])

	resp, body = env.Do(t, http.MethodPost, "/api/tools/readDocument?document=notes", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, false, decode(t, body)["changed"])

	resp, _ = env.Do(t, http.MethodPost, "/api/tools/launchMissiles", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp, body = env.Do(t, http.MethodPost, "/api/tools/insertHeading", []byte(`{"level":2}`))
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "invalid", decode(t, body)["code"])
}

func TestToolsOverWebSocketAreRateLimited(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t, testutil.WithToolRate(0.001, 2))

	watcher := env.DialWS(t)
	env.WaitForEvent(t, watcher, "info")

	conn := env.DialWS(t)
	tools := env.SendAndReceive(t, conn, "listTools")
	assert.Len(t, tools["tools"], 13)

	args := map[string]any{"items": []string{"cat", "dog"}}
	for range 2 {
		resp := env.SendAndReceive(t, conn, "executeTool", "insertList", args)
		require.Equal(t, true, resp["ok"], resp)
	}
	changed := env.WaitForEvent(t, watcher, "documentChanged")
	assert.Equal(t, "copilot-lexical-document", changed["id"])

	resp := env.SendAndReceive(t, conn, "executeTool", "insertList", args)
	assert.Equal(t, false, resp["ok"])
	assert.Equal(t, "rate_limited", resp["code"])

	// A fresh connection has its own budget.
	other := env.DialWS(t)
	resp = env.SendAndReceive(t, other, "executeTool", "readDocument", nil, "copilot-lexical-document")
	require.Equal(t, true, resp["ok"], resp)
	result := resp["result"].(map[string]any)
	assert.Equal(t, "\n\ncat\n\ndog\n\ncat\n\ndog", result["text"])
}

func TestToolsOverHTTPAreRateLimited(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t, testutil.WithToolRate(0.001, 1))

	resp, _ := env.Do(t, http.MethodPost, "/api/tools/readDocument", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	resp, body := env.Do(t, http.MethodPost, "/api/tools/readDocument", nil)
	assert.Equal(t, http.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "rate_limited", decode(t, body)["code"])
}

func TestUnknownEvent(t *testing.T) {
	t.Parallel()
	env := testutil.Setup(t)

	conn := env.DialWS(t)
	resp := env.SendAndReceive(t, conn, "formatDisk")
	assert.Equal(t, false, resp["ok"])
	assert.Equal(t, "unknown_event", resp["code"])
}

func TestHealthcheckFailsOnBadStatus(t *testing.T) {
	t.Parallel()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	assert.EqualError(t, healthcheck(srv.URL), "healthz returned 503")
}
