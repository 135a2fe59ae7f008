package handlers

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
)

const maxBodySize = 4 << 20

// RegisterRoutes mounts the JSON API, the WebSocket endpoint and the health
// probe. The static frontend is mounted by the caller on "/".
func (app *App) RegisterRoutes(mux *http.ServeMux) {
	mux.Handle("/ws", app.WS)
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	mux.HandleFunc("GET /api/app", app.apiGetApp)
	mux.HandleFunc("GET /api/settings", app.apiGetSettings)
	mux.HandleFunc("PUT /api/settings/kernel", app.apiSetKernel)
	mux.HandleFunc("GET /api/documents", app.apiListDocuments)
	mux.HandleFunc("GET /api/documents/{id}", app.apiGetDocument)
	mux.HandleFunc("PUT /api/documents/{id}", app.apiPutDocument)
	mux.HandleFunc("DELETE /api/documents/{id}", app.apiDeleteDocument)
	mux.HandleFunc("GET /api/tools", app.apiListTools)
	mux.HandleFunc("POST /api/tools/{name}", app.apiExecuteTool)

	// Keep unknown API paths away from the SPA fallback.
	mux.HandleFunc("/api/", func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, fmt.Errorf("no route for %s %s", r.Method, r.URL.Path), "not_found")
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		slog.Error("api marshal", "err", err)
		http.Error(w, "internal error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(data)
}

func writeError(w http.ResponseWriter, status int, err error, code string) {
	writeJSON(w, status, struct {
		OK   bool   `json:"ok"`
		Msg  string `json:"msg"`
		Code string `json:"code"`
	}{Msg: err.Error(), Code: code})
}

// writeDomainError picks the status for a domain error.
func writeDomainError(w http.ResponseWriter, err error) {
	code := errorCode(err)
	status := http.StatusInternalServerError
	switch code {
	case "not_found", "unknown_tool":
		status = http.StatusNotFound
	case "conflict":
		status = http.StatusConflict
	case "invalid":
		status = http.StatusBadRequest
	case "rate_limited":
		status = http.StatusTooManyRequests
	default:
		slog.Error("api", "err", err)
	}
	writeError(w, status, err, code)
}

func readBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxBodySize))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errInvalidRequest, err)
	}
	return body, nil
}

func (app *App) apiGetApp(w http.ResponseWriter, r *http.Request) {
	var param *string
	if q := r.URL.Query(); q.Has("kernel") {
		v := q.Get("kernel")
		param = &v
	}
	writeJSON(w, http.StatusOK, app.appInfo(param))
}

func (app *App) apiGetSettings(w http.ResponseWriter, _ *http.Request) {
	settings, err := app.Settings.GetAll()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, settings)
}

func (app *App) apiSetKernel(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	var req struct {
		HasKernel *bool `json:"hasKernel"`
	}
	if err := json.Unmarshal(body, &req); err != nil || req.HasKernel == nil {
		writeDomainError(w, errMissingArg("hasKernel"))
		return
	}
	if err := app.setKernel(*req.HasKernel); err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, kernelChange{HasKernel: *req.HasKernel})
}

func (app *App) apiListDocuments(w http.ResponseWriter, _ *http.Request) {
	docs, err := app.Documents.List()
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, docs)
}

func (app *App) apiGetDocument(w http.ResponseWriter, r *http.Request) {
	doc, err := app.Documents.GetOrEmpty(r.PathValue("id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	if doc.Revision != "" {
		w.Header().Set("ETag", `"`+doc.Revision+`"`)
	}
	writeJSON(w, http.StatusOK, doc)
}

// apiPutDocument stores the request body as the document's editor state. An
// If-Match header makes the write conditional on the stored revision.
func (app *App) apiPutDocument(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	ifMatch := strings.Trim(strings.TrimPrefix(r.Header.Get("If-Match"), "W/"), `"`)

	doc, err := app.saveDocument(r.PathValue("id"), body, ifMatch, "")
	if err != nil {
		writeDomainError(w, err)
		return
	}
	w.Header().Set("ETag", `"`+doc.Revision+`"`)
	writeJSON(w, http.StatusOK, doc)
}

func (app *App) apiDeleteDocument(w http.ResponseWriter, r *http.Request) {
	if err := app.deleteDocument(r.PathValue("id"), ""); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (app *App) apiListTools(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, app.Tools.List())
}

// apiExecuteTool runs a tool with the JSON body as its arguments against the
// document named by ?document=, or the default document.
func (app *App) apiExecuteTool(w http.ResponseWriter, r *http.Request) {
	if app.ToolLimiter != nil && !app.ToolLimiter.Allow() {
		writeDomainError(w, errRateLimited)
		return
	}
	body, err := readBody(w, r)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	res, err := app.executeTool(r.URL.Query().Get("document"), r.PathValue("name"), body, "")
	if err != nil {
		slog.Warn("execute tool", "tool", r.PathValue("name"), "err", err)
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
