// Package static serves the compiled frontend. Requests for files that exist
// under the build root get the file; everything else gets the entry document
// so the single-page app can route on the client.
package static

import (
	"errors"
	"io/fs"
	"log/slog"
	"net/http"
	"path"
	"strings"
)

const serverErrorBody = "500 Internal Server Error"

// Handler serves files from a build root.
type Handler struct {
	fsys     fs.FS
	entry    string
	basePath string
}

// NewHandler returns a handler serving fsys. entry is the document served
// for unmatched paths (normally "index.html"). basePath, when non-empty, is a
// "/x/" prefix stripped from request paths before lookup.
func NewHandler(fsys fs.FS, entry, basePath string) *Handler {
	return &Handler{
		fsys:     fsys,
		entry:    strings.TrimPrefix(path.Clean("/"+entry), "/"),
		basePath: basePath,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	slog.Info("request", "method", r.Method, "path", r.URL.RequestURI())

	// Without a readable entry document the app cannot load at all.
	if err := h.checkEntry(); err != nil {
		slog.Error("entry document unreadable", "entry", h.entry, "err", err)
		serverError(w)
		return
	}

	name, ok := h.resolve(r.URL.Path)
	if ok {
		info, err := fs.Stat(h.fsys, name)
		switch {
		case err == nil && info.Mode().IsRegular():
			data, err := fs.ReadFile(h.fsys, name)
			if err != nil {
				slog.Error("read static file", "path", name, "err", err)
				serverError(w)
				return
			}
			write(w, ContentType(name), data)
			return
		case err != nil:
			// Missing files and paths running through a file (ENOTDIR) alike.
			slog.Debug("no static file", "path", name, "err", err)
		}
	}

	h.serveEntry(w)
}

// resolve maps a URL path to a name inside the build root. It reports false
// for paths that cannot name a file there.
func (h *Handler) resolve(urlPath string) (string, bool) {
	p := urlPath
	if h.basePath != "" {
		if p+"/" == h.basePath {
			p = "/"
		} else if strings.HasPrefix(p, h.basePath) {
			p = "/" + strings.TrimPrefix(p, h.basePath)
		}
	}
	if p == "/" || p == "" {
		return h.entry, true
	}
	if strings.HasSuffix(p, "/") {
		return "", false
	}
	name := strings.TrimPrefix(path.Clean("/"+p), "/")
	if name == "" || !fs.ValidPath(name) {
		return "", false
	}
	return name, true
}

func (h *Handler) checkEntry() error {
	f, err := h.fsys.Open(h.entry)
	if err != nil {
		return err
	}
	defer f.Close()
	info, err := f.Stat()
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() {
		return errors.New("not a regular file")
	}
	return nil
}

func (h *Handler) serveEntry(w http.ResponseWriter) {
	data, err := fs.ReadFile(h.fsys, h.entry)
	if err != nil {
		slog.Error("read entry document", "entry", h.entry, "err", err)
		serverError(w)
		return
	}
	write(w, "text/html", data)
}

func write(w http.ResponseWriter, contentType string, data []byte) {
	w.Header().Set("Content-Type", contentType)
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func serverError(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusInternalServerError)
	w.Write([]byte(serverErrorBody))
}
