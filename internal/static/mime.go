package static

import (
	"path"
	"strings"
)

const defaultContentType = "application/octet-stream"

// contentTypes is the fixed extension table for frontend build output; the
// host's mime.types files are never consulted.
var contentTypes = map[string]string{
	".html":  "text/html",
	".js":    "text/javascript",
	".css":   "text/css",
	".json":  "application/json",
	".png":   "image/png",
	".jpg":   "image/jpg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".eot":   "application/vnd.ms-fontobject",
	".wasm":  "application/wasm",
}

// ContentType returns the content type for a file name, by lower-cased
// extension.
func ContentType(name string) string {
	if ct, ok := contentTypes[strings.ToLower(path.Ext(name))]; ok {
		return ct
	}
	return defaultContentType
}
