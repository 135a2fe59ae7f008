package main

import "embed"

// staticFiles embeds the built frontend for single-binary deployment.
// When <root>/dist exists on disk it is served instead.
//
//go:embed all:dist
var staticFiles embed.FS
