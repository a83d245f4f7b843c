package web

import "embed"

// FS holds the scoreboard and debug pages.
//
//go:embed *.html *.css *.js
var FS embed.FS
