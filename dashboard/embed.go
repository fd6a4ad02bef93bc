// Package dashboard provides the embedded web UI for BalanceBoard.
//
// The page renders one card per monitor with a usage bar when a total is
// known, loads the current snapshot from /api/status and then follows
// /api/sse for updates. It is served at "/" by the server package.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - dashboard page with inline CSS and JavaScript
//
// The {{.Title}} placeholder in index.html is replaced, HTML-escaped, when
// the page is served.
//
//go:embed assets/*
var Assets embed.FS
