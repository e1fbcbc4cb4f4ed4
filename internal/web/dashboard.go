package web

import _ "embed"

// dashboardHTML is the single-page dashboard. All state comes from
// /api/status; the page itself is static.
//
//go:embed dashboard.html
var dashboardHTML []byte
