// Package dashboard provides the embedded web UI assets.
//
// This package uses Go's embed directive to include the dashboard page
// template at compile time. This enables single-binary deployment without
// external asset files.
package dashboard

import "embed"

// Assets is an embedded filesystem containing the dashboard web UI.
//
// The filesystem structure is:
//
//	assets/
//	  index.html    - html/template page with inline CSS and JavaScript
//
// The template is executed by the server package with the current view model.
//
//go:embed assets/*
var Assets embed.FS
