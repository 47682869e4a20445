// Package web embeds the frontend page served at the HTTP root.
package web

import _ "embed"

//go:embed index.html
var index []byte

// Index returns the embedded player page.
func Index() []byte { return index }
