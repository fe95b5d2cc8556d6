// Package web renders the login and home pages and serves their scripts.
package web

import (
	"bytes"
	"embed"
	"io/fs"
	"net/http"

	g "maragu.dev/gomponents"
)

// AssetsPrefix is the URL prefix the embedded scripts are served under.
const AssetsPrefix = "/assets/"

//go:embed assets/*.js
var assets embed.FS

// Assets returns a handler serving the embedded scripts. Mount it at AssetsPrefix.
func Assets() http.Handler {
	sub, err := fs.Sub(assets, "assets")
	if err != nil {
		panic(err)
	}
	return http.StripPrefix(AssetsPrefix, http.FileServer(http.FS(sub)))
}

// Render writes node as an HTML response.
// The page is rendered to a buffer first so a failure never sends half a page.
func Render(w http.ResponseWriter, status int, node g.Node) error {
	var buf bytes.Buffer
	if err := node.Render(&buf); err != nil {
		return err
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, err := buf.WriteTo(w)
	return err
}
