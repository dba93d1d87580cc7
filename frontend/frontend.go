// Package frontend embeds the storefront page and its static assets.
package frontend

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page renders the storefront. Execute "index.html".
var Page = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// Static returns the assets served under /static/.
func Static() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
