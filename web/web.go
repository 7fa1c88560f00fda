// Package web embeds the map page and its static assets.
package web

import (
	"embed"
	"html/template"
	"io/fs"
)

//go:embed templates static
var files embed.FS

// Index is the map page template. It is executed with a PageData.
var Index = template.Must(template.ParseFS(files, "templates/index.html"))

// PageData feeds the index template.
type PageData struct {
	Title       string
	AuthEnabled bool
}

// Static returns the static asset tree, rooted at the static directory.
func Static() fs.FS {
	sub, err := fs.Sub(files, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
