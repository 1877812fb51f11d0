// Package client embeds the browser runtime the dev server ships: the
// patch applier, the event capture layer and the jsxedit command
// namespace the editor sessions drive.
package client

import (
	"embed"
	"io/fs"
	"net/http"
)

//go:embed src/*.js
var assets embed.FS

// Assets returns the embedded filesystem containing the runtime files.
func Assets() fs.FS {
	fsys, err := fs.Sub(assets, "src")
	if err != nil {
		panic(err)
	}
	return fsys
}

// Handler serves the embedded runtime. The dev server mounts it under
// /client/.
func Handler() http.Handler {
	return http.FileServer(http.FS(Assets()))
}
