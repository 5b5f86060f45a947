// Package db embeds the SQL migrations so the binary can migrate without a
// migrations directory on disk.
package db

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.sql
var files embed.FS

// Migrations returns the migrations directory as an fs.FS rooted at the SQL files.
func Migrations() fs.FS {
	sub, err := fs.Sub(files, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
