// Package migrations embeds the sqlite schema files applied to a fresh
// store database.
package migrations

import (
	"embed"
	"io/fs"
)

//go:embed schema/**/*.sql
var schemaFS embed.FS

// Schema returns the embedded schema filesystem, rooted so that each
// entry's path is relative to the collection name (e.g.
// "registrar/judgement_states.sql").
func Schema() fs.FS {
	sub, err := fs.Sub(schemaFS, "schema")
	if err != nil {
		panic(err) // should never happen since we control the embed path
	}
	return sub
}
