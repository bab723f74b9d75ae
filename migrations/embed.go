// Package migrations embeds the SQL schema of the bundled services into the
// binary, so no SQL files need to exist on the target filesystem.
package migrations

import "embed"

// FS holds every *.sql file in this directory at its root. Pass it to
// database.DB.Migrate.
//
//go:embed *.sql
var FS embed.FS
