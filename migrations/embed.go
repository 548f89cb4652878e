// Package migrations ships the schema files inside the binary, so a
// field controller upgrade is one executable swap with no SQL files to
// stage on the box.
//
// Files follow YYYYMMDD_HHMMSS_description.sql and are forward-only;
// see the database package for how they are applied.
package migrations

import (
	"embed"

	"github.com/calder-systems/terminal-core/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "." // Files sit at the root of this FS
}
