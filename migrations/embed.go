// Package migrations embeds the catalog's SQLite schema into the binary.
package migrations

import (
	"embed"

	"github.com/d-khalang/SMM/internal/infrastructure/database"
)

//go:embed *.sql
var migrationsFS embed.FS

func init() {
	database.MigrationsFS = migrationsFS
	database.MigrationsDir = "."
}
