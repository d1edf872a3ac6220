package migrations

import "github.com/uptrace/bun/migrate"

// Migrations collects the schema changes; each file registers itself by name.
var Migrations = migrate.NewMigrations()
