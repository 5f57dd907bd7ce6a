package migrations

import (
	"embed"
)

// migrationsFS embeds the SQL migrations of every supported dialect.
// Each dialect has its own directory, named after dialect.Dialect.MigrationsDir.
// Structure:
//
//	.
//	|-- sqlite
//	|   |-- *.sql
//	|-- postgres
//	|   |-- *.sql
//
//go:embed sqlite/*.sql postgres/*.sql
var migrationsFS embed.FS

func GetFS() embed.FS {
	return migrationsFS
}
