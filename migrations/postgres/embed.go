// Package migrations embeds SQL migration files.
package migrations

import "embed"

// PostgresFS contiene el schema del Directory Store PostgreSQL.
//
//go:embed *.sql
var PostgresFS embed.FS

// PostgresDir es el directorio dentro de PostgresFS donde viven las migraciones.
const PostgresDir = "."
