// Package migrations embeds the schema applied by the seeder.
package migrations

import "embed"

//go:embed *.sql
var FS embed.FS
