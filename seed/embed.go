// Package seed embeds demo data for local development.
package seed

import "embed"

//go:embed *.sql
var FS embed.FS
