// Package pgmigrations embeds the SQL migrations for the postgres-backed
// remote record store.
package pgmigrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
