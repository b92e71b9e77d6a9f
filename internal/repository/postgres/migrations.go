package postgres

import (
	"embed"
	"io/fs"
)

//go:embed migrations/*.up.sql
var embedded embed.FS

// Migrations returns the schema files for database.RunMigrations.
func Migrations() fs.FS {
	sub, err := fs.Sub(embedded, "migrations")
	if err != nil {
		panic(err)
	}
	return sub
}
