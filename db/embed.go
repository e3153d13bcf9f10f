// Package db provides the embedded database schema and seed catalog.
package db

import _ "embed"

// Schema contains the DDL statements for all application tables. Every
// statement is idempotent so it runs on each start.
//
//go:embed migrations/001_schema.sql
var Schema string

// SeedProducts is the sample catalog loaded by seed-db when no file is given.
//
//go:embed seed/products.json
var SeedProducts []byte
