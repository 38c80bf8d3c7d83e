// Package db provides the embedded catalog database schema.
package db

import _ "embed"

// Schema contains the DDL statements for all catalog tables.
//
//go:embed migrations/001_schema.sql
var Schema string
