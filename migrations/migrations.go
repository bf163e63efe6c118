// Package migrations holds the ledger schema. Deployments apply the .sql files
// with their migration tool of choice; tests apply Schema directly.
package migrations

import _ "embed"

// Schema is the forward migration for the coupons and redemptions tables.
//
//go:embed 000001_create_coupons.up.sql
var Schema string
