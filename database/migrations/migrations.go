// Package migrations registers the schema changes with pkg/migration. It is
// blank-imported by cmd/onyxia.
package migrations
