// Package migrations holds the versioned MongoDB schema changes of the
// billing ledger. Each file registers its migration from init, and the db
// package applies them in version order when it connects.
package migrations

import (
	"cmp"
	"context"
	"fmt"
	"maps"
	"slices"

	"go.mongodb.org/mongo-driver/mongo"
)

// MigrationFunc changes the ledger schema of the given database, or reverts
// that change when used as the Down step.
type MigrationFunc func(ctx context.Context, database *mongo.Database) error

// Migration is one schema change of the ledger collections. Version orders
// the changes and is the key stored in the migrations collection once the
// change is applied.
type Migration struct {
	Version int
	Name    string
	Up      MigrationFunc
	Down    MigrationFunc
}

var ledgerMigrations = make(map[int]Migration)

// AddMigration registers a ledger schema change. It is meant to be called from
// init, so a version below 1, a missing Up step or a version registered twice
// panics at startup instead of leaving the ledger half migrated.
func AddMigration(version int, name string, up, down MigrationFunc) {
	if version < 1 {
		panic(fmt.Sprintf("migrations: invalid version %d for %s", version, name))
	}
	if up == nil {
		panic(fmt.Sprintf("migrations: %s (version %d) has no up step", name, version))
	}
	if prev, ok := ledgerMigrations[version]; ok {
		panic(fmt.Sprintf("migrations: version %d registered twice (%s, %s)", version, prev.Name, name))
	}
	ledgerMigrations[version] = Migration{
		Version: version,
		Name:    name,
		Up:      up,
		Down:    down,
	}
}

// SortedByVersionAsc lists the ledger schema changes in the order they must
// be applied.
func SortedByVersionAsc() []Migration {
	migs := slices.Collect(maps.Values(ledgerMigrations))
	slices.SortFunc(migs, func(a, b Migration) int { return cmp.Compare(a.Version, b.Version) })
	return migs
}

// AsMap returns a copy of the registered schema changes keyed by version.
func AsMap() map[int]Migration {
	return maps.Clone(ledgerMigrations)
}
