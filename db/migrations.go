package db

import (
	"context"
	"fmt"
	"time"

	"github.com/vocdoni/saas-billing/migrations"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.vocdoni.io/dvote/log"
)

// MigrationRecord represents a migration record stored in MongoDB
type MigrationRecord struct {
	Version   int       `bson:"version"`
	AppliedAt time.Time `bson:"applied_at"`
}

// RunMigrationsUp executes all pending database migrations
func (ms *MongoStorage) RunMigrationsUp() error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	lastMigration, err := lastAppliedMigration(ctx, ms.migrations)
	if err != nil {
		return fmt.Errorf("failed to get last applied migration: %w", err)
	}

	migs := migrations.SortedByVersionAsc()
	if len(migs) == 0 || migs[len(migs)-1].Version == lastMigration {
		log.Infow("database is up-to-date, no need to migrate", "version", lastMigration)
		return nil
	}

	log.Infow("starting database migrations", "migrationsAvailable", len(migs), "lastAppliedMigration", lastMigration)
	for _, migration := range migs {
		if migration.Version <= lastMigration {
			continue
		}
		log.Infow("applying migration", "version", migration.Version, "name", migration.Name)
		if err := migration.Up(ctx, ms.DBClient.Database(ms.database)); err != nil {
			return fmt.Errorf("failed to apply migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		record := MigrationRecord{
			Version:   migration.Version,
			AppliedAt: time.Now(),
		}
		if _, err := ms.migrations.InsertOne(ctx, record); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", migration.Version, err)
		}
	}

	log.Infow("database migrations completed successfully")
	return nil
}

// RunMigrationsDown rolls back the last steps migrations. A non positive
// steps value rolls back every applied migration.
func (ms *MongoStorage) RunMigrationsDown(steps int) error {
	log.Infow("rolling back database migrations", "steps", steps)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	lastMigration, err := lastAppliedMigration(ctx, ms.migrations)
	if err != nil {
		return fmt.Errorf("failed to get last applied migration: %w", err)
	}
	if steps <= 0 || steps > lastMigration {
		steps = lastMigration
	}

	registry := migrations.AsMap()
	for version := lastMigration; version > lastMigration-steps; version-- {
		migration, exists := registry[version]
		if !exists {
			return fmt.Errorf("migration %d not found in registry", version)
		}
		log.Infow("rolling back migration", "version", migration.Version, "name", migration.Name)
		if err := migration.Down(ctx, ms.DBClient.Database(ms.database)); err != nil {
			return fmt.Errorf("failed to rollback migration %d (%s): %w", migration.Version, migration.Name, err)
		}
		if _, err := ms.migrations.DeleteOne(ctx, bson.M{"version": version}); err != nil {
			return fmt.Errorf("failed to remove migration record %d: %w", version, err)
		}
	}
	return nil
}

// lastAppliedMigration returns the last applied migration version, 0 if none.
func lastAppliedMigration(ctx context.Context, collection *mongo.Collection) (int, error) {
	opts := options.FindOne().SetSort(bson.D{{Key: "version", Value: -1}})
	var record MigrationRecord
	if err := collection.FindOne(ctx, bson.M{}, opts).Decode(&record); err != nil {
		if err == mongo.ErrNoDocuments {
			return 0, nil
		}
		return 0, err
	}
	return record.Version, nil
}
