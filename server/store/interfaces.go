package store

import (
	"context"

	"github.com/buildbeaver/autopin/common/models"
)

type PinRecordStore interface {
	// Create a new pin record.
	// Returns gerror.ErrAlreadyExists if a record with the same ID already exists.
	Create(ctx context.Context, txOrNil *Tx, record *models.PinRecord) error
	// Read an existing pin record, looking it up by ID.
	// Returns gerror.ErrNotFound if the record does not exist.
	Read(ctx context.Context, txOrNil *Tx, id models.PinRecordID) (*models.PinRecord, error)
	// ListByBuild returns every record for pins of the specified build, oldest first.
	ListByBuild(ctx context.Context, txOrNil *Tx, buildID models.BuildID) ([]*models.PinRecord, error)
	// ListByRootBuild returns every record for pins caused by the specified finished build, oldest first.
	ListByRootBuild(ctx context.Context, txOrNil *Tx, rootBuildID models.BuildID) ([]*models.PinRecord, error)
}

// MigrationRunner interface defines a set of methods for applying database migrations.
type MigrationRunner interface {
	// Up migrates the given database up to the latest version.
	Up(ctx context.Context, driver DBDriver, connectionString DatabaseConnectionString) error
	// Down migrates the given database down to empty.
	Down(ctx context.Context, driver DBDriver, connectionString DatabaseConnectionString) error
	// Goto migrates the given database to the specified version.
	Goto(ctx context.Context, driver DBDriver, connectionString DatabaseConnectionString, version uint) error
	// Force marks the database as clean and already migrated to the specified version.
	Force(ctx context.Context, driver DBDriver, connectionString DatabaseConnectionString, version uint) error
}
