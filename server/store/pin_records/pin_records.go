package pin_records

import (
	"context"
	"fmt"

	"github.com/doug-martin/goqu/v9"

	"github.com/buildbeaver/autopin/common/gerror"
	"github.com/buildbeaver/autopin/common/logger"
	"github.com/buildbeaver/autopin/common/models"
	"github.com/buildbeaver/autopin/server/store"
)

const tableName = "pin_records"

type PinRecordStore struct {
	db *store.DB
	logger.Log
}

func NewStore(db *store.DB, logFactory logger.LogFactory) *PinRecordStore {
	return &PinRecordStore{
		db:  db,
		Log: logFactory("PinRecordStore"),
	}
}

// Create a new pin record.
// Returns gerror.ErrAlreadyExists if a record with the same ID already exists.
func (d *PinRecordStore) Create(ctx context.Context, txOrNil *store.Tx, record *models.PinRecord) error {
	err := d.db.Write(txOrNil, func(writer store.Writer) error {
		ds := writer.Insert(tableName).Rows(record)
		d.logQuery(ds)
		_, err := ds.Executor().ExecContext(ctx)
		return err
	})
	if err != nil {
		return store.MakeStandardDBError(err)
	}
	return nil
}

// Read an existing pin record, looking it up by ID.
// Returns gerror.ErrNotFound if the record does not exist.
func (d *PinRecordStore) Read(ctx context.Context, txOrNil *store.Tx, id models.PinRecordID) (*models.PinRecord, error) {
	record := &models.PinRecord{}
	err := d.db.Read(txOrNil, func(reader store.Reader) error {
		ds := reader.From(tableName).Select(record).Where(goqu.Ex{"pin_record_id": id})
		d.logQuery(ds)
		found, err := ds.Executor().ScanStructContext(ctx, record)
		if err != nil {
			return err
		}
		if !found {
			return gerror.NewErrNotFound("Pin record not found").IDetail("pin_record_id", id)
		}
		return nil
	})
	if err != nil {
		return nil, store.MakeStandardDBError(err)
	}
	return record, nil
}

// ListByBuild returns every record for pins of the specified build, oldest first.
func (d *PinRecordStore) ListByBuild(ctx context.Context, txOrNil *store.Tx, buildID models.BuildID) ([]*models.PinRecord, error) {
	return d.list(ctx, txOrNil, goqu.Ex{"pin_record_build_id": buildID})
}

// ListByRootBuild returns every record for pins caused by the specified finished build, oldest first.
func (d *PinRecordStore) ListByRootBuild(ctx context.Context, txOrNil *store.Tx, rootBuildID models.BuildID) ([]*models.PinRecord, error) {
	return d.list(ctx, txOrNil, goqu.Ex{"pin_record_root_build_id": rootBuildID})
}

func (d *PinRecordStore) list(ctx context.Context, txOrNil *store.Tx, where goqu.Ex) ([]*models.PinRecord, error) {
	records := []*models.PinRecord{}
	err := d.db.Read(txOrNil, func(reader store.Reader) error {
		ds := reader.From(tableName).
			Select(&models.PinRecord{}).
			Where(where).
			Order(goqu.C("pin_record_created_at").Asc(), goqu.C("pin_record_build_id").Asc())
		d.logQuery(ds)
		return ds.Executor().ScanStructsContext(ctx, &records)
	})
	if err != nil {
		return nil, store.MakeStandardDBError(err)
	}
	return records, nil
}

type queryBuilder interface {
	ToSQL() (string, []interface{}, error)
}

func (d *PinRecordStore) logQuery(ds queryBuilder) {
	query, args, err := ds.ToSQL()
	if err != nil {
		d.Errorf("Error generating query: %v", err)
		return
	}
	d.Tracef("%s %s", query, fmt.Sprint(args...))
}
