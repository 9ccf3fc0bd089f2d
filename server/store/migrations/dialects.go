package migrations

import (
	"fmt"

	"github.com/buildbeaver/autopin/server/store"
)

// DialectTemplate holds the SQL fragments that differ between the supported databases. Migrations refer to
// them as template fields, e.g. {{ .Boolean}}.
type DialectTemplate struct {
	Timestamp         string
	IntegerPrimaryKey string
	Boolean           string
}

func NewPostgresDialectTemplate() *DialectTemplate {
	return &DialectTemplate{
		Timestamp:         "timestamp without time zone",
		IntegerPrimaryKey: "bigserial PRIMARY KEY",
		Boolean:           "boolean",
	}
}

// NewSqliteDialectTemplate stores booleans as integers, which is what the sqlite driver reads and writes.
func NewSqliteDialectTemplate() *DialectTemplate {
	return &DialectTemplate{
		Timestamp:         "timestamp without time zone",
		IntegerPrimaryKey: "integer NOT NULL PRIMARY KEY AUTOINCREMENT",
		Boolean:           "integer",
	}
}

func dialectFor(driver store.DBDriver) (*DialectTemplate, error) {
	switch driver {
	case store.Sqlite:
		return NewSqliteDialectTemplate(), nil
	case store.Postgres:
		return NewPostgresDialectTemplate(), nil
	default:
		return nil, fmt.Errorf("error no SQL dialect for database driver %q", driver)
	}
}
