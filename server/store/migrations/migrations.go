package migrations

// MigrationSet provides a set of migrations that can be applied to a database.
type MigrationSet []MigrationData

// MigrationData provides the data for a single migration, including Up and Down SQL.
// Templated values are substituted for database-specific values before the migrations are applied.
type MigrationData struct {
	SequenceNumber int64
	Name           string
	UpSQL          string
	DownSQL        string
}

// AutopinServerMigrations is the set of migrations to set up the audit database for the autopin server.
var AutopinServerMigrations = MigrationSet{
	{
		SequenceNumber: 1,
		Name:           "create_pin_records",
		UpSQL: `CREATE TABLE IF NOT EXISTS pin_records
				(
					pin_record_id text NOT NULL PRIMARY KEY,
					pin_record_created_at {{ .Timestamp}} NOT NULL,
					pin_record_build_id bigint NOT NULL,
					pin_record_root_build_id bigint NOT NULL,
					pin_record_dependency {{ .Boolean}} NOT NULL,
					pin_record_source text NOT NULL,
					pin_record_rule_id text NOT NULL,
					pin_record_comment text NOT NULL,
					pin_record_user text NOT NULL,
					pin_record_error text NOT NULL
				);
				CREATE INDEX IF NOT EXISTS pin_records_build_id_created_at_index ON pin_records(
					pin_record_build_id,
					pin_record_created_at);`,
		DownSQL: `DROP INDEX pin_records_build_id_created_at_index;
				  DROP TABLE pin_records;`,
	},
	{
		SequenceNumber: 2,
		Name:           "index_pin_records_root_build",
		UpSQL: `CREATE INDEX IF NOT EXISTS pin_records_root_build_id_created_at_index ON pin_records(
					pin_record_root_build_id,
					pin_record_created_at);`,
		DownSQL: `DROP INDEX pin_records_root_build_id_created_at_index;`,
	},
}
