//go:build !windows
// +build !windows

package app

const (
	defaultConfigDir              = "/etc/autopin"
	defaultSQLiteConnectionString = "file:/var/lib/autopin/db/sqlite.db?cache=shared"
)
