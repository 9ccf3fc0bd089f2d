//go:build windows
// +build windows

package app

const (
	defaultConfigDir              = "C:\\ProgramData\\autopin"
	defaultSQLiteConnectionString = "file:C:\\ProgramData\\autopin\\db\\sqlite.db?cache=shared"
)
