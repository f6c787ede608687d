//go:build !postgres

package model

import (
	"fmt"
	"path/filepath"

	"github.com/glebarez/sqlite"
)

// InitDatabase for SQLite (pure Go), the default driver.
func InitDatabase(cfg *Config) (*Store, error) {
	svr := cfg.Servers[cfg.Mode]
	filename := filepath.Join("db", svr.DBName)
	fmt.Println("Use server sqlite and database", filename)

	return Open(sqlite.Open(filename), cfg)
}
