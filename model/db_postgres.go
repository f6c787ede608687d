//go:build postgres

package model

import (
	"fmt"

	"gorm.io/driver/postgres"
)

// InitDatabase for PostgreSQL
func InitDatabase(cfg *Config) (*Store, error) {
	svr := cfg.Servers[cfg.Mode]
	fmt.Println("Use server postgresql and database", svr.DBName)

	dsn := fmt.Sprintf(
		"host=%s user=%s password=%s dbname=%s port=5432 sslmode=disable TimeZone=UTC",
		svr.DBHost, svr.DBUser, svr.DBPassword, svr.DBName,
	)
	return Open(postgres.Open(dsn), cfg)
}
