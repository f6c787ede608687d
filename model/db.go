package model

import (
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Store is the entry point to all persistence and business logic.
type Store struct {
	db     *gorm.DB
	Blobs  *BlobStore
	Config *Config
}

type Config struct {
	Basedir                  string
	CookieSecret             string
	MailAPIKey               string
	MailSecret               string
	Mode                     string
	Port                     int
	PublishingServerAddress  string
	PublishingServerUsername string
	Servers                  map[string]server
}

type server struct {
	Database   string
	DBName     string
	DBUser     string
	DBPassword string
	DBHost     string
	DBLogger   string
}

// shared helper for GORM logger
func gormLoggerFor(cfg *Config, svr server) *gorm.Config {
	gormConfig := &gorm.Config{}
	switch svr.DBLogger {
	case "info":
		gormConfig.Logger = logger.Default.LogMode(logger.Info)
	case "silent":
		gormConfig.Logger = logger.Default.LogMode(logger.Silent)
	default:
		if cfg.Mode == "development" {
			gormConfig.Logger = logger.Default.LogMode(logger.Info)
		} else {
			gormConfig.Logger = logger.Default.LogMode(logger.Silent)
		}
	}
	return gormConfig
}

// Open connects through the given dialector, runs the gorm auto migration
// and wires the blob store under the configured base directory. The tagged
// InitDatabase variants and the test fixtures both go through here.
func Open(dialector gorm.Dialector, cfg *Config) (*Store, error) {
	svr := cfg.Servers[cfg.Mode]
	db, err := gorm.Open(dialector, gormLoggerFor(cfg, svr))
	if err != nil {
		return nil, err
	}
	store := &Store{
		db:     db,
		Blobs:  NewBlobStore(cfg.Basedir, []byte(cfg.CookieSecret)),
		Config: cfg,
	}
	if err := store.autoMigrate(); err != nil {
		return nil, err
	}
	return store, nil
}

func (store *Store) autoMigrate() error {
	return store.db.AutoMigrate(
		&Client{},
		&Prestation{},
		&Devis{},
		&LigneDevis{},
		&Facture{},
		&LigneFacture{},
		&Document{},
		&Parametres{},
		&User{},
		&APIToken{},
	)
}
