package main

import (
	"errors"
	"flag"
	"fmt"
	"log"
	"os"

	"github.com/emapaie/billing/controller"
	"github.com/emapaie/billing/model"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/pelletier/go-toml/v2"
)

var (
	runMigrate = flag.Bool("migrate", false, "apply pending schema migrations and exit")
	addUser    = flag.String("adduser", "", "create a user with the given email and exit")
	password   = flag.String("password", "", "password for -adduser")
)

func dothings() error {
	flag.Parse()

	data, err := os.ReadFile("config.toml")
	if err != nil {
		return err
	}
	cfg := &model.Config{}
	if err := toml.Unmarshal(data, cfg); err != nil {
		return err
	}

	if *runMigrate {
		m, err := migrate.New("file://"+migrationsDir(), migrateDSN(cfg))
		if err != nil {
			return err
		}
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			return err
		}
		fmt.Println("migrations applied")
		return nil
	}

	db, err := model.InitDatabase(cfg)
	if err != nil {
		return err
	}

	if *addUser != "" {
		if *password == "" {
			return fmt.Errorf("use -password together with -adduser")
		}
		u := &model.User{Email: *addUser}
		if err := db.SetPassword(u, *password); err != nil {
			return err
		}
		if err := db.CreateUser(u); err != nil {
			return err
		}
		fmt.Println("user created:", u.Email)
		return nil
	}

	return controller.NewController(db)
}

func main() {
	if err := dothings(); err != nil {
		log.Fatal(err)
	}
}
