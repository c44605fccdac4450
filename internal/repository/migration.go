// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package repository

import (
	"database/sql"
	"embed"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/mysql"
	"github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"

	"github.com/solostec/smf-gateway/pkg/log"
)

const supportedVersion uint = 2

//go:embed migrations/*
var migrationFiles embed.FS

func checkDBVersion(backend string, db *sql.DB) {
	var m *migrate.Migrate

	if backend == "sqlite3" {

		driver, err := sqlite3.WithInstance(db, &sqlite3.Config{})
		if err != nil {
			log.Fatal(err)
		}
		d, err := iofs.New(migrationFiles, "migrations/sqlite3")
		if err != nil {
			log.Fatal(err)
		}

		m, err = migrate.NewWithInstance("iofs", d, "sqlite3", driver)
		if err != nil {
			log.Fatal(err)
		}
	} else if backend == "mysql" {
		driver, err := mysql.WithInstance(db, &mysql.Config{})
		if err != nil {
			log.Fatal(err)
		}
		d, err := iofs.New(migrationFiles, "migrations/mysql")
		if err != nil {
			log.Fatal(err)
		}

		m, err = migrate.NewWithInstance("iofs", d, "mysql", driver)
		if err != nil {
			log.Fatal(err)
		}
	}

	v, _, err := m.Version()
	if err != nil {
		if err == migrate.ErrNilVersion {
			log.Warn("Legacy database without version or missing database file!")
		} else {
			log.Fatal(err)
		}
	}

	if v < supportedVersion {
		log.Warnf("Unsupported database version %d, need %d.\nPlease backup your database file and run with --migrate-db", v, supportedVersion)
		os.Exit(0)
	}

	if v > supportedVersion {
		log.Warnf("Unsupported database version %d, need %d.\nPlease refer to documentation how to downgrade db with external migrate tool!", v, supportedVersion)
		os.Exit(0)
	}
}

func MigrateDB(backend string, db string) error {
	var m *migrate.Migrate

	if backend == "sqlite3" {
		d, err := iofs.New(migrationFiles, "migrations/sqlite3")
		if err != nil {
			return fmt.Errorf("repository: open sqlite3 migration source: %w", err)
		}

		m, err = migrate.NewWithSourceInstance("iofs", d, fmt.Sprintf("sqlite3://%s?_foreign_keys=on", db))
		if err != nil {
			return fmt.Errorf("repository: open sqlite3 migrator: %w", err)
		}
	} else if backend == "mysql" {
		d, err := iofs.New(migrationFiles, "migrations/mysql")
		if err != nil {
			return fmt.Errorf("repository: open mysql migration source: %w", err)
		}

		m, err = migrate.NewWithSourceInstance("iofs", d, fmt.Sprintf("mysql://%s?multiStatements=true", db))
		if err != nil {
			return fmt.Errorf("repository: open mysql migrator: %w", err)
		}
	} else {
		return fmt.Errorf("repository: unsupported database backend %q", backend)
	}

	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		return fmt.Errorf("repository: run migrations: %w", err)
	}

	srcErr, dbErr := m.Close()
	if srcErr != nil {
		return fmt.Errorf("repository: close migration source: %w", srcErr)
	}
	if dbErr != nil {
		return fmt.Errorf("repository: close migration db handle: %w", dbErr)
	}
	return nil
}
