package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
)

func main() {
	var (
		databaseURL = flag.String("database", os.Getenv("MEX_DATABASE_URL"), "postgres connection URL")
		sourcePath  = flag.String("source", "file://migrations", "migration source")
		down        = flag.Bool("down", false, "roll back all migrations")
	)
	flag.Parse()

	if *databaseURL == "" {
		fmt.Fprintln(os.Stderr, "migrate: -database or MEX_DATABASE_URL is required")
		os.Exit(1)
	}

	m, err := migrate.New(*sourcePath, *databaseURL)
	if err != nil {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	if *down {
		err = m.Down()
	} else {
		err = m.Up()
	}
	if err != nil && err != migrate.ErrNoChange {
		fmt.Fprintf(os.Stderr, "migrate: %v\n", err)
		os.Exit(1)
	}

	version, dirty, _ := m.Version()
	fmt.Printf("migrations applied: version=%d dirty=%v\n", version, dirty)
}
