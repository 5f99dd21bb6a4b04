package main

import (
	"errors"
	"flag"
	"log"
	"os"
	"path/filepath"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/noah-isme/coaching-core-api/pkg/config"
	"github.com/noah-isme/coaching-core-api/pkg/database"
)

// Usage: migrate [-dir migrations] [up|down|version]
func main() {
	dir := flag.String("dir", "", "migrations directory (searched upwards from the working directory when empty)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	path := *dir
	if path == "" {
		path, err = findMigrations()
		if err != nil {
			log.Fatal(err)
		}
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		log.Fatal(err)
	}

	m, err := migrate.New("file://"+abs, database.URL(cfg.Database))
	if err != nil {
		log.Fatalf("failed to open migrations: %v", err)
	}
	defer m.Close()

	cmd := "up"
	if flag.NArg() > 0 {
		cmd = flag.Arg(0)
	}

	switch cmd {
	case "up":
		if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migration up failed: %v", err)
		}
		log.Println("migration up successful")
	case "down":
		if err := m.Steps(-1); err != nil && !errors.Is(err, migrate.ErrNoChange) {
			log.Fatalf("migration down failed: %v", err)
		}
		log.Println("migration down successful")
	case "version":
		version, dirty, err := m.Version()
		if err != nil && !errors.Is(err, migrate.ErrNilVersion) {
			log.Fatal(err)
		}
		log.Printf("version=%d dirty=%t", version, dirty)
	default:
		log.Fatalf("unknown command %q (want up, down or version)", cmd)
	}
}

func findMigrations() (string, error) {
	current, err := os.Getwd()
	if err != nil {
		return "", err
	}
	for i := 0; i < 6; i++ {
		candidate := filepath.Join(current, "migrations")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate, nil
		}
		parent := filepath.Dir(current)
		if parent == current {
			break
		}
		current = parent
	}
	return "", errors.New("migrations directory not found")
}
