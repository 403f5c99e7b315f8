// cmd/tools/create-schema/main.go
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"citation-validator/internal/common/config"
	"citation-validator/internal/common/database"
	"citation-validator/internal/store"
)

func main() {
	configPath := flag.String("config", "", "Path to a config file (default: configs/config.yaml lookup)")
	dryRun := flag.Bool("dry-run", false, "Print the DDL instead of applying it")
	flag.Parse()

	if *dryRun {
		fmt.Print(store.Schema)
		return
	}

	var (
		cfg *config.Config
		err error
	)
	if *configPath != "" {
		cfg, err = config.LoadFromFile(*configPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		fmt.Printf("Error loading config: %v\n", err)
		os.Exit(1)
	}

	pg, err := database.NewPostgres(cfg.Database.Postgres)
	if err != nil {
		fmt.Printf("Error connecting to postgres: %v\n", err)
		os.Exit(1)
	}
	defer pg.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if _, err := pg.Exec(ctx, store.Schema); err != nil {
		fmt.Printf("Error applying schema: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Schema applied to %s@%s/%s\n",
		cfg.Database.Postgres.User, cfg.Database.Postgres.Host, cfg.Database.Postgres.Database)
}
