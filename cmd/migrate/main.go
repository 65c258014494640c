package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/angelmondragon/storefront-backend/pkg/config"
	"github.com/angelmondragon/storefront-backend/pkg/db"
	"github.com/angelmondragon/storefront-backend/pkg/logger"
	"github.com/angelmondragon/storefront-backend/pkg/migrate"
)

type options struct {
	name    string
	version string
	dir     string
}

type command struct {
	needsDB bool
	run     func(ctx context.Context, m *migrate.Migrator, opts options) error
}

var commands = map[string]command{
	"up": {needsDB: true, run: func(ctx context.Context, m *migrate.Migrator, _ options) error {
		applied, err := m.Up(ctx)
		if err == nil {
			fmt.Printf("applied %d migration(s) %v\n", len(applied), applied)
		}
		return err
	}},
	"down": {needsDB: true, run: func(ctx context.Context, m *migrate.Migrator, _ options) error {
		version, err := m.Down(ctx)
		if err == nil {
			fmt.Println("rolled back", version)
		}
		return err
	}},
	"status": {needsDB: true, run: func(ctx context.Context, m *migrate.Migrator, _ options) error {
		statuses, err := m.Status(ctx)
		if err != nil {
			return err
		}
		for _, s := range statuses {
			applied := "pending"
			if !s.AppliedAt.IsZero() {
				applied = s.AppliedAt.UTC().Format(time.RFC3339)
			}
			fmt.Printf("%-16d %-10s %s\n", s.Source.Version, s.State, applied)
		}
		return nil
	}},
	"version": {needsDB: true, run: func(ctx context.Context, m *migrate.Migrator, opts options) error {
		if opts.version == "" {
			return fmt.Errorf("missing -version")
		}
		return m.To(ctx, opts.version)
	}},
	"create": {run: func(_ context.Context, _ *migrate.Migrator, opts options) error {
		path, err := migrate.CreateSQLMigration(opts.dir, opts.name, time.Now())
		if err == nil {
			fmt.Println("created migration:", path)
		}
		return err
	}},
	"validate": {run: func(_ context.Context, _ *migrate.Migrator, opts options) error {
		if err := migrate.Validate(os.DirFS(opts.dir)); err != nil {
			return err
		}
		fmt.Println("migration validation passed")
		return nil
	}},
}

func main() {
	var opts options
	cmdName := flag.String("cmd", "up", "migration command: "+strings.Join(commandNames(), "|"))
	flag.StringVar(&opts.dir, "dir", migrate.SourceDir, "migrations source directory (create, validate)")
	flag.StringVar(&opts.name, "name", "", "migration name (create)")
	flag.StringVar(&opts.version, "version", "", "target version YYYYMMDDHHMMSS (version)")
	flag.Parse()

	logg := logger.New(logger.Options{ServiceName: "migrate"})
	_ = godotenv.Load()

	cmd, ok := commands[*cmdName]
	if !ok {
		fmt.Fprintln(os.Stderr, "unknown -cmd value:", *cmdName)
		os.Exit(2)
	}

	ctx := logg.WithField(context.Background(), "cmd", *cmdName)
	if err := execute(ctx, logg, cmd, opts); err != nil {
		logg.Error(ctx, "migrate failed", err)
		os.Exit(1)
	}
}

func execute(ctx context.Context, logg *logger.Logger, cmd command, opts options) error {
	if !cmd.needsDB {
		return cmd.run(ctx, nil, opts)
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if cfg.DB.Driver == db.DriverSQLite {
		return fmt.Errorf("goose migrations target postgres; driver is %s", cfg.DB.Driver)
	}
	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer dbClient.Close()

	sqlDB, err := dbClient.DB().DB()
	if err != nil {
		return err
	}
	migrator, err := migrate.NewMigrator(sqlDB, nil)
	if err != nil {
		return err
	}
	return cmd.run(logg.WithField(ctx, "env", cfg.App.Env), migrator, opts)
}

func commandNames() []string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
