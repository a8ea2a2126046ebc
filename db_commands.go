package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"room_occupancy/config"
	"room_occupancy/database"
	"room_occupancy/logger"
)

func connectDatabase(cfg *config.Config) error {
	if _, err := database.Connect(cfg); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	return nil
}

func connectCommand(cfg *config.Config) {
	logger.Println("Testing database connection...")

	if err := connectDatabase(cfg); err != nil {
		logger.Fatalf("Connection failed: %v", err)
	}
	defer database.Close()

	logger.Printf("✓ Successfully connected to %s database", cfg.Database.Driver)

	info := database.GetDatabaseInfo(cfg)
	infoJSON, _ := json.MarshalIndent(info, "", "  ")
	logger.Printf("Connection info: %s", infoJSON)
}

func migrateCommand(cfg *config.Config) {
	logger.Println("Running database migrations...")

	if err := connectDatabase(cfg); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	runner := database.NewMigrationRunner(database.GetDB(), cfg.Database.MigrationsDir)
	n, err := runner.RunMigrations()
	if err != nil {
		logger.Fatalf("Migration failed after %d step(s): %v", n, err)
	}
	logger.LogResult("migrate", true, fmt.Sprintf("%d applied", n))
}

func createMigrationCommand(cfg *config.Config, name string) {
	logger.Printf("Creating migration: %s", name)

	// creating the file does not need a connection
	runner := database.NewMigrationRunner(nil, cfg.Database.MigrationsDir)
	filePath, err := runner.CreateMigration(name)
	if err != nil {
		logger.Fatalf("Failed to create migration: %v", err)
	}

	logger.Printf("✓ Migration created: %s", filePath)
}

func migrationStatusCommand(cfg *config.Config) {
	logger.Println("Checking migration status...")

	if err := connectDatabase(cfg); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	steps, err := database.NewMigrationRunner(database.GetDB(), cfg.Database.MigrationsDir).Status()
	if err != nil {
		logger.Fatalf("Failed to get migration status: %v", err)
	}

	logger.Printf("%-20s %-40s %s", "Version", "Name", "Status")
	logger.Println(strings.Repeat("-", 67))
	for _, s := range steps {
		status := "Pending"
		if s.Applied {
			status = "Applied"
		}
		logger.Printf("%-20s %-40s %s", s.Version, s.Name, status)
	}
}

func dbInfoCommand() {
	fmt.Println("Database Information:")
	fmt.Println(strings.Repeat("=", 50))

	cfg := loadConfig()
	if err := connectDatabase(cfg); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	info := database.GetDatabaseInfo(cfg)

	fmt.Printf("Database Type:     %v\n", info["driver"])
	fmt.Printf("Connection Status: %v\n", getConnectionStatusText(info["connected"]))

	switch cfg.Database.Driver {
	case "mysql", "postgres":
		fmt.Printf("Host:              %v\n", info["host"])
		fmt.Printf("Port:              %v\n", info["port"])
		fmt.Printf("Database:          %v\n", info["database"])
	case "sqlite":
		fmt.Printf("File Path:         %v\n", info["path"])
	}

	if info["connected"] != true {
		fmt.Println("\nConnection failed - unable to retrieve detailed information")
		fmt.Println(strings.Repeat("=", 50))
		return
	}

	fmt.Println("\nConnection Pool:")
	fmt.Printf("  Max Connections: %v\n", info["max_open_connections"])
	fmt.Printf("  Open Connections:%v\n", info["open_connections"])
	fmt.Printf("  In Use:          %v\n", info["in_use"])
	fmt.Printf("  Idle:            %v\n", info["idle"])

	if v, ok := info["applied_migrations"]; ok {
		fmt.Printf("\nApplied Migrations: %v\n", v)
	}
	if info["migrated"] != true {
		fmt.Println("\nSchema not migrated yet, run 'occupancy migrate'")
		fmt.Println(strings.Repeat("=", 50))
		return
	}

	fmt.Println("\nData Information:")
	fmt.Printf("  Runs:            %v\n", info["runs"])
	fmt.Printf("  Labeled Rows:    %v\n", info["labeled_rows"])
	fmt.Printf("  Readings:        %v\n", info["readings"])
	fmt.Printf("  Unique Sensors:  %v\n", info["sensors"])

	db := database.GetDB()
	if latest, err := database.ListRuns(db, 1); err == nil && len(latest) == 1 {
		fmt.Printf("  Latest Run:      %s at %s\n", latest[0].ID, latest[0].StartedAt.Format("2006-01-02 15:04:05"))
	}

	fmt.Println(strings.Repeat("=", 50))
}

func getConnectionStatusText(connected interface{}) string {
	if conn, ok := connected.(bool); ok && conn {
		return "✓ Connected"
	}
	return "✗ Disconnected"
}

// importCommand merges the inputs and stores the run, its labels and the
// merged readings.
func importCommand(cfg *config.Config, args []string) {
	sum, mf := runMerge(cfg, "import", args)

	if err := connectDatabase(cfg); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	db := database.GetDB()

	if _, err := database.NewMigrationRunner(db, cfg.Database.MigrationsDir).RunMigrations(); err != nil {
		logger.Fatalf("Migration failed: %v", err)
	}

	start := time.Now()
	if err := database.SaveRun(db, sum, *mf.label); err != nil {
		logger.Fatalf("Failed to save run: %v", err)
	}
	n, err := database.ImportTable(db, sum.RunID, sum.Table, *mf.label)
	if err != nil {
		logger.Fatalf("Failed to import readings: %v", err)
	}
	logger.LogResult("import", true, fmt.Sprintf("run %s, %d readings in %v", sum.RunID, n, time.Since(start)))
}

func runsCommand(cfg *config.Config, args []string) {
	fs := flag.NewFlagSet("runs", flag.ExitOnError)
	limit := fs.Int("limit", 10, "number of runs to show")
	fs.Parse(args)

	if err := connectDatabase(cfg); err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	db := database.GetDB()

	runs, err := database.ListRuns(db, *limit)
	if err != nil {
		logger.Fatalf("%v", err)
	}
	if len(runs) == 0 {
		logger.Println("No runs stored")
		return
	}

	for _, run := range runs {
		logger.LogDivider()
		logger.Printf("%s  %s  %d file(s)  %d rows  %d features  %dms",
			run.ID, run.StartedAt.Format("2006-01-02 15:04:05"), run.Files, run.Rows, run.Features, run.DurationMS)
		counts, err := database.LabelCounts(db, run.ID)
		if err != nil {
			logger.Warnf("%v", err)
			continue
		}
		for _, c := range counts {
			logger.Printf("  %-20s %8d", c.Label, c.Count)
		}
	}
}
