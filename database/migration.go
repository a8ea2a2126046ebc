package database

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"room_occupancy/logger"
	"room_occupancy/models"

	"gorm.io/gorm"
)

// Migration is a row of the schema_migrations table
type Migration struct {
	ID          uint   `gorm:"primaryKey"`
	Version     string `gorm:"unique;not null;size:64"`
	Name        string `gorm:"not null"`
	Applied     bool   `gorm:"default:false"`
	AppliedAt   *time.Time
	Description string
}

// TableName customizes the table name
func (Migration) TableName() string {
	return "schema_migrations"
}

// Step is one schema change. Built-in steps run Go code; steps loaded from a
// directory execute a SQL file.
type Step struct {
	Version     string
	Name        string
	Description string
	FilePath    string
	Applied     bool
	run         func(tx *gorm.DB) error
}

// builtinSteps creates the tables used by the pipeline
var builtinSteps = []Step{
	{
		Version:     "20250916_000000",
		Name:        "create pipeline tables",
		Description: "pipeline_runs, room_labels, label_counts",
		run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.PipelineRun{}, &models.RoomLabel{}, &models.LabelCount{})
		},
	},
	{
		Version:     "20250918_000000",
		Name:        "create sensor readings",
		Description: "long-form numeric readings per run",
		run: func(tx *gorm.DB) error {
			return tx.AutoMigrate(&models.SensorReading{})
		},
	},
}

// MigrationRunner applies built-in steps followed by SQL files
type MigrationRunner struct {
	db           *gorm.DB
	migrationDir string
}

// NewMigrationRunner creates a runner; dir may be empty to skip SQL files
func NewMigrationRunner(db *gorm.DB, dir string) *MigrationRunner {
	return &MigrationRunner{db: db, migrationDir: dir}
}

// InitializeMigrationTable creates the migration table if it doesn't exist
func (mr *MigrationRunner) InitializeMigrationTable() error {
	return mr.db.AutoMigrate(&Migration{})
}

// Steps returns built-in and file steps sorted by version
func (mr *MigrationRunner) Steps() ([]Step, error) {
	steps := append([]Step{}, builtinSteps...)
	files, err := mr.fileSteps()
	if err != nil {
		return nil, err
	}
	steps = append(steps, files...)
	sort.SliceStable(steps, func(i, j int) bool {
		return steps[i].Version < steps[j].Version
	})
	return steps, nil
}

// fileSteps reads YYYYMMDD_HHMMSS_description.sql files
func (mr *MigrationRunner) fileSteps() ([]Step, error) {
	if mr.migrationDir == "" {
		return nil, nil
	}
	if _, err := os.Stat(mr.migrationDir); os.IsNotExist(err) {
		return nil, nil
	}

	var steps []Step
	err := filepath.WalkDir(mr.migrationDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".sql") {
			return nil
		}

		parts := strings.SplitN(d.Name(), "_", 3)
		if len(parts) < 3 {
			return fmt.Errorf("invalid migration filename format: %s (expected: YYYYMMDD_HHMMSS_description.sql)", d.Name())
		}
		description := strings.TrimSuffix(parts[2], ".sql")
		steps = append(steps, Step{
			Version:     parts[0] + "_" + parts[1],
			Name:        strings.ReplaceAll(description, "_", " "),
			Description: description,
			FilePath:    path,
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read migration directory: %w", err)
	}
	return steps, nil
}

func (mr *MigrationRunner) appliedVersions() (map[string]bool, error) {
	if err := mr.InitializeMigrationTable(); err != nil {
		return nil, fmt.Errorf("failed to initialize migration table: %w", err)
	}
	var applied []Migration
	if err := mr.db.Where("applied = ?", true).Order("version ASC").Find(&applied).Error; err != nil {
		return nil, fmt.Errorf("failed to get applied migrations: %w", err)
	}
	versions := make(map[string]bool, len(applied))
	for _, m := range applied {
		versions[m.Version] = true
	}
	return versions, nil
}

// Status returns every step with its applied flag
func (mr *MigrationRunner) Status() ([]Step, error) {
	steps, err := mr.Steps()
	if err != nil {
		return nil, err
	}
	applied, err := mr.appliedVersions()
	if err != nil {
		return nil, err
	}
	for i := range steps {
		steps[i].Applied = applied[steps[i].Version]
	}
	return steps, nil
}

// Pending returns the steps that have not been applied yet
func (mr *MigrationRunner) Pending() ([]Step, error) {
	steps, err := mr.Status()
	if err != nil {
		return nil, err
	}
	var pending []Step
	for _, s := range steps {
		if !s.Applied {
			pending = append(pending, s)
		}
	}
	return pending, nil
}

// RunMigrations executes all pending steps, each in its own transaction
func (mr *MigrationRunner) RunMigrations() (int, error) {
	pending, err := mr.Pending()
	if err != nil {
		return 0, fmt.Errorf("failed to get pending migrations: %w", err)
	}
	if len(pending) == 0 {
		logger.Println("No pending migrations to run")
		return 0, nil
	}

	logger.Printf("Running %d pending migration(s)...", len(pending))
	for i, step := range pending {
		if err := mr.runStep(step); err != nil {
			return i, fmt.Errorf("failed to run migration %s: %w", step.Version, err)
		}
	}
	logger.Println("All migrations completed successfully")
	return len(pending), nil
}

func (mr *MigrationRunner) runStep(step Step) error {
	logger.Printf("Running migration: %s - %s", step.Version, step.Name)

	run := step.run
	if run == nil {
		content, err := os.ReadFile(step.FilePath)
		if err != nil {
			return fmt.Errorf("failed to read migration file: %w", err)
		}
		run = func(tx *gorm.DB) error {
			return tx.Exec(string(content)).Error
		}
	}

	return mr.db.Transaction(func(tx *gorm.DB) error {
		if err := run(tx); err != nil {
			return err
		}
		now := time.Now()
		return tx.Create(&Migration{
			Version:     step.Version,
			Name:        step.Name,
			Applied:     true,
			AppliedAt:   &now,
			Description: step.Description,
		}).Error
	})
}

// CreateMigration writes an empty SQL migration file and returns its path
func (mr *MigrationRunner) CreateMigration(name string) (string, error) {
	if mr.migrationDir == "" {
		return "", fmt.Errorf("no migration directory configured")
	}
	if err := os.MkdirAll(mr.migrationDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create migrations directory: %w", err)
	}

	now := time.Now()
	cleanName := strings.ReplaceAll(strings.ToLower(strings.TrimSpace(name)), " ", "_")
	path := filepath.Join(mr.migrationDir, fmt.Sprintf("%s_%s.sql", now.Format("20060102_150405"), cleanName))

	template := fmt.Sprintf("-- Migration: %s\n-- Created: %s\n\n", name, now.Format("2006-01-02 15:04:05"))
	if err := os.WriteFile(path, []byte(template), 0o644); err != nil {
		return "", fmt.Errorf("failed to create migration file: %w", err)
	}
	return path, nil
}
