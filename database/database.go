package database

import (
	"fmt"
	"time"

	"room_occupancy/config"
	"room_occupancy/models"

	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// DB is the global database instance
var DB *gorm.DB

// Connect establishes a database connection based on the provided configuration
func Connect(cfg *config.Config) (*gorm.DB, error) {
	var dialector gorm.Dialector

	// Select the appropriate driver based on configuration
	dsn := cfg.GetDSN()
	switch cfg.Database.Driver {
	case "mysql":
		dialector = mysql.Open(dsn)
	case "postgres":
		dialector = postgres.Open(dsn)
	case "sqlite":
		dialector = sqlite.Open(dsn)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Database.Driver)
	}

	// SQL statements are only logged at debug level
	logMode := gormlogger.Warn
	if cfg.Logging.LogLevel == "debug" {
		logMode = gormlogger.Info
	}
	gormConfig := &gorm.Config{
		Logger: gormlogger.Default.LogMode(logMode),
	}

	// Connect to database
	db, err := gorm.Open(dialector, gormConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// Configure connection pool
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}

	pool := cfg.Database.ConnectionPool
	sqlDB.SetMaxIdleConns(pool.MaxIdleConns)
	sqlDB.SetMaxOpenConns(pool.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(time.Duration(pool.ConnMaxLifetime) * time.Second)

	// Test the connection
	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	// Set global DB instance
	DB = db

	return db, nil
}

// Close closes the database connection and clears the global instance
func Close() error {
	if DB == nil {
		return nil
	}
	sqlDB, err := DB.DB()
	DB = nil
	if err != nil {
		return fmt.Errorf("failed to get underlying sql.DB: %w", err)
	}
	return sqlDB.Close()
}

// GetDB returns the global database instance
func GetDB() *gorm.DB {
	return DB
}

// IsConnected reports whether the global instance answers a ping
func IsConnected() bool {
	if DB == nil {
		return false
	}
	sqlDB, err := DB.DB()
	return err == nil && sqlDB.Ping() == nil
}

// GetDatabaseInfo returns connection details, pool statistics and, once the
// schema is migrated, row counts of the pipeline tables.
func GetDatabaseInfo(cfg *config.Config) map[string]interface{} {
	info := map[string]interface{}{
		"driver":    cfg.Database.Driver,
		"connected": IsConnected(),
	}

	switch cfg.Database.Driver {
	case "mysql":
		info["host"] = cfg.Database.MySQL.Host
		info["port"] = cfg.Database.MySQL.Port
		info["database"] = cfg.Database.MySQL.DBName
	case "postgres":
		info["host"] = cfg.Database.PostgreSQL.Host
		info["port"] = cfg.Database.PostgreSQL.Port
		info["database"] = cfg.Database.PostgreSQL.DBName
	case "sqlite":
		info["path"] = cfg.Database.SQLite.Path
	}

	if info["connected"] != true {
		return info
	}

	if sqlDB, err := DB.DB(); err == nil {
		stats := sqlDB.Stats()
		info["max_open_connections"] = stats.MaxOpenConnections
		info["open_connections"] = stats.OpenConnections
		info["in_use"] = stats.InUse
		info["idle"] = stats.Idle
	}

	migrator := DB.Migrator()
	info["migrated"] = migrator.HasTable(&models.PipelineRun{})
	if migrator.HasTable(&Migration{}) {
		var applied int64
		DB.Model(&Migration{}).Where("applied = ?", true).Count(&applied)
		info["applied_migrations"] = applied
	}
	if info["migrated"] != true {
		return info
	}

	counts := map[string]interface{}{
		"runs":         &models.PipelineRun{},
		"labeled_rows": &models.RoomLabel{},
		"readings":     &models.SensorReading{},
	}
	for key, model := range counts {
		var n int64
		DB.Model(model).Count(&n)
		info[key] = n
	}
	var sensors int64
	DB.Model(&models.SensorReading{}).Distinct("sensor").Count(&sensors)
	info["sensors"] = sensors

	return info
}
