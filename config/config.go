package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config path is given
const DefaultPath = "config.yaml"

// DatabaseConfig holds all database configuration
type DatabaseConfig struct {
	Driver         string         `yaml:"driver"`
	MySQL          MySQLConfig    `yaml:"mysql"`
	PostgreSQL     PostgresConfig `yaml:"postgres"`
	SQLite         SQLiteConfig   `yaml:"sqlite"`
	ConnectionPool PoolConfig     `yaml:"connection_pool"`
	MigrationsDir  string         `yaml:"migrations_dir"`
}

// MySQLConfig holds MySQL specific configuration
type MySQLConfig struct {
	Host      string `yaml:"host"`
	Port      int    `yaml:"port"`
	User      string `yaml:"user"`
	Password  string `yaml:"password"`
	DBName    string `yaml:"dbname"`
	Charset   string `yaml:"charset"`
	ParseTime bool   `yaml:"parse_time"`
	Loc       string `yaml:"loc"`
}

// PostgresConfig holds PostgreSQL specific configuration
type PostgresConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	DBName   string `yaml:"dbname"`
	SSLMode  string `yaml:"sslmode"`
	TimeZone string `yaml:"timezone"`
}

// SQLiteConfig holds SQLite specific configuration
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// PoolConfig holds connection pool configuration
type PoolConfig struct {
	MaxIdleConns    int `yaml:"max_idle_conns"`
	MaxOpenConns    int `yaml:"max_open_conns"`
	ConnMaxLifetime int `yaml:"conn_max_lifetime"`
}

// LoggingConfig holds logging specific configuration
type LoggingConfig struct {
	LogFile      string `yaml:"log_file"`
	LogToConsole bool   `yaml:"log_to_console"`
	LogLevel     string `yaml:"log_level"`
	Format       string `yaml:"format"` // console | json
}

// PipelineConfig holds the merge defaults; command flags override them
type PipelineConfig struct {
	Period       time.Duration `yaml:"period"`
	FillLimit    int           `yaml:"fill_limit"`
	Windows      []int         `yaml:"windows"` // seconds
	LabelColumn  string        `yaml:"label_column"`
	Workers      int           `yaml:"workers"`
	PrefixByRoom bool          `yaml:"prefix_by_room"`
}

// RoomKeywords maps filename keywords to a room name
type RoomKeywords struct {
	Room     string   `yaml:"room"`
	Keywords []string `yaml:"keywords"`
}

// MQTTConfig holds broker connection settings
type MQTTConfig struct {
	Broker   string `yaml:"broker"`
	ClientID string `yaml:"client_id"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// RedisConfig holds the optional snapshot mirror
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Key      string `yaml:"key"`
}

// FieldMapping routes "<topic>/<key>" to a snapshot column
type FieldMapping struct {
	Match string `yaml:"match"`
	Field string `yaml:"field"`
}

// CollectorConfig holds MQTT snapshot collector settings
type CollectorConfig struct {
	MQTT          MQTTConfig     `yaml:"mqtt"`
	Topics        []string       `yaml:"topics"`
	QoS           byte           `yaml:"qos"`
	FlushInterval time.Duration  `yaml:"flush_interval"`
	Output        string         `yaml:"output"`
	Columns       []string       `yaml:"columns"`
	Mappings      []FieldMapping `yaml:"mappings"`
	Redis         RedisConfig    `yaml:"redis"`
}

// Config holds the complete application configuration
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Rooms     []RoomKeywords  `yaml:"rooms"`
	Collector CollectorConfig `yaml:"collector"`
}

// Default returns the configuration used when no file is present
func Default() *Config {
	return &Config{
		Database: DatabaseConfig{
			Driver:        "sqlite",
			SQLite:        SQLiteConfig{Path: "occupancy.db"},
			MigrationsDir: "migrations",
			ConnectionPool: PoolConfig{
				MaxIdleConns:    2,
				MaxOpenConns:    4,
				ConnMaxLifetime: 3600,
			},
		},
		Logging: LoggingConfig{
			LogFile:  "result.log",
			LogLevel: "info",
			Format:   "console",
		},
		Pipeline: PipelineConfig{
			Period:       time.Second,
			FillLimit:    5,
			Windows:      []int{5, 10, 30, 60},
			LabelColumn:  "target_room",
			Workers:      4,
			PrefixByRoom: true,
		},
		Rooms: []RoomKeywords{
			{Room: "washitsu", Keywords: []string{"washitsu", "washitu", "和室"}},
			{Room: "sleeping_room", Keywords: []string{"sleep", "寝室"}},
			{Room: "living", Keywords: []string{"living", "kitchen", "リビング"}},
		},
		Collector: CollectorConfig{
			QoS:           0,
			FlushInterval: 10 * time.Second,
			Output:        "snapshot.csv",
			MQTT:          MQTTConfig{ClientID: "occupancy-collector"},
		},
	}
}

// Load loads configuration from the specified YAML file. An empty path reads
// config.yaml and falls back to defaults when that file does not exist.
func Load(configPath string) (*Config, error) {
	explicit := configPath != ""
	if !explicit {
		configPath = DefaultPath
	}

	config := Default()

	data, err := os.ReadFile(configPath)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	case !explicit && errors.Is(err, os.ErrNotExist):
		// defaults only
	default:
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config.fillDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

func (c *Config) fillDefaults() {
	d := Default()
	if c.Logging.LogFile == "" {
		c.Logging.LogFile = d.Logging.LogFile
	}
	if c.Logging.LogLevel == "" {
		c.Logging.LogLevel = d.Logging.LogLevel
	}
	if c.Pipeline.Period <= 0 {
		c.Pipeline.Period = d.Pipeline.Period
	}
	if len(c.Pipeline.Windows) == 0 {
		c.Pipeline.Windows = d.Pipeline.Windows
	}
	if c.Pipeline.LabelColumn == "" {
		c.Pipeline.LabelColumn = d.Pipeline.LabelColumn
	}
	if c.Pipeline.Workers <= 0 {
		c.Pipeline.Workers = d.Pipeline.Workers
	}
	if c.Collector.FlushInterval <= 0 {
		c.Collector.FlushInterval = d.Collector.FlushInterval
	}
	if c.Collector.Output == "" {
		c.Collector.Output = d.Collector.Output
	}
}

// Validate validates the configuration
func (c *Config) Validate() error {
	switch c.Database.Driver {
	case "mysql":
		if c.Database.MySQL.Host == "" {
			return fmt.Errorf("mysql host is required")
		}
		if c.Database.MySQL.User == "" {
			return fmt.Errorf("mysql user is required")
		}
		if c.Database.MySQL.DBName == "" {
			return fmt.Errorf("mysql database name is required")
		}
	case "postgres":
		if c.Database.PostgreSQL.Host == "" {
			return fmt.Errorf("postgres host is required")
		}
		if c.Database.PostgreSQL.User == "" {
			return fmt.Errorf("postgres user is required")
		}
		if c.Database.PostgreSQL.DBName == "" {
			return fmt.Errorf("postgres database name is required")
		}
	case "sqlite":
		if c.Database.SQLite.Path == "" {
			return fmt.Errorf("sqlite path is required")
		}
	default:
		return fmt.Errorf("unsupported database driver: %s", c.Database.Driver)
	}

	for _, w := range c.Pipeline.Windows {
		if w <= 0 {
			return fmt.Errorf("pipeline window must be positive, got %d", w)
		}
	}
	if c.Pipeline.FillLimit < 0 {
		return fmt.Errorf("pipeline fill_limit must not be negative")
	}
	if c.Collector.QoS > 2 {
		return fmt.Errorf("collector qos must be 0, 1 or 2")
	}

	return nil
}

// WindowDurations returns the feature windows as durations
func (p PipelineConfig) WindowDurations() []time.Duration {
	out := make([]time.Duration, len(p.Windows))
	for i, w := range p.Windows {
		out[i] = time.Duration(w) * time.Second
	}
	return out
}

// RoomKeywordMap returns room -> keywords in configured order
func (c *Config) RoomKeywordMap() ([]string, map[string][]string) {
	order := make([]string, 0, len(c.Rooms))
	m := make(map[string][]string, len(c.Rooms))
	for _, r := range c.Rooms {
		order = append(order, r.Room)
		m[r.Room] = r.Keywords
	}
	return order, m
}

// GetDSN returns the database connection string based on the configured driver
func (c *Config) GetDSN() string {
	switch c.Database.Driver {
	case "mysql":
		mysql := c.Database.MySQL
		return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=%s&parseTime=%t&loc=%s",
			mysql.User, mysql.Password, mysql.Host, mysql.Port, mysql.DBName,
			mysql.Charset, mysql.ParseTime, mysql.Loc)
	case "postgres":
		pg := c.Database.PostgreSQL
		return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s TimeZone=%s",
			pg.Host, pg.Port, pg.User, pg.Password, pg.DBName, pg.SSLMode, pg.TimeZone)
	case "sqlite":
		return c.Database.SQLite.Path
	default:
		return ""
	}
}
