package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0644))
	return path
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeConfig(t, `
database:
  driver: sqlite
  sqlite:
    path: /tmp/test.db
logging:
  log_level: debug
pipeline:
  period: 2s
  fill_limit: 3
  windows: [5, 15]
rooms:
  - room: living
    keywords: [living]
collector:
  flush_interval: 30s
  topics: ["/server/#"]
  mappings:
    - match: '^/server/(PIR\d+)/motion$'
      field: '${1}_motion'
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/test.db", cfg.GetDSN())
	assert.Equal(t, "debug", cfg.Logging.LogLevel)
	assert.Equal(t, "result.log", cfg.Logging.LogFile)
	assert.Equal(t, 2*time.Second, cfg.Pipeline.Period)
	assert.Equal(t, 3, cfg.Pipeline.FillLimit)
	assert.Equal(t, []time.Duration{5 * time.Second, 15 * time.Second}, cfg.Pipeline.WindowDurations())
	assert.Equal(t, "target_room", cfg.Pipeline.LabelColumn)
	require.Len(t, cfg.Rooms, 1)
	assert.Equal(t, "living", cfg.Rooms[0].Room)
	assert.Equal(t, 30*time.Second, cfg.Collector.FlushInterval)
	require.Len(t, cfg.Collector.Mappings, 1)
	assert.Equal(t, "${1}_motion", cfg.Collector.Mappings[0].Field)
}

func TestLoadMissingExplicitFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	cases := map[string]func(c *Config){
		"unknown driver":  func(c *Config) { c.Database.Driver = "oracle" },
		"mysql no host":   func(c *Config) { c.Database.Driver = "mysql" },
		"postgres no db":  func(c *Config) { c.Database.Driver = "postgres"; c.Database.PostgreSQL.Host = "h"; c.Database.PostgreSQL.User = "u" },
		"sqlite no path":  func(c *Config) { c.Database.SQLite.Path = "" },
		"bad window":      func(c *Config) { c.Pipeline.Windows = []int{5, 0} },
		"negative fill":   func(c *Config) { c.Pipeline.FillLimit = -1 },
		"qos out of band": func(c *Config) { c.Collector.QoS = 3 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			c := Default()
			mutate(c)
			assert.Error(t, c.Validate())
		})
	}

	assert.NoError(t, Default().Validate())
}

func TestGetDSN(t *testing.T) {
	c := Default()
	c.Database.Driver = "postgres"
	c.Database.PostgreSQL = PostgresConfig{Host: "db", Port: 5432, User: "u", Password: "p", DBName: "occ", SSLMode: "disable", TimeZone: "UTC"}
	assert.Equal(t, "host=db port=5432 user=u password=p dbname=occ sslmode=disable TimeZone=UTC", c.GetDSN())

	c.Database.Driver = "mysql"
	c.Database.MySQL = MySQLConfig{Host: "db", Port: 3306, User: "u", Password: "p", DBName: "occ", Charset: "utf8mb4", ParseTime: true, Loc: "Local"}
	assert.Equal(t, "u:p@tcp(db:3306)/occ?charset=utf8mb4&parseTime=true&loc=Local", c.GetDSN())
}

func TestExampleConfigLoads(t *testing.T) {
	cfg, err := Load(filepath.Join("..", "config.example.yaml"))
	require.NoError(t, err)

	order, keywords := cfg.RoomKeywordMap()
	assert.Equal(t, []string{"washitsu", "sleeping_room", "living"}, order)
	assert.Contains(t, keywords["living"], "kitchen")
	assert.Equal(t, "migrations", cfg.Database.MigrationsDir)
	assert.Len(t, cfg.Collector.Mappings, 2)
	assert.Equal(t, 10*time.Second, cfg.Collector.FlushInterval)
}
