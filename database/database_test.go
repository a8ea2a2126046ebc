package database

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"room_occupancy/config"
	"room_occupancy/labeler"
	"room_occupancy/logger"
	"room_occupancy/models"
	"room_occupancy/pipeline"
	"room_occupancy/table"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

func TestMain(m *testing.M) {
	logger.SetLogger(zap.NewNop())
	os.Exit(m.Run())
}

var t0 = time.Date(2025, 9, 16, 8, 0, 0, 0, time.UTC)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	cfg := config.Default()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "test.db")

	db, err := Connect(cfg)
	require.NoError(t, err)
	t.Cleanup(func() {
		Close()
		DB = nil
	})
	return db
}

func migratedDB(t *testing.T) *gorm.DB {
	t.Helper()
	db := openTestDB(t)
	_, err := NewMigrationRunner(db, "").RunMigrations()
	require.NoError(t, err)
	return db
}

func TestConnectAndInfo(t *testing.T) {
	cfg := config.Default()
	cfg.Database.SQLite.Path = filepath.Join(t.TempDir(), "info.db")
	_, err := Connect(cfg)
	require.NoError(t, err)
	defer Close()

	assert.True(t, IsConnected())
	info := GetDatabaseInfo(cfg)
	assert.Equal(t, "sqlite", info["driver"])
	assert.Equal(t, cfg.Database.SQLite.Path, info["path"])
	assert.Equal(t, true, info["connected"])

	cfg.Database.Driver = "oracle"
	_, err = Connect(cfg)
	assert.ErrorContains(t, err, "unsupported database driver")
}

func TestDatabaseInfoCounts(t *testing.T) {
	db := openTestDB(t)
	cfg := config.Default()

	info := GetDatabaseInfo(cfg)
	assert.Equal(t, false, info["migrated"])
	assert.NotContains(t, info, "runs")

	_, err := NewMigrationRunner(db, "").RunMigrations()
	require.NoError(t, err)
	tbl := table.New([]time.Time{t0})
	require.NoError(t, tbl.AddColumn("living__pir", []table.Value{table.Number(1)}))
	_, err = ImportTable(db, "run-1", tbl)
	require.NoError(t, err)

	info = GetDatabaseInfo(cfg)
	assert.Equal(t, true, info["migrated"])
	assert.EqualValues(t, 2, info["applied_migrations"])
	assert.EqualValues(t, 0, info["runs"])
	assert.EqualValues(t, 1, info["readings"])
	assert.EqualValues(t, 1, info["sensors"])

	require.NoError(t, Close())
	assert.False(t, IsConnected())
	assert.Equal(t, false, GetDatabaseInfo(cfg)["connected"])
}

func TestMigrations(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "20990101_000000_add_notes.sql"),
		[]byte("CREATE TABLE notes (id INTEGER PRIMARY KEY, body TEXT);"), 0o644))

	runner := NewMigrationRunner(db, dir)
	pending, err := runner.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 3)
	assert.Equal(t, "20990101_000000", pending[2].Version)
	assert.Equal(t, "add notes", pending[2].Name)

	n, err := runner.RunMigrations()
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	for _, m := range models.GetAllModels() {
		assert.True(t, db.Migrator().HasTable(m))
	}
	assert.True(t, db.Migrator().HasTable("notes"))

	n, err = runner.RunMigrations()
	require.NoError(t, err)
	assert.Zero(t, n)

	status, err := runner.Status()
	require.NoError(t, err)
	for _, s := range status {
		assert.True(t, s.Applied, s.Version)
	}

	path, err := runner.CreateMigration("Add Index")
	require.NoError(t, err)
	assert.Regexp(t, `^\d{8}_\d{6}_add_index\.sql$`, filepath.Base(path))
	pending, err = runner.Pending()
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, path, pending[0].FilePath)
}

func TestMigrationBadFilename(t *testing.T) {
	db := openTestDB(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.sql"), []byte("SELECT 1;"), 0o644))

	_, err := NewMigrationRunner(db, dir).RunMigrations()
	assert.ErrorContains(t, err, "invalid migration filename")

	_, err = NewMigrationRunner(db, "").CreateMigration("x")
	assert.Error(t, err)
}

func TestSaveRun(t *testing.T) {
	db := migratedDB(t)

	res := &labeler.Result{
		Index:  []time.Time{t0, t0.Add(time.Second), t0.Add(2 * time.Second)},
		Labels: []table.Value{table.Text("living"), table.Missing(), table.Text("unknown")},
	}
	sum := &pipeline.Summary{
		RunID:     "run-1",
		StartedAt: t0,
		Duration:  1500 * time.Millisecond,
		Files:     []string{"a.csv", "b.csv"},
		Rows:      3,
		Columns:   4,
		Features:  []string{"x", "y"},
		Labels:    res,
	}
	require.NoError(t, SaveRun(db, sum, "target_room"))

	runs, err := ListRuns(db, 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, "run-1", runs[0].ID)
	assert.EqualValues(t, 1500, runs[0].DurationMS)
	assert.Equal(t, 2, runs[0].Files)
	assert.Equal(t, 2, runs[0].Features)
	assert.Equal(t, "a.csv\nb.csv", runs[0].Inputs)

	var labels []models.RoomLabel
	require.NoError(t, db.Where("run_id = ?", "run-1").Order("timestamp").Find(&labels).Error)
	require.Len(t, labels, 3)
	require.NotNil(t, labels[0].Label)
	assert.Equal(t, "living", *labels[0].Label)
	assert.Nil(t, labels[1].Label)

	counts, err := LabelCounts(db, "run-1")
	require.NoError(t, err)
	require.Len(t, counts, 2)
	assert.Equal(t, "living", counts[0].Label)
	assert.Equal(t, 1, counts[0].Count)
	assert.Equal(t, "unknown", counts[1].Label)

	// same run id twice rolls the whole transaction back
	assert.Error(t, SaveRun(db, sum, "target_room"))
	var n int64
	require.NoError(t, db.Model(&models.RoomLabel{}).Where("run_id = ?", "run-1").Count(&n).Error)
	assert.EqualValues(t, 3, n)
}

func TestImportTable(t *testing.T) {
	db := migratedDB(t)

	index := []time.Time{t0, t0.Add(time.Second), t0.Add(2 * time.Second)}
	tbl := table.New(index)
	require.NoError(t, tbl.AddColumn("living__pir", []table.Value{table.Number(1), table.Missing(), table.Number(0)}))
	require.NoError(t, tbl.AddColumn("living__mode", []table.Value{table.Text("cool"), table.Text("dry"), table.Missing()}))
	require.NoError(t, tbl.AddColumn("target_room", []table.Value{table.Bool(true), table.Bool(true), table.Bool(true)}))

	n, err := ImportTable(db, "run-1", tbl, "target_room")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	// a second import only adds the previously missing cell
	full := table.New(index)
	require.NoError(t, full.AddColumn("living__pir", []table.Value{table.Number(1), table.Number(1), table.Number(0)}))
	n, err = ImportTable(db, "run-1", full)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	_, err = ImportTable(db, "run-1", full)
	assert.ErrorContains(t, err, "failed to insert any records")

	var readings []models.SensorReading
	require.NoError(t, db.Order("timestamp").Find(&readings).Error)
	require.Len(t, readings, 3)
	assert.Equal(t, "living__pir", readings[0].Sensor)
	assert.Equal(t, 1.0, readings[1].Value)
}
