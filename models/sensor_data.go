package models

import (
	"time"
)

// SensorReading is one numeric cell of a merged table in long form
type SensorReading struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID     string    `gorm:"uniqueIndex:idx_run_ts_sensor;not null;size:36" json:"run_id"`
	Timestamp time.Time `gorm:"uniqueIndex:idx_run_ts_sensor;not null" json:"timestamp"`
	Sensor    string    `gorm:"uniqueIndex:idx_run_ts_sensor;not null;size:255" json:"sensor"`
	Value     float64   `gorm:"not null" json:"value"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName customizes the table name
func (SensorReading) TableName() string {
	return "sensor_readings"
}

// PipelineRun records one merge run
type PipelineRun struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	StartedAt   time.Time `gorm:"not null;index" json:"started_at"`
	DurationMS  int64     `json:"duration_ms"`
	Inputs      string    `gorm:"type:text" json:"inputs"`
	Files       int       `json:"files"`
	Skipped     int       `json:"skipped"`
	Rows        int       `json:"rows"`
	Columns     int       `json:"columns"`
	Features    int       `json:"features"`
	LabelColumn string    `gorm:"size:255" json:"label_column"`
	SingleClass bool      `json:"single_class"`
	CreatedAt   time.Time `gorm:"autoCreateTime" json:"created_at"`
}

// TableName customizes the table name
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// RoomLabel is the label of one grid timestamp; a nil label marks a dropped row
type RoomLabel struct {
	ID        uint      `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID     string    `gorm:"uniqueIndex:idx_run_ts;not null;size:36" json:"run_id"`
	Timestamp time.Time `gorm:"uniqueIndex:idx_run_ts;not null" json:"timestamp"`
	Label     *string   `gorm:"size:255;index" json:"label"`
}

// TableName customizes the table name
func (RoomLabel) TableName() string {
	return "room_labels"
}

// LabelCount is the label distribution of a run
type LabelCount struct {
	ID    uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	RunID string `gorm:"uniqueIndex:idx_run_label;not null;size:36" json:"run_id"`
	Label string `gorm:"uniqueIndex:idx_run_label;not null;size:255" json:"label"`
	Count int    `gorm:"not null" json:"count"`
}

// TableName customizes the table name
func (LabelCount) TableName() string {
	return "label_counts"
}

// GetAllModels returns all models for migration
func GetAllModels() []interface{} {
	return []interface{}{
		&PipelineRun{},
		&RoomLabel{},
		&LabelCount{},
		&SensorReading{},
	}
}
