package database

import (
	"fmt"
	"strings"
	"time"

	"room_occupancy/labeler"
	"room_occupancy/logger"
	"room_occupancy/models"
	"room_occupancy/pipeline"
	"room_occupancy/table"

	"gorm.io/gorm"
)

const batchSize = 1000

// SaveRun stores the run summary, its per-row labels and the label
// distribution in one transaction.
func SaveRun(db *gorm.DB, sum *pipeline.Summary, labelColumn string) error {
	run := models.PipelineRun{
		ID:          sum.RunID,
		StartedAt:   sum.StartedAt.UTC(),
		DurationMS:  sum.Duration.Milliseconds(),
		Inputs:      strings.Join(sum.Files, "\n"),
		Files:       len(sum.Files),
		Skipped:     len(sum.Skipped),
		Rows:        sum.Rows,
		Columns:     sum.Columns,
		Features:    len(sum.Features),
		LabelColumn: labelColumn,
		SingleClass: sum.SingleClass,
	}

	return db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&run).Error; err != nil {
			return fmt.Errorf("failed to insert run: %w", err)
		}
		if sum.Labels == nil {
			return nil
		}

		labels := roomLabels(sum.RunID, sum.Labels)
		if len(labels) > 0 {
			if err := tx.CreateInBatches(labels, batchSize).Error; err != nil {
				return fmt.Errorf("failed to insert labels: %w", err)
			}
		}

		var counts []models.LabelCount
		for _, c := range sum.Labels.Distribution() {
			counts = append(counts, models.LabelCount{RunID: sum.RunID, Label: c.Label, Count: c.Count})
		}
		if len(counts) > 0 {
			if err := tx.Create(&counts).Error; err != nil {
				return fmt.Errorf("failed to insert label counts: %w", err)
			}
		}
		return nil
	})
}

func roomLabels(runID string, res *labeler.Result) []models.RoomLabel {
	out := make([]models.RoomLabel, len(res.Index))
	for i, ts := range res.Index {
		out[i] = models.RoomLabel{RunID: runID, Timestamp: ts.UTC()}
		if v := res.Labels[i]; !v.IsMissing() {
			s := v.String()
			out[i].Label = &s
		}
	}
	return out
}

// ImportTable stores every numeric cell of t in long form. Columns named in
// exclude are skipped. It returns the number of rows written.
func ImportTable(db *gorm.DB, runID string, t *table.Table, exclude ...string) (int, error) {
	skip := make(map[string]bool, len(exclude))
	for _, name := range exclude {
		skip[name] = true
	}

	var readings []models.SensorReading
	for _, col := range t.Columns {
		if skip[col.Name] {
			continue
		}
		for i, v := range col.Values {
			f, ok := v.Float()
			if !ok {
				continue
			}
			readings = append(readings, models.SensorReading{
				RunID:     runID,
				Timestamp: t.Index[i].UTC(),
				Sensor:    col.Name,
				Value:     f,
			})
		}
	}

	inserted := 0
	for i := 0; i < len(readings); i += batchSize {
		end := i + batchSize
		if end > len(readings) {
			end = len(readings)
		}
		batch := readings[i:end]

		if err := db.CreateInBatches(batch, batchSize).Error; err != nil {
			// fall back to row by row to find the offending records
			n, err := individualInsert(db, batch)
			inserted += n
			if err != nil {
				return inserted, err
			}
			continue
		}
		inserted += len(batch)
	}
	return inserted, nil
}

func individualInsert(db *gorm.DB, data []models.SensorReading) (int, error) {
	var lastError error
	successCount := 0

	for i := range data {
		record := data[i]
		record.ID = 0
		if err := db.Create(&record).Error; err != nil {
			lastError = err
			logger.Warnf("Failed to insert reading %s at %s: %v",
				record.Sensor, record.Timestamp.Format(time.RFC3339), err)
		} else {
			successCount++
		}
	}

	if successCount == 0 && lastError != nil {
		return 0, fmt.Errorf("failed to insert any records: %w", lastError)
	}
	if lastError != nil {
		logger.Printf("Inserted %d out of %d readings with some errors", successCount, len(data))
	}
	return successCount, nil
}

// ListRuns returns the most recent runs first
func ListRuns(db *gorm.DB, limit int) ([]models.PipelineRun, error) {
	var runs []models.PipelineRun
	q := db.Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// LabelCounts returns the stored distribution of a run, largest first
func LabelCounts(db *gorm.DB, runID string) ([]models.LabelCount, error) {
	var counts []models.LabelCount
	err := db.Where("run_id = ?", runID).Order("count DESC, label ASC").Find(&counts).Error
	if err != nil {
		return nil, fmt.Errorf("failed to load label counts: %w", err)
	}
	return counts, nil
}
