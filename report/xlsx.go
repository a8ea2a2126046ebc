package report

import (
	"fmt"

	"room_occupancy/dataset"
	"room_occupancy/labeler"

	"github.com/xuri/excelize/v2"
)

// Sheet names of the workbook
const (
	SheetLabels    = "labels"
	SheetRooms     = "rooms"
	SheetConfusion = "confusion"
)

// WriteXLSX saves the label report as a workbook. ev may be nil; when set a
// confusion sheet is added.
func WriteXLSX(path string, res *labeler.Result, ev *dataset.Evaluation) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetLabels); err != nil {
		return fmt.Errorf("failed to rename sheet: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	labels := [][]interface{}{{"label", "count", "share"}}
	for _, r := range Distribution(res) {
		labels = append(labels, []interface{}{r.Label, r.Count, r.Share})
	}
	if err := writeSheet(f, SheetLabels, labels, headerStyle); err != nil {
		return err
	}

	if _, err := f.NewSheet(SheetRooms); err != nil {
		return fmt.Errorf("failed to create sheet: %w", err)
	}
	rooms := [][]interface{}{{"room", "raw_positives", "flagged"}}
	for _, room := range res.Rooms {
		rooms = append(rooms, []interface{}{room, res.RawPositives[room], res.Flagged[room]})
	}
	if err := writeSheet(f, SheetRooms, rooms, headerStyle); err != nil {
		return err
	}

	if ev != nil {
		if _, err := f.NewSheet(SheetConfusion); err != nil {
			return fmt.Errorf("failed to create sheet: %w", err)
		}
		header := []interface{}{"true \\ pred"}
		for _, c := range ev.Classes {
			header = append(header, c)
		}
		grid := [][]interface{}{header}
		for i, c := range ev.Classes {
			row := []interface{}{c}
			for _, n := range ev.Confusion[i] {
				row = append(row, n)
			}
			grid = append(grid, row)
		}
		grid = append(grid, []interface{}{"accuracy", ev.Accuracy})
		if err := writeSheet(f, SheetConfusion, grid, headerStyle); err != nil {
			return err
		}
	}

	if err := f.SaveAs(path); err != nil {
		return fmt.Errorf("failed to save workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for r, row := range rows {
		for c, value := range row {
			cell, err := excelize.CoordinatesToCellName(c+1, r+1)
			if err != nil {
				return fmt.Errorf("failed to convert coordinates: %w", err)
			}
			if err := f.SetCellValue(sheet, cell, value); err != nil {
				return fmt.Errorf("failed to set cell %s!%s: %w", sheet, cell, err)
			}
			if r == 0 {
				if err := f.SetCellStyle(sheet, cell, cell, headerStyle); err != nil {
					return fmt.Errorf("failed to set header style: %w", err)
				}
			}
		}
	}
	return nil
}
