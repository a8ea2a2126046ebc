package ingest

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"
	"sync"
	"time"

	"room_occupancy/logger"
)

// Loader ingests many CSV files in parallel
type Loader struct {
	workerCount int
}

// FileJob represents a CSV file to be ingested
type FileJob struct {
	Order    int
	FilePath string
	FileName string
}

// FileResult contains the outcome of ingesting one CSV file
type FileResult struct {
	Order    int
	FilePath string
	Result   *Result
	Duration time.Duration
	Error    error
}

// NewLoader creates a loader sized to the machine
func NewLoader() *Loader {
	workerCount := runtime.NumCPU()
	if workerCount > 8 {
		workerCount = 8
	}
	return &Loader{workerCount: workerCount}
}

// SetWorkerCount sets the number of parallel workers
func (l *Loader) SetWorkerCount(count int) {
	if count > 0 {
		l.workerCount = count
	}
}

// FindCSVFiles lists the CSV files in a directory (non-recursive), sorted by name
func FindCSVFiles(directoryPath string) ([]string, error) {
	if _, err := os.Stat(directoryPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("directory does not exist: %s", directoryPath)
	}

	entries, err := os.ReadDir(directoryPath)
	if err != nil {
		return nil, err
	}

	var csvFiles []string
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		if strings.ToLower(filepath.Ext(entry.Name())) == ".csv" {
			csvFiles = append(csvFiles, filepath.Join(directoryPath, entry.Name()))
		}
	}
	sort.Strings(csvFiles)

	return csvFiles, nil
}

// LoadFiles ingests every path and returns the successful results in input
// order. Files that fail (including ErrMissingTimestampColumn) are logged and
// skipped; all outcomes are returned in the second slice.
func (l *Loader) LoadFiles(paths []string) ([]*Result, []FileResult) {
	if len(paths) == 0 {
		return nil, nil
	}

	jobs := make(chan FileJob, len(paths))
	results := make(chan FileResult, len(paths))

	var wg sync.WaitGroup
	for i := 0; i < l.workerCount; i++ {
		wg.Add(1)
		go l.worker(jobs, results, &wg)
	}

	for i, p := range paths {
		jobs <- FileJob{Order: i, FilePath: p, FileName: filepath.Base(p)}
	}
	close(jobs)

	go func() {
		wg.Wait()
		close(results)
	}()

	all := make([]FileResult, len(paths))
	for r := range results {
		all[r.Order] = r
	}

	var ok []*Result
	for _, r := range all {
		if r.Error != nil {
			if errors.Is(r.Error, ErrMissingTimestampColumn) {
				logger.Warnf("Skipping %s: %v", r.FilePath, r.Error)
			} else {
				logger.Errorf("Skipping %s: %v", r.FilePath, r.Error)
			}
			continue
		}
		ok = append(ok, r.Result)
	}

	displaySummary(all)
	return ok, all
}

func (l *Loader) worker(jobs <-chan FileJob, results chan<- FileResult, wg *sync.WaitGroup) {
	defer wg.Done()

	for job := range jobs {
		start := time.Now()
		logger.Debugf("Ingesting file: %s", job.FileName)
		res, err := ReadFile(job.FilePath)
		results <- FileResult{
			Order:    job.Order,
			FilePath: job.FilePath,
			Result:   res,
			Duration: time.Since(start),
			Error:    err,
		}
	}
}

func displaySummary(results []FileResult) {
	logger.Println(strings.Repeat("=", 60))
	logger.Println("INGEST SUMMARY")
	logger.Println(strings.Repeat("=", 60))

	var ok, failed, rows, dropped int
	for _, r := range results {
		if r.Error != nil {
			failed++
			logger.Printf("FAILED %s: %v", filepath.Base(r.FilePath), r.Error)
			continue
		}
		ok++
		rows += r.Result.Rows
		dropped += r.Result.DroppedRows
		logger.Printf("OK %s: %d rows, %d dropped, time column %q (%v)",
			filepath.Base(r.FilePath), r.Result.Rows, r.Result.DroppedRows, r.Result.TimeColumn, r.Duration)
	}

	logger.Println(strings.Repeat("-", 60))
	logger.Printf("Files: %d ok, %d failed", ok, failed)
	logger.Printf("Rows kept: %d, rows dropped for bad timestamps: %d", rows, dropped)
	logger.Println(strings.Repeat("=", 60))
}
