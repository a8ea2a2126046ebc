package collector

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"room_occupancy/config"

	"github.com/go-redis/redis/v8"
)

// TimestampLayout formats snapshot timestamps; the ingestor parses it back
const TimestampLayout = "2006-01-02 15:04:05.000"

// CSVSink appends snapshot rows to a CSV file
type CSVSink struct {
	file *os.File
	w    *csv.Writer
}

// ErrHeaderMismatch is returned when an existing snapshot file was written
// with a different column layout
var ErrHeaderMismatch = errors.New("snapshot header does not match configured columns")

// NewCSVSink opens path for appending. A new or empty file gets the header;
// an existing file must already carry the same header.
func NewCSVSink(path string, columns []string) (*CSVSink, error) {
	header := append([]string{"timestamp"}, columns...)

	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, err
	}

	s := &CSVSink{file: f, w: csv.NewWriter(f)}
	if info.Size() > 0 {
		if err := checkHeader(path, header); err != nil {
			f.Close()
			return nil, err
		}
		return s, nil
	}

	if err := s.w.Write(header); err != nil {
		f.Close()
		return nil, err
	}
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		f.Close()
		return nil, err
	}
	return s, nil
}

func checkHeader(path string, want []string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	got, err := r.Read()
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		return fmt.Errorf("%w: %s has %v, want %v", ErrHeaderMismatch, path, got, want)
	}
	return nil
}

// Write appends one row and flushes it to disk
func (s *CSVSink) Write(_ context.Context, snap Snapshot) error {
	row := make([]string, 0, len(snap.Values)+1)
	row = append(row, snap.At.Format(TimestampLayout))
	row = append(row, snap.Values...)
	if err := s.w.Write(row); err != nil {
		return err
	}
	s.w.Flush()
	return s.w.Error()
}

// Close flushes and closes the file
func (s *CSVSink) Close() error {
	s.w.Flush()
	if err := s.w.Error(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

// RedisSink mirrors the latest snapshot into a Redis hash
type RedisSink struct {
	client *redis.Client
	key    string
}

// NewRedisClient creates a client from the collector config
func NewRedisClient(cfg config.RedisConfig) *redis.Client {
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
}

// NewRedisSink checks the connection and returns a sink writing to key
func NewRedisSink(ctx context.Context, client *redis.Client, key string) (*RedisSink, error) {
	if key == "" {
		key = "occupancy:snapshot"
	}
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &RedisSink{client: client, key: key}, nil
}

// Write stores every non-empty value under its column plus updated_at
func (s *RedisSink) Write(ctx context.Context, snap Snapshot) error {
	fields := make(map[string]interface{}, len(snap.Columns)+1)
	for i, col := range snap.Columns {
		if snap.Values[i] != "" {
			fields[col] = snap.Values[i]
		}
	}
	fields["updated_at"] = snap.At.Format(time.RFC3339Nano)
	if err := s.client.HSet(ctx, s.key, fields).Err(); err != nil {
		return fmt.Errorf("redis HSET %s: %w", s.key, err)
	}
	return nil
}

// Close closes the Redis client
func (s *RedisSink) Close() error {
	return s.client.Close()
}
