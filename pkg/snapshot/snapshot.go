// Package snapshot persists station point sets as gob inside a zstd stream.
package snapshot

import (
	"bufio"
	"encoding/gob"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/1F47E/station-cluster/pkg/models"
)

// Extension is the file suffix used for snapshots
const Extension = ".snap.zst"

// Snapshot represents the serializable form of a point set
type Snapshot struct {
	Points    []models.Point `json:"points"`
	Count     int64          `json:"count"`
	CreatedAt time.Time      `json:"created_at"`
}

// Save writes points to filename. The snapshot is written to a temporary
// file next to filename and renamed into place, so a failed save leaves
// any previous snapshot untouched and no partial file behind.
func Save(filename string, points []models.Point) (err error) {
	file, err := os.CreateTemp(filepath.Dir(filename), filepath.Base(filename)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer func() {
		if err != nil {
			file.Close()
			os.Remove(file.Name())
		}
	}()

	if err := encode(file, points); err != nil {
		return err
	}
	if err := file.Chmod(0o644); err != nil {
		return fmt.Errorf("failed to set file mode: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close file: %w", err)
	}
	if err := os.Rename(file.Name(), filename); err != nil {
		return fmt.Errorf("failed to move snapshot into place: %w", err)
	}
	return nil
}

func encode(w io.Writer, points []models.Point) error {
	bufWriter := bufio.NewWriterSize(w, 1024*1024)
	enc, err := zstd.NewWriter(bufWriter, zstd.WithEncoderLevel(zstd.SpeedBetterCompression))
	if err != nil {
		return fmt.Errorf("failed to create zstd writer: %w", err)
	}
	defer enc.Close()

	data := Snapshot{
		Points:    points,
		Count:     int64(len(points)),
		CreatedAt: time.Now().UTC(),
	}
	if err := gob.NewEncoder(enc).Encode(data); err != nil {
		return fmt.Errorf("failed to encode data: %w", err)
	}

	if err := enc.Close(); err != nil {
		return fmt.Errorf("failed to close encoder: %w", err)
	}
	if err := bufWriter.Flush(); err != nil {
		return fmt.Errorf("failed to flush buffer: %w", err)
	}
	return nil
}

// Read loads the whole snapshot stored in filename
func Read(filename string) (*Snapshot, error) {
	file, err := os.Open(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(bufio.NewReader(file))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd reader: %w", err)
	}
	defer dec.Close()

	var data Snapshot
	if err := gob.NewDecoder(dec).Decode(&data); err != nil {
		return nil, fmt.Errorf("failed to decode data: %w", err)
	}
	if data.Count != int64(len(data.Points)) {
		return nil, fmt.Errorf("corrupt snapshot: header says %d points, found %d", data.Count, len(data.Points))
	}
	return &data, nil
}

// Load returns the points stored in filename
func Load(filename string) ([]models.Point, error) {
	data, err := Read(filename)
	if err != nil {
		return nil, err
	}
	return data.Points, nil
}

// NewFilename returns a unique snapshot path in dir for n points
func NewFilename(dir string, n int) string {
	timestamp := time.Now().Format("20060102-150405")
	id := uuid.New().String()[:8]
	return filepath.Join(dir, fmt.Sprintf("stations-%dp-%s-%s%s", n, timestamp, id, Extension))
}
