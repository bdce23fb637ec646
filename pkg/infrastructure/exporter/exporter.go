// Package exporter writes collected items to XLSX, CSV and JSON files.
package exporter

import (
	"bufio"
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/WangYihang/Catalog-Crawler/pkg/config"
	"github.com/WangYihang/Catalog-Crawler/pkg/domain/entity"
	"github.com/WangYihang/Catalog-Crawler/pkg/export"
)

// Config for Exporter
type Config struct {
	OutputDir string
	Logger    *slog.Logger
}

// Exporter implements repository.ItemExporter over a directory
type Exporter struct {
	dir    string
	logger *slog.Logger
}

// New creates an Exporter writing under cfg.OutputDir
func New(cfg Config) *Exporter {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	dir := cfg.OutputDir
	if dir == "" {
		dir = "."
	}
	return &Exporter{dir: dir, logger: logger}
}

// Dir returns the output directory
func (e *Exporter) Dir() string {
	return e.dir
}

// Export splits job items into batches of PackSize and writes one file per
// batch. It returns the written paths in batch order. The zone banner of
// spreadsheet files counts the whole export, not the batch.
func (e *Exporter) Export(ctx context.Context, job entity.ExportJob, observe func(done, total int)) ([]string, error) {
	format, err := export.ParseFormat(job.Format)
	if err != nil {
		return nil, err
	}
	if len(job.Items) == 0 {
		return nil, nil
	}
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return nil, fmt.Errorf("exporter: create %s: %w", e.dir, err)
	}

	date := job.Date
	if date.IsZero() {
		date = time.Now()
	}
	cityName := ""
	if job.City != nil {
		cityName = job.City.Name
	}

	var banner string
	if format == export.FormatXLSX {
		banner = export.ZoneBanner(export.ZoneCounts(job.Items, job.City))
	}

	chunks := export.SplitIntoChunks(job.Items, job.PackSize)
	paths := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return paths, err
		}
		path := filepath.Join(e.dir, export.Filename(job.Category, cityName, i+1, date, format))
		if err := writeFile(path, format, chunk, job.City, banner); err != nil {
			return paths, err
		}
		paths = append(paths, path)
		e.logger.Info("exporter: batch written", "path", path, "items", len(chunk), "batch", i+1, "batches", len(chunks))
		if observe != nil {
			observe(i+1, len(chunks))
		}
	}
	return paths, nil
}

func writeFile(path, format string, items []entity.CanonicalItem, city *config.City, banner string) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("exporter: create %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); err == nil && cerr != nil {
			err = fmt.Errorf("exporter: close %s: %w", path, cerr)
		}
	}()

	w := bufio.NewWriter(f)
	switch format {
	case export.FormatXLSX:
		err = WriteXLSX(w, export.FormatForExport(items, city), banner)
	case export.FormatCSV:
		err = WriteCSV(w, export.FormatForExport(items, city))
	case export.FormatJSON:
		err = WriteJSON(w, items)
	}
	if err != nil {
		return fmt.Errorf("exporter: write %s: %w", path, err)
	}
	return w.Flush()
}
