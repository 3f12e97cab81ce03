package ingest

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/couchcryptid/terror-data-ingest/internal/domain"
	"github.com/couchcryptid/terror-data-ingest/internal/observability"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/encoding/charmap"
)

// importConcurrency bounds the per-row normalize-and-index fan-out. The
// geocoder serializes its own provider calls, so this mainly overlaps
// storage round-trips.
const importConcurrency = 10

// GTD column headers, as exported by the upstream dataset.
const (
	gtdColYear       = "iyear"
	gtdColMonth      = "imonth"
	gtdColDay        = "iday"
	gtdColCountry    = "country_txt"
	gtdColCity       = "city"
	gtdColLatitude   = "latitude"
	gtdColLongitude  = "longitude"
	gtdColSummary    = "summary"
	gtdColAttackType = "attacktype1_txt"
	gtdColTargetType = "targtype1_txt"
)

// RAND column headers.
const (
	randColDate        = "Date"
	randColCity        = "City"
	randColCountry     = "Country"
	randColDescription = "Description"
)

// CSVImporter loads the historical GTD and RAND datasets into the terror
// index. A malformed row is dropped and counted, never fatal.
type CSVImporter struct {
	geocoder domain.Geocoder
	store    DocumentStore
	logger   *slog.Logger
	metrics  *observability.Metrics

	terrorIndex string
}

// NewCSVImporter wires the historical import.
func NewCSVImporter(geocoder domain.Geocoder, store DocumentStore, logger *slog.Logger, metrics *observability.Metrics, terrorIndex string) *CSVImporter {
	return &CSVImporter{
		geocoder:    geocoder,
		store:       store,
		logger:      logger,
		metrics:     metrics,
		terrorIndex: terrorIndex,
	}
}

// ImportGTD streams the GTD export at path into storage. The file is
// Latin-1 encoded.
func (im *CSVImporter) ImportGTD(ctx context.Context, path string) error {
	return im.importFile(ctx, path, "gtd", func(header map[string]int, row []string) (domain.TerrorEvent, error) {
		rec := domain.GTDRecord{
			Year:       column(header, row, gtdColYear),
			Month:      column(header, row, gtdColMonth),
			Day:        column(header, row, gtdColDay),
			Country:    column(header, row, gtdColCountry),
			City:       column(header, row, gtdColCity),
			Latitude:   column(header, row, gtdColLatitude),
			Longitude:  column(header, row, gtdColLongitude),
			Summary:    column(header, row, gtdColSummary),
			AttackType: column(header, row, gtdColAttackType),
			TargetType: column(header, row, gtdColTargetType),
		}
		return domain.NormalizeGTD(ctx, rec, im.geocoder)
	})
}

// ImportRAND streams the RAND export at path into storage.
func (im *CSVImporter) ImportRAND(ctx context.Context, path string) error {
	return im.importFile(ctx, path, "rand", func(header map[string]int, row []string) (domain.TerrorEvent, error) {
		rec := domain.RANDRecord{
			Date:        column(header, row, randColDate),
			City:        column(header, row, randColCity),
			Country:     column(header, row, randColCountry),
			Description: column(header, row, randColDescription),
		}
		return domain.NormalizeRAND(ctx, rec, im.geocoder)
	})
}

// importFile reads one CSV export and indexes every normalizable row.
// Returns an error only when the file itself cannot be read; row-level
// problems are counted and skipped.
func (im *CSVImporter) importFile(ctx context.Context, path, source string, normalize func(map[string]int, []string) (domain.TerrorEvent, error)) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open %s export: %w", source, err)
	}
	defer f.Close()

	reader := csv.NewReader(charmap.ISO8859_1.NewDecoder().Reader(f))
	reader.FieldsPerRecord = -1

	headerRow, err := reader.Read()
	if err != nil {
		return fmt.Errorf("read %s header: %w", source, err)
	}
	header := make(map[string]int, len(headerRow))
	for i, name := range headerRow {
		header[strings.TrimSpace(name)] = i
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(importConcurrency)

	imported, dropped := 0, 0
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			im.metrics.RowsDropped.WithLabelValues(source, "invalid_row").Inc()
			im.logger.Warn("unreadable row, dropping", "source", source, "error", err)
			dropped++
			continue
		}
		if gctx.Err() != nil {
			break
		}

		event, err := normalize(header, row)
		if err != nil {
			reason := "invalid_row"
			if errors.Is(err, domain.ErrInvalidDate) {
				reason = "invalid_date"
			}
			im.metrics.RowsDropped.WithLabelValues(source, reason).Inc()
			im.logger.Warn("unnormalizable row, dropping", "source", source, "error", err)
			dropped++
			continue
		}

		imported++
		g.Go(func() error {
			if err := im.store.Index(gctx, im.terrorIndex, event); err != nil {
				im.metrics.IndexErrors.WithLabelValues(im.terrorIndex).Inc()
				im.logger.Error("indexing historical event failed", "source", source, "title", event.Title, "error", err)
				return nil
			}
			im.metrics.EventsIndexed.WithLabelValues(im.terrorIndex).Inc()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}

	im.logger.Info("historical import finished", "source", source, "imported", imported, "dropped", dropped)
	return nil
}

// column looks up a named cell, returning empty for absent columns or short
// rows.
func column(header map[string]int, row []string, name string) string {
	i, ok := header[name]
	if !ok || i >= len(row) {
		return ""
	}
	return row[i]
}
