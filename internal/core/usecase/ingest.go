package usecase

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/Turnstyle/ria-hunter-sub009/internal/core/domain"
	"github.com/Turnstyle/ria-hunter-sub009/internal/core/ports"
)

// ProfileIngestUseCase loads Form ADV profile exports into the structured
// store and queues each loaded firm for narrative indexing.
type ProfileIngestUseCase struct {
	firms ports.FirmRepository
	queue ports.ReindexQueue
	log   *slog.Logger
}

func NewProfileIngestUseCase(firms ports.FirmRepository, queue ports.ReindexQueue, log *slog.Logger) *ProfileIngestUseCase {
	return &ProfileIngestUseCase{
		firms: firms,
		queue: queue,
		log:   log,
	}
}

// LoadProfiles parses a CSV export, columns addressed by header name so the
// export's column order does not matter. Rows without a firm name are
// skipped; rows without a parsable CRD get a synthetic one from the row
// position, matching how partial exports are keyed upstream. A repository
// error aborts the run, a queue error only costs the enqueue.
func (uc *ProfileIngestUseCase) LoadProfiles(ctx context.Context, r io.Reader) (*domain.IngestReport, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	cols := indexColumns(header)
	if _, ok := cols["firm_name"]; !ok {
		return nil, domain.WrapError(domain.ErrInvalidInput, "ingest profiles", fmt.Errorf("missing firm_name column"))
	}

	report := &domain.IngestReport{}
	rowIndex := 0
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return report, fmt.Errorf("read csv row %d: %w", rowIndex+1, err)
		}
		rowIndex++

		row, ok := parseProfileRow(cols, record, rowIndex)
		if !ok {
			report.Skipped++
			continue
		}

		if err := uc.firms.UpsertProfile(ctx, row); err != nil {
			return report, fmt.Errorf("upsert profile crd=%d: %w", row.CRD, err)
		}
		report.Loaded++

		if err := uc.queue.PublishReindex(ctx, domain.ReindexJob{CRD: row.CRD}); err != nil {
			uc.log.Warn("enqueue reindex failed", "crd", row.CRD, "error", err)
			continue
		}
		report.Enqueued++
	}

	uc.log.Info("profile load finished",
		"loaded", report.Loaded,
		"skipped", report.Skipped,
		"enqueued", report.Enqueued,
	)
	return report, nil
}

func indexColumns(header []string) map[string]int {
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.ToLower(strings.TrimSpace(name))] = i
	}
	return cols
}

func parseProfileRow(cols map[string]int, record []string, rowIndex int) (*domain.FirmRow, bool) {
	field := func(name string) string {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	name := field("firm_name")
	if name == "" {
		return nil, false
	}

	crd, err := strconv.ParseInt(field("crd_number"), 10, 64)
	if err != nil || crd <= 0 {
		crd = int64(rowIndex)
	}

	row := &domain.FirmRow{
		CRD:       crd,
		LegalName: name,
		City:      field("city"),
		State:     strings.ToUpper(field("state")),
		Services:  field("services"),
	}

	if cik, err := strconv.ParseInt(field("cik"), 10, 64); err == nil && cik > 0 {
		row.CIK = &cik
	}
	row.AUM = parseDollarAmount(field("aum"))
	row.PrivateFundAUM = parseDollarAmount(field("private_fund_aum"))
	if n, err := strconv.Atoi(field("private_fund_count")); err == nil && n > 0 {
		row.PrivateFundCount = n
	}
	if t, err := time.Parse("2006-01-02", field("form_adv_date")); err == nil {
		row.FilingDate = t
	}
	return row, true
}

// parseDollarAmount tolerates the export's formatting: separators, a leading
// dollar sign, fractional cents.
func parseDollarAmount(raw string) int64 {
	raw = strings.TrimPrefix(strings.TrimSpace(raw), "$")
	raw = strings.ReplaceAll(raw, ",", "")
	if raw == "" {
		return 0
	}
	value, err := strconv.ParseFloat(raw, 64)
	if err != nil || value <= 0 {
		return 0
	}
	return int64(value)
}
