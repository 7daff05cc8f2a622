package recon

import (
	"encoding/csv"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/xitongsys/parquet-go-source/writerfile"
	"github.com/xitongsys/parquet-go/parquet"
	"github.com/xitongsys/parquet-go/writer"

	"glittr/services/trustlock-gateway/models"
)

// settlementSource lists settlement audit rows for an export window.
type settlementSource interface {
	SettlementsSince(cutoff time.Time) ([]models.SettlementRecord, error)
}

// Exporter materialises settlement reports as CSV and Parquet files for
// downstream accounting. Each run writes into a timestamped directory.
type Exporter struct {
	source    settlementSource
	outputDir string
	logger    *slog.Logger
	now       func() time.Time
}

// NewExporter builds an exporter writing under outputDir.
func NewExporter(source settlementSource, outputDir string, logger *slog.Logger) *Exporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &Exporter{
		source:    source,
		outputDir: outputDir,
		logger:    logger,
		now:       time.Now,
	}
}

// Result names the artefacts produced by one export run.
type Result struct {
	CSVPath     string
	ParquetPath string
	Rows        int
}

// Export writes all settlements at or after the cutoff. A window with no
// settlements produces no files.
func (e *Exporter) Export(cutoff time.Time) (Result, error) {
	rows, err := e.source.SettlementsSince(cutoff)
	if err != nil {
		return Result{}, fmt.Errorf("recon: load settlements: %w", err)
	}
	if len(rows) == 0 {
		return Result{}, nil
	}

	runDir := filepath.Join(e.outputDir, e.now().UTC().Format("20060102T150405Z"))
	if err := os.MkdirAll(runDir, 0o750); err != nil {
		return Result{}, fmt.Errorf("recon: create output dir: %w", err)
	}

	csvPath := filepath.Join(runDir, "settlements.csv")
	if err := writeCSV(csvPath, rows); err != nil {
		return Result{}, err
	}
	parquetPath := filepath.Join(runDir, "settlements.parquet")
	if err := writeParquet(parquetPath, rows); err != nil {
		return Result{}, err
	}
	e.logger.Info("recon: export complete", "rows", len(rows), "dir", runDir)
	return Result{CSVPath: csvPath, ParquetPath: parquetPath, Rows: len(rows)}, nil
}

func writeCSV(path string, rows []models.SettlementRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("recon: create csv: %w", err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	header := []string{
		"settlement_id", "job_id", "client", "freelancer", "outcome", "reason",
		"stake_sats", "counter_sats", "client_sats", "freelancer_sats", "settled_at",
	}
	if err := w.Write(header); err != nil {
		return fmt.Errorf("recon: csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.ID.String(),
			row.JobID,
			row.Client,
			row.Freelancer,
			row.Outcome,
			row.Reason,
			strconv.FormatInt(row.StakeSats, 10),
			strconv.FormatInt(row.CounterSats, 10),
			strconv.FormatInt(row.ClientSats, 10),
			strconv.FormatInt(row.FreelancerSats, 10),
			row.SettledAt.UTC().Format(time.RFC3339),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("recon: csv row: %w", err)
		}
	}
	w.Flush()
	return w.Error()
}

type parquetRow struct {
	SettlementID   string `parquet:"name=settlement_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	JobID          string `parquet:"name=job_id, type=BYTE_ARRAY, convertedtype=UTF8"`
	Client         string `parquet:"name=client, type=BYTE_ARRAY, convertedtype=UTF8"`
	Freelancer     string `parquet:"name=freelancer, type=BYTE_ARRAY, convertedtype=UTF8"`
	Outcome        string `parquet:"name=outcome, type=BYTE_ARRAY, convertedtype=UTF8"`
	Reason         string `parquet:"name=reason, type=BYTE_ARRAY, convertedtype=UTF8"`
	StakeSats      int64  `parquet:"name=stake_sats, type=INT64"`
	CounterSats    int64  `parquet:"name=counter_sats, type=INT64"`
	ClientSats     int64  `parquet:"name=client_sats, type=INT64"`
	FreelancerSats int64  `parquet:"name=freelancer_sats, type=INT64"`
	SettledAt      string `parquet:"name=settled_at, type=BYTE_ARRAY, convertedtype=UTF8"`
}

func writeParquet(path string, rows []models.SettlementRecord) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("recon: create parquet: %w", err)
	}
	fw := writerfile.NewWriterFile(file)
	pw, err := writer.NewParquetWriter(fw, new(parquetRow), 1)
	if err != nil {
		file.Close()
		return fmt.Errorf("recon: parquet schema: %w", err)
	}
	pw.RowGroupSize = 128 * 1024 * 1024
	pw.CompressionType = parquet.CompressionCodec_SNAPPY

	for _, row := range rows {
		pr := &parquetRow{
			SettlementID:   row.ID.String(),
			JobID:          row.JobID,
			Client:         row.Client,
			Freelancer:     row.Freelancer,
			Outcome:        row.Outcome,
			Reason:         row.Reason,
			StakeSats:      row.StakeSats,
			CounterSats:    row.CounterSats,
			ClientSats:     row.ClientSats,
			FreelancerSats: row.FreelancerSats,
			SettledAt:      row.SettledAt.UTC().Format(time.RFC3339),
		}
		if err := pw.Write(pr); err != nil {
			_ = pw.WriteStop()
			file.Close()
			return fmt.Errorf("recon: parquet write: %w", err)
		}
	}
	if err := pw.WriteStop(); err != nil {
		file.Close()
		return fmt.Errorf("recon: parquet flush: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("recon: close parquet: %w", err)
	}
	return nil
}
