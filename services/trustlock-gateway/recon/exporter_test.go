package recon

import (
	"encoding/csv"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"

	"glittr/services/trustlock-gateway/models"
)

type fakeSource struct {
	rows []models.SettlementRecord
}

func (f *fakeSource) SettlementsSince(time.Time) ([]models.SettlementRecord, error) {
	return f.rows, nil
}

func TestExportWritesArtefacts(t *testing.T) {
	settled := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
	source := &fakeSource{rows: []models.SettlementRecord{
		{
			ID:             uuid.New(),
			JobID:          "job-1",
			Client:         "client-1",
			Freelancer:     "freelancer-1",
			Outcome:        "completed",
			StakeSats:      15_000_000,
			CounterSats:    7_500_000,
			ClientSats:     0,
			FreelancerSats: 15_000_000,
			SettledAt:      settled,
		},
		{
			ID:          uuid.New(),
			JobID:       "job-2",
			Client:      "client-1",
			Freelancer:  "freelancer-2",
			Outcome:     "slashed",
			Reason:      "missed_deadline",
			StakeSats:   5_000_000,
			CounterSats: 2_500_000,
			ClientSats:  5_750_000,
			SettledAt:   settled.Add(time.Hour),
		},
	}}

	exporter := NewExporter(source, t.TempDir(), nil)
	result, err := exporter.Export(settled.Add(-time.Hour))
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Rows != 2 {
		t.Fatalf("unexpected row count: %d", result.Rows)
	}

	file, err := os.Open(result.CSVPath)
	if err != nil {
		t.Fatalf("open csv: %v", err)
	}
	defer file.Close()
	records, err := csv.NewReader(file).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected header plus two rows, got %d", len(records))
	}
	if records[1][1] != "job-1" || records[2][5] != "missed_deadline" {
		t.Fatalf("unexpected csv contents: %v", records)
	}

	info, err := os.Stat(result.ParquetPath)
	if err != nil {
		t.Fatalf("stat parquet: %v", err)
	}
	if info.Size() == 0 {
		t.Fatal("parquet file is empty")
	}
}

func TestExportEmptyWindowWritesNothing(t *testing.T) {
	dir := t.TempDir()
	exporter := NewExporter(&fakeSource{}, dir, nil)
	result, err := exporter.Export(time.Now())
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if result.Rows != 0 || result.CSVPath != "" {
		t.Fatalf("unexpected result: %+v", result)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("read dir: %v", err)
	}
	if len(entries) != 0 {
		t.Fatal("empty export should not create files")
	}
}
