package cron

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tech4loop/marketplace-backend/internal/reconciliation"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
)

func TestReconciliationSnapshotJobExportsYesterday(t *testing.T) {
	now := time.Date(2026, 3, 10, 2, 30, 0, 0, time.UTC)
	rows := []reconciliation.Row{{OrderID: uuid.New(), Status: reconciliation.StatusMatched}}
	builder := &fakeReportBuilder{rows: rows}
	exporter := &fakeSnapshotExporter{}
	job := newReconciliationSnapshotJob(t, builder, exporter)
	job.now = func() time.Time { return now }

	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	want := time.Date(2026, 3, 9, 0, 0, 0, 0, time.UTC)
	if !builder.got.Start.Equal(want) || !builder.got.End.Equal(want) {
		t.Fatalf("unexpected range: %+v", builder.got)
	}
	if !exporter.reportDate.Equal(want) {
		t.Fatalf("unexpected report date: %s", exporter.reportDate)
	}
	if len(exporter.rows) != 1 {
		t.Fatalf("expected 1 exported row, got %d", len(exporter.rows))
	}
}

func TestReconciliationSnapshotJobSkipsExportOnBuildFailure(t *testing.T) {
	builder := &fakeReportBuilder{err: errors.New("db down")}
	exporter := &fakeSnapshotExporter{}
	job := newReconciliationSnapshotJob(t, builder, exporter)

	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
	if exporter.calls != 0 {
		t.Fatalf("expected no export, got %d", exporter.calls)
	}
}

func TestReconciliationSnapshotJobPropagatesExportFailure(t *testing.T) {
	job := newReconciliationSnapshotJob(t, &fakeReportBuilder{}, &fakeSnapshotExporter{err: errors.New("quota")})
	if err := job.Run(context.Background()); err == nil {
		t.Fatal("expected error")
	}
}

func newReconciliationSnapshotJob(t *testing.T, builder *fakeReportBuilder, exporter *fakeSnapshotExporter) *reconciliationSnapshotJob {
	t.Helper()
	jobIface, err := NewReconciliationSnapshotJob(ReconciliationSnapshotJobParams{
		Logger:   logger.Nop(),
		Builder:  builder,
		Exporter: exporter,
	})
	if err != nil {
		t.Fatalf("NewReconciliationSnapshotJob: %v", err)
	}
	return jobIface.(*reconciliationSnapshotJob)
}

type fakeReportBuilder struct {
	rows []reconciliation.Row
	err  error
	got  reconciliation.Range
}

func (f *fakeReportBuilder) Build(_ context.Context, r reconciliation.Range) ([]reconciliation.Row, error) {
	f.got = r
	return f.rows, f.err
}

type fakeSnapshotExporter struct {
	reportDate time.Time
	rows       []reconciliation.Row
	calls      int
	err        error
}

func (f *fakeSnapshotExporter) Export(_ context.Context, reportDate time.Time, rows []reconciliation.Row) (uuid.UUID, error) {
	f.calls++
	f.reportDate = reportDate
	f.rows = rows
	return uuid.New(), f.err
}
