package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/tech4loop/marketplace-backend/internal/reconciliation"
	"github.com/tech4loop/marketplace-backend/pkg/logger"
)

type ReconciliationSnapshotJobParams struct {
	Logger   *logger.Logger
	Builder  reportBuilder
	Exporter snapshotExporter
}

type reportBuilder interface {
	Build(ctx context.Context, r reconciliation.Range) ([]reconciliation.Row, error)
}

type snapshotExporter interface {
	Export(ctx context.Context, reportDate time.Time, rows []reconciliation.Row) (uuid.UUID, error)
}

// NewReconciliationSnapshotJob builds the job that exports the previous UTC
// day's reconciliation report to the warehouse.
func NewReconciliationSnapshotJob(params ReconciliationSnapshotJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Builder == nil {
		return nil, fmt.Errorf("report builder required")
	}
	if params.Exporter == nil {
		return nil, fmt.Errorf("snapshot exporter required")
	}
	return &reconciliationSnapshotJob{
		logg:     params.Logger,
		builder:  params.Builder,
		exporter: params.Exporter,
		now:      time.Now,
	}, nil
}

type reconciliationSnapshotJob struct {
	logg     *logger.Logger
	builder  reportBuilder
	exporter snapshotExporter
	now      func() time.Time
}

func (j *reconciliationSnapshotJob) Name() string { return "reconciliation_snapshot" }

func (j *reconciliationSnapshotJob) Run(ctx context.Context) error {
	today := j.now().UTC()
	day := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC).AddDate(0, 0, -1)

	rows, err := j.builder.Build(ctx, reconciliation.Range{Start: day, End: day})
	if err != nil {
		return fmt.Errorf("build report for %s: %w", day.Format(time.DateOnly), err)
	}
	snapshotID, err := j.exporter.Export(ctx, day, rows)
	if err != nil {
		return fmt.Errorf("export snapshot for %s: %w", day.Format(time.DateOnly), err)
	}

	summary := reconciliation.Summarize(rows)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"report_date": day.Format(time.DateOnly),
		"snapshot_id": snapshotID.String(),
		"matched":     summary.Matched,
		"discrepancy": summary.Discrepancy,
		"pending":     summary.Pending,
	})
	j.logg.Info(logCtx, "reconciliation snapshot complete")
	return nil
}
