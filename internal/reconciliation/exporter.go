package reconciliation

import (
	"context"
	"errors"
	"time"

	"cloud.google.com/go/bigquery"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/tech4loop/marketplace-backend/pkg/logger"
)

const exportBatchSize = 500

type rowInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
	ReconciliationTable() string
}

// Exporter appends report snapshots to the warehouse.
type Exporter struct {
	client rowInserter
	logg   *logger.Logger
	newID  func() uuid.UUID
}

func NewExporter(client rowInserter, logg *logger.Logger) (*Exporter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	if logg == nil {
		return nil, errors.New("logger required")
	}
	return &Exporter{client: client, logg: logg, newID: uuid.New}, nil
}

// Export writes rows as one snapshot for the given report date and returns
// the snapshot id.
func (e *Exporter) Export(ctx context.Context, reportDate time.Time, rows []Row) (uuid.UUID, error) {
	snapshotID := e.newID()
	if len(rows) == 0 {
		return snapshotID, nil
	}
	table := e.client.ReconciliationTable()
	exportedAt := time.Now().UTC()

	batch := make([]any, 0, exportBatchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		err := e.client.InsertRows(ctx, table, batch)
		batch = batch[:0]
		return err
	}
	for _, row := range rows {
		batch = append(batch, &snapshotRow{
			snapshotID: snapshotID,
			reportDate: startOfDay(reportDate),
			exportedAt: exportedAt,
			row:        row,
		})
		if len(batch) == exportBatchSize {
			if err := flush(); err != nil {
				return snapshotID, err
			}
		}
	}
	if err := flush(); err != nil {
		return snapshotID, err
	}

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"snapshot_id": snapshotID.String(),
		"table":       table,
		"rows":        len(rows),
	}), "reconciliation snapshot exported")
	return snapshotID, nil
}

type snapshotRow struct {
	snapshotID uuid.UUID
	reportDate time.Time
	exportedAt time.Time
	row        Row
}

// Save implements bigquery.ValueSaver. The insert id makes retried
// inserts of the same snapshot idempotent.
func (s *snapshotRow) Save() (map[string]bigquery.Value, string, error) {
	values := map[string]bigquery.Value{
		"snapshot_id": s.snapshotID.String(),
		"report_date": s.reportDate.Format(time.DateOnly),
		"exported_at": s.exportedAt,
		"order_id":    s.row.OrderID.String(),
		"created_at":  s.row.CreatedAt,
		"local_total": s.row.LocalTotal.StringFixed(2),
		"status":      string(s.row.Status),
	}
	if s.row.PaymentID != nil {
		values["payment_id"] = *s.row.PaymentID
	}
	setAmount(values, "gateway_gross", s.row.GatewayGross)
	setAmount(values, "fee_total", s.row.FeeTotal)
	setAmount(values, "net_amount", s.row.NetAmount)
	if s.row.PayoutDate != nil {
		values["payout_date"] = *s.row.PayoutDate
	}
	return values, s.snapshotID.String() + ":" + s.row.OrderID.String(), nil
}

func setAmount(values map[string]bigquery.Value, key string, amount *decimal.Decimal) {
	if amount != nil {
		values[key] = amount.StringFixed(2)
	}
}
