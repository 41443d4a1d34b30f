package reporting

import (
	"appupdate-go/internal/dbclient"
	"appupdate-go/internal/ota"
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/hashicorp/go-multierror"
	log "github.com/sirupsen/logrus"
)

// DeliveryRecord is one delivery outcome kept in the local ledger.
type DeliveryRecord struct {
	ID            string `gorm:"primaryKey"`
	BundleID      string `gorm:"index"`
	Status        string
	ErrorDetail   string
	DeviceModel   string
	DeviceBrand   string
	SystemName    string
	SystemVersion string
	CreatedAt     time.Time
}

// LedgerSink writes every outcome to the database, including ones the server
// would reject.
type LedgerSink struct {
	db dbclient.DBClient
}

var _ ota.ReportingSink = (*LedgerSink)(nil)

func NewLedgerSink(db dbclient.DBClient) *LedgerSink {
	return &LedgerSink{db: db}
}

func (l *LedgerSink) Report(ctx context.Context, bundleID string, outcome ota.Outcome) error {
	rec := &DeliveryRecord{
		ID:          uuid.NewString(),
		BundleID:    bundleID,
		Status:      string(outcome.Status),
		ErrorDetail: outcome.ErrorDetail,
	}
	if d := outcome.Device; d != nil {
		rec.DeviceModel = d.Model
		rec.DeviceBrand = d.Brand
		rec.SystemName = d.SystemName
		rec.SystemVersion = d.SystemVersion
	}
	return l.db.Create(ctx, rec)
}

// Recent returns the newest records first.
func (l *LedgerSink) Recent(ctx context.Context, limit int) ([]DeliveryRecord, error) {
	var recs []DeliveryRecord
	err := l.db.Find(ctx, &recs, &dbclient.QueryOptions{Limit: limit, Order: "\"createdAt\" desc"})
	return recs, err
}

// MultiSink fans a report out to every sink. All sinks are tried; their errors are combined.
type MultiSink []ota.ReportingSink

func (m MultiSink) Report(ctx context.Context, bundleID string, outcome ota.Outcome) error {
	var result *multierror.Error
	for _, sink := range m {
		if sink == nil {
			continue
		}
		if err := sink.Report(ctx, bundleID, outcome); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}

// LogSink only logs outcomes. It stands in when no server reporting is wanted.
type LogSink struct{}

func (LogSink) Report(_ context.Context, bundleID string, outcome ota.Outcome) error {
	entry := log.WithFields(log.Fields{"bundle": bundleID, "status": outcome.Status})
	if outcome.Status == ota.OutcomeFailure {
		entry.Warnf("Delivery failed: %s", outcome.ErrorDetail)
		return nil
	}
	entry.Info("Delivery succeeded")
	return nil
}
