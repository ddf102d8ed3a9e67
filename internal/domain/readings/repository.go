package readings

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"fuelstation/internal/core/id"
)

// Repository persists meter and dip readings.
// Get* methods return apperror NOT_FOUND when the row is absent.
type Repository interface {
	GetMeterReading(ctx context.Context, meterID id.ID, date time.Time) (*MeterReading, error)

	// GetMeterReadingForUpdate locks the (meter, date) row.
	GetMeterReadingForUpdate(ctx context.Context, meterID id.ID, date time.Time) (*MeterReading, error)

	// LatestMeterReadingBefore returns the most recent reading strictly before date.
	LatestMeterReadingBefore(ctx context.Context, meterID id.ID, date time.Time) (*MeterReading, error)

	// CreateMeterReading inserts the morning leg. A second row for (meter, date) is DUPLICATE_ENTRY.
	CreateMeterReading(ctx context.Context, r *MeterReading) error

	// CloseMeterReading stores the evening closing value.
	CloseMeterReading(ctx context.Context, readingID id.ID, closing decimal.Decimal, closedAt time.Time) error

	// ListMeterReadings returns readings of the tank's meters for date.
	ListMeterReadings(ctx context.Context, tankID id.ID, date time.Time, activeOnly bool) ([]MeterReading, error)

	GetDailyReading(ctx context.Context, tankID id.ID, date time.Time) (*DailyReading, error)

	// GetDailyReadingForUpdate locks the (tank, date) row.
	GetDailyReadingForUpdate(ctx context.Context, tankID id.ID, date time.Time) (*DailyReading, error)

	// CreateDailyReading inserts the morning dip. A second row for (tank, date) is DUPLICATE_ENTRY.
	CreateDailyReading(ctx context.Context, d *DailyReading) error

	// RecordEveningDip stores the evening fields of an existing row.
	RecordEveningDip(ctx context.Context, d *DailyReading) error

	// ListDailyReadings returns dip rows for a tank in [from, to].
	ListDailyReadings(ctx context.Context, tankID id.ID, from, to time.Time) ([]DailyReading, error)
}
