package port

import "context"

type Repository interface {
	// Mark price operations
	UpsertMarkPrice(ctx context.Context, venue, symbol string, price, fundingRate float64, ts int64) error
	GetMarkPrice(ctx context.Context, venue, symbol string) (price float64, ts int64, err error)

	// Position operations
	UpsertPosition(ctx context.Context, venue, symbol string, size, entryPrice float64, ts int64) error
	GetPosition(ctx context.Context, venue, symbol string) (size, entryPrice float64, err error)
	ListPositions(ctx context.Context) ([]map[string]interface{}, error)

	// Snapshot operations
	InsertSnapshot(ctx context.Context, ts int64, payload string) error

	// Connectivity audit
	InsertConnEvent(ctx context.Context, ts int64, venue, state string) error

	// Connection management
	Close() error
}
