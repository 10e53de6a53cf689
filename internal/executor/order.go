package executor

import (
	"context"
	"fmt"
	"math"

	"github.com/sawpanic/oficvd/internal/feature"
	"github.com/sawpanic/oficvd/internal/signal"
)

// Order is one order submission request to an Adapter.
type Order struct {
	Symbol    string
	Side      signal.SideHint
	Qty       float64
	Price     float64 // limit reference price; backtest fills at tick mid regardless
	TsMs      int64
	SignalID  string
	Scenario  feature.Scenario2x2
	SpreadBps float64
}

// Fill is one execution report returned by fetch_fills().
type Fill struct {
	ClientOrderID string
	Symbol        string
	Side          signal.SideHint
	Qty           float64
	Price         float64
	FeeBps        float64
	TsMs          int64
}

// VenueRules carries the lot/tick grid and minimum notional a symbol must
// round and clear before submission (spec section 4.8, "Normalisation").
type VenueRules struct {
	LotSize     float64
	TickSize    float64
	MinNotional float64
}

// Round snaps qty down to the lot grid and price to the tick grid, then
// rejects the result if its notional falls below MinNotional.
func (v VenueRules) Round(qty, price float64) (roundedQty, roundedPrice float64, err error) {
	roundedQty = roundToStep(qty, v.LotSize)
	roundedPrice = roundToStep(price, v.TickSize)
	if roundedQty <= 0 {
		return 0, 0, fmt.Errorf("%w: qty %v rounds to zero at lot size %v", ErrRejected, qty, v.LotSize)
	}
	if roundedQty*roundedPrice < v.MinNotional {
		return 0, 0, fmt.Errorf("%w: %w: notional %v below minimum %v", ErrRejected, ErrBelowMinNotional, roundedQty*roundedPrice, v.MinNotional)
	}
	return roundedQty, roundedPrice, nil
}

func roundToStep(v, step float64) float64 {
	if step <= 0 {
		return v
	}
	return math.Floor(v/step) * step
}

// Adapter is the uniform Broker Adapter surface (spec section 4.8), shared
// by the backtest and testnet/live variants.
type Adapter interface {
	Submit(ctx context.Context, order Order) (clientOrderID string, err error)
	Cancel(ctx context.Context, clientOrderID string) error
	FetchFills(ctx context.Context) ([]Fill, error)
	Positions(ctx context.Context) (map[string]float64, error)
}
