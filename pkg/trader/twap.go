package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/gregtusar/perptrader/pkg/models"
)

type TwapRequest struct {
	Side     models.OrderSide
	Total    string
	Asset    string
	Schedule string
}

// Twap splits a notional into equal IOC slices spaced by the schedule's
// interval. Each slice is priced off a fresh mark. The first failure aborts
// the remaining slices.
func (t *Trader) Twap(ctx context.Context, req TwapRequest) (*Report, error) {
	if req.Side != models.OrderSideBuy && req.Side != models.OrderSideSell {
		return nil, inputErr("side", string(req.Side), "want buy or sell")
	}
	asset, err := t.asset(req.Asset)
	if err != nil {
		return nil, err
	}
	spec, err := ParseSize(req.Total)
	if err != nil {
		return nil, err
	}
	minutes, n, err := ParseSchedule(req.Schedule)
	if err != nil {
		return nil, err
	}
	total, err := t.notional(ctx, spec)
	if err != nil {
		return nil, err
	}
	slice := total / float64(n)
	interval := time.Duration(minutes * float64(time.Minute))

	r := t.begin("twap", asset.Symbol, n)
	defer r.end()
	r.log.WithField("slices", n).WithField("interval", interval.String()).Info("twap started")

	for i := 0; i < n; i++ {
		snap, err := t.info.Mark(ctx, asset.Symbol)
		if err != nil {
			return r.report, err
		}
		order, err := limitOrder(asset, req.Side, marketPrice(snap.MarkPrice, req.Side), slice/snap.MarkPrice, models.TifIoc, false)
		if err != nil {
			return r.report, err
		}
		name := fmt.Sprintf("slice %d/%d", i+1, n)
		if _, err := r.place(ctx, name, models.OrderBatch{order}); err != nil {
			return r.report, err
		}
		r.update(func(s *StrategyState) { s.Step = i + 1 })

		if i < n-1 {
			if err := sleep(ctx, t.clock, interval); err != nil {
				return r.report, err
			}
		}
	}
	return r.report, nil
}
