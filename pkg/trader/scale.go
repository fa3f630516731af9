package trader

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/gregtusar/perptrader/pkg/models"
	"github.com/gregtusar/perptrader/pkg/numeric"
)

type ScaleRequest struct {
	Side   models.OrderSide
	Ladder string
	Asset  string
	Lower  string
	Upper  string
}

// LadderPrices returns n evenly spaced prices from lower to upper inclusive.
// Steps are computed in decimal so the last level is exactly upper.
func LadderPrices(lower, upper decimal.Decimal, n int) []decimal.Decimal {
	if n == 1 {
		return []decimal.Decimal{lower}
	}
	step := upper.Sub(lower).Div(decimal.NewFromInt(int64(n - 1)))
	out := make([]decimal.Decimal, n)
	for i := 0; i < n-1; i++ {
		out[i] = lower.Add(step.Mul(decimal.NewFromInt(int64(i))))
	}
	out[n-1] = upper
	return out
}

// Scale places a ladder of independent GTC limits, one submission per level.
// Every level is sized (total/n)/mark. A failed level stops the rest.
func (t *Trader) Scale(ctx context.Context, req ScaleRequest) (*Report, error) {
	if req.Side != models.OrderSideBuy && req.Side != models.OrderSideSell {
		return nil, inputErr("side", string(req.Side), "want buy or sell")
	}
	asset, err := t.asset(req.Asset)
	if err != nil {
		return nil, err
	}
	total, n, err := ParseLadder(req.Ladder)
	if err != nil {
		return nil, err
	}
	lower, err := decimal.NewFromString(req.Lower)
	if err != nil || !lower.IsPositive() {
		return nil, inputErr("lower", req.Lower, "must be a positive price")
	}
	upper, err := decimal.NewFromString(req.Upper)
	if err != nil || !upper.IsPositive() {
		return nil, inputErr("upper", req.Upper, "must be a positive price")
	}
	if !lower.LessThan(upper) {
		return nil, inputErr("upper", req.Upper, "must be above lower %s", req.Lower)
	}

	snap, err := t.info.Mark(ctx, asset.Symbol)
	if err != nil {
		return nil, err
	}
	sz, err := numeric.FormatSize(total/float64(n)/snap.MarkPrice, asset.SzDecimals)
	if err != nil {
		return nil, err
	}

	levels := LadderPrices(lower, upper, n)
	batch := make(models.OrderBatch, 0, n)
	for _, px := range levels {
		rounded := numeric.RoundPrice(px, asset.SzDecimals)
		if !rounded.IsPositive() {
			return nil, inputErr("lower", req.Lower, "level %s rounds to zero", px)
		}
		batch = append(batch, models.OrderIntent{
			Asset:     asset.ID,
			IsBuy:     req.Side.IsBuy(),
			LimitPx:   rounded.String(),
			Sz:        sz,
			OrderType: models.LimitType(models.TifGtc),
		})
	}

	r := t.begin("scale", asset.Symbol, n)
	defer r.end()

	for i, order := range batch {
		name := fmt.Sprintf("level %d/%d @%s", i+1, n, order.LimitPx)
		if _, err := r.place(ctx, name, models.OrderBatch{order}); err != nil {
			return r.report, err
		}
		r.update(func(s *StrategyState) { s.Step = i + 1 })
	}
	return r.report, nil
}
