package trader

import (
	"context"
	"fmt"
	"math"

	"github.com/gregtusar/perptrader/pkg/models"
	"github.com/gregtusar/perptrader/pkg/numeric"
)

// EntryRequest is a buy or sell with optional protective legs.
type EntryRequest struct {
	Side  models.OrderSide
	Asset string
	Size  string
	Price string
	TP    string
	SL    string
	// Chase rests a GTC near the mark and trails it instead of crossing.
	Chase bool
}

type entryPlan struct {
	asset models.Asset
	side  models.OrderSide
	order models.OrderIntent
	mark  float64
	tp    *TriggerSpec
	sl    *TriggerSpec
}

// Entry runs entry, then protection, then reports. Buys and sells share this
// path and differ only in side.
func (t *Trader) Entry(ctx context.Context, req EntryRequest) (*Report, error) {
	plan, err := t.planEntry(ctx, req)
	if err != nil {
		return nil, err
	}

	r := t.begin(string(req.Side), plan.asset.Symbol, 2)
	defer r.end()

	if req.Chase {
		return r.report, t.chaseEntry(ctx, r, plan)
	}

	statuses, err := r.place(ctx, "entry", models.OrderBatch{plan.order})
	if err != nil {
		return r.report, err
	}
	r.update(func(s *StrategyState) { s.Step = 1 })

	if plan.tp == nil && plan.sl == nil {
		return r.report, nil
	}
	ref, err := entryReference(statuses[0], plan.order)
	if err != nil {
		return r.report, err
	}
	return r.report, t.protect(ctx, r, plan, ref, plan.order.Sz)
}

func (t *Trader) planEntry(ctx context.Context, req EntryRequest) (*entryPlan, error) {
	if req.Side != models.OrderSideBuy && req.Side != models.OrderSideSell {
		return nil, inputErr("side", string(req.Side), "want buy or sell")
	}
	asset, err := t.asset(req.Asset)
	if err != nil {
		return nil, err
	}
	spec, err := t.sizeSpec(req.Size)
	if err != nil {
		return nil, err
	}
	px, err := ParsePrice(req.Price)
	if err != nil {
		return nil, err
	}
	tp, err := ParseTrigger(req.TP)
	if err != nil {
		return nil, err
	}
	sl, err := ParseTrigger(req.SL)
	if err != nil {
		return nil, err
	}
	if req.Chase && px > 0 {
		return nil, inputErr("price", req.Price, "a chased entry follows the mark and takes no price")
	}
	if req.Chase && (tp != nil || sl != nil) {
		return nil, inputErr("chase", "", "protective legs cannot be attached to a chased entry")
	}

	snap, err := t.info.Mark(ctx, asset.Symbol)
	if err != nil {
		return nil, err
	}

	// Limit entries are sized at the limit price, market entries at the mark.
	ref := snap.MarkPrice
	if px > 0 {
		ref = px
	}

	base, err := t.baseSize(ctx, spec, asset, req.Side, ref, sl)
	if err != nil {
		return nil, err
	}

	var order models.OrderIntent
	switch {
	case req.Chase:
		order, err = limitOrder(asset, req.Side, chasePrice(snap.MarkPrice, req.Side), base, models.TifGtc, false)
	case px > 0:
		order, err = limitOrder(asset, req.Side, px, base, models.TifGtc, false)
	default:
		order, err = limitOrder(asset, req.Side, marketPrice(snap.MarkPrice, req.Side), base, models.TifIoc, false)
	}
	if err != nil {
		return nil, err
	}
	return &entryPlan{asset: asset, side: req.Side, order: order, mark: snap.MarkPrice, tp: tp, sl: sl}, nil
}

// baseSize converts a size spec into base units. With risk sizing and a stop,
// a percentage is the share of account value lost if the stop triggers.
func (t *Trader) baseSize(ctx context.Context, spec SizeSpec, asset models.Asset, side models.OrderSide, ref float64, sl *TriggerSpec) (float64, error) {
	amount, err := t.notional(ctx, spec)
	if err != nil {
		return 0, err
	}
	if t.defaults.SizeType == SizeTypeRisk && spec.Kind == SizePercent && sl != nil {
		stop := TriggerPrice(*sl, models.TPSLStopLoss, side, ref)
		dist := math.Abs(ref - stop)
		if dist == 0 {
			return 0, inputErr("sl", "", "stop equals entry, risk size is unbounded")
		}
		return amount / dist, nil
	}
	return amount / ref, nil
}

// entryReference is the price protective legs are computed from: the average
// fill when the entry filled, otherwise its limit price.
func entryReference(st models.OrderStatus, order models.OrderIntent) (float64, error) {
	if st.Kind == models.StatusFilled && st.AvgPx != "" {
		if px, err := numeric.Parse(st.AvgPx); err == nil && px > 0 {
			return px, nil
		}
	}
	px, err := numeric.Parse(order.LimitPx)
	if err != nil {
		return 0, fmt.Errorf("entry price %q: %w", order.LimitPx, err)
	}
	return px, nil
}

// protect submits the TP/SL legs for a position on plan.side in one batch.
// Both legs close on the opposite side for the entry's size.
func (t *Trader) protect(ctx context.Context, r *run, plan *entryPlan, entry float64, sz string) error {
	closeSide := plan.side.Opposite()
	var batch models.OrderBatch
	for _, leg := range []struct {
		spec *TriggerSpec
		kind models.TPSL
	}{
		{plan.tp, models.TPSLTakeProfit},
		{plan.sl, models.TPSLStopLoss},
	} {
		if leg.spec == nil {
			continue
		}
		px := TriggerPrice(*leg.spec, leg.kind, plan.side, entry)
		order, err := triggerOrder(plan.asset, closeSide, px, sz, leg.kind)
		if err != nil {
			return fmt.Errorf("%s leg: %w", leg.kind, err)
		}
		batch = append(batch, order)
	}
	if len(batch) == 0 {
		return nil
	}
	_, err := r.place(ctx, "protect", batch)
	if err == nil {
		r.update(func(s *StrategyState) { s.Step = 2 })
	}
	return err
}

// ProtectRequest is a standalone tp or sl against an open position.
type ProtectRequest struct {
	Kind    models.TPSL
	Percent string
	Asset   string
	Trigger string
}

// Protect places one reduce-only trigger sized as a share of the open
// position. Side and entry come from the position itself.
func (t *Trader) Protect(ctx context.Context, req ProtectRequest) (*Report, error) {
	asset, err := t.asset(req.Asset)
	if err != nil {
		return nil, err
	}
	pct, err := ParsePercent(req.Percent)
	if err != nil {
		return nil, err
	}
	spec, err := ParseTrigger(req.Trigger)
	if err != nil {
		return nil, err
	}
	if spec == nil {
		return nil, inputErr("trigger", "", "required")
	}

	state, err := t.info.AccountState(ctx)
	if err != nil {
		return nil, err
	}
	pos, ok := state.PositionFor(asset.Symbol)
	if !ok {
		return nil, &InvariantViolation{Msg: fmt.Sprintf("reduce-only %s requires an open %s position", req.Kind, asset.Symbol)}
	}

	sz, err := numeric.FormatSize(math.Abs(pos.Size())*pct/100, asset.SzDecimals)
	if err != nil {
		return nil, err
	}

	r := t.begin(string(req.Kind), asset.Symbol, 1)
	defer r.end()

	plan := &entryPlan{asset: asset, side: pos.Side()}
	if req.Kind == models.TPSLStopLoss {
		plan.sl = spec
	} else {
		plan.tp = spec
	}
	return r.report, t.protect(ctx, r, plan, pos.Entry(), sz)
}
