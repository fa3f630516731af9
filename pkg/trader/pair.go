package trader

import (
	"context"
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/perptrader/pkg/models"
	"github.com/gregtusar/perptrader/pkg/numeric"
)

type PairRequest struct {
	Side  models.OrderSide
	Size  string
	Pair  string
	Ratio string
	TP    string
	SL    string
}

type pairLeg struct {
	asset models.Asset
	side  models.OrderSide
	sz    string
}

// Pair opens a delta-neutral position: on a buy, long base and short quote,
// each with half the notional. With a target ratio it waits for the ratio to
// reach it first. With TP/SL ratios it then watches the ratio and unwinds both
// legs on a breach.
func (t *Trader) Pair(ctx context.Context, req PairRequest) (*Report, error) {
	if req.Side != models.OrderSideBuy && req.Side != models.OrderSideSell {
		return nil, inputErr("side", string(req.Side), "want buy or sell")
	}
	baseSym, quoteSym, err := ParsePair(req.Pair)
	if err != nil {
		return nil, err
	}
	base, err := t.asset(baseSym)
	if err != nil {
		return nil, err
	}
	quote, err := t.asset(quoteSym)
	if err != nil {
		return nil, err
	}
	spec, err := t.sizeSpec(req.Size)
	if err != nil {
		return nil, err
	}
	target, err := optionalRatio("price", req.Ratio)
	if err != nil {
		return nil, err
	}
	tp, err := optionalRatio("tp", req.TP)
	if err != nil {
		return nil, err
	}
	sl, err := optionalRatio("sl", req.SL)
	if err != nil {
		return nil, err
	}
	if err := checkRatioBracket(req.Side, tp, sl); err != nil {
		return nil, err
	}

	total, err := t.notional(ctx, spec)
	if err != nil {
		return nil, err
	}
	half := total / 2

	r := t.begin("pair", base.Symbol+"/"+quote.Symbol, 3)
	defer r.end()
	r.update(func(s *StrategyState) { s.Phase = models.PairIdle })

	var ratio models.RatioSnapshot
	if target > 0 {
		r.update(func(s *StrategyState) { s.Phase = models.PairWaiting })
		ratio, err = t.waitForRatio(ctx, r, base, quote, func(x float64) bool {
			if req.Side.IsBuy() {
				return x >= target
			}
			return x <= target
		})
	} else {
		ratio, err = t.ratio(ctx, base, quote)
	}
	if err != nil {
		return r.report, err
	}

	legs := []pairLeg{{asset: base, side: req.Side}, {asset: quote, side: req.Side.Opposite()}}
	marks := []float64{ratio.BasePx, ratio.QuotePx}
	entry := make(models.OrderBatch, 0, 2)
	for i := range legs {
		order, err := limitOrder(legs[i].asset, legs[i].side, marketPrice(marks[i], legs[i].side), half/marks[i], models.TifIoc, false)
		if err != nil {
			return r.report, err
		}
		legs[i].sz = order.Sz
		entry = append(entry, order)
	}

	statuses, err := r.place(ctx, "pair entry", entry)
	if err != nil {
		return r.report, err
	}
	for i, st := range statuses {
		if st.Kind == models.StatusFilled && st.TotalSz != "" {
			legs[i].sz = st.TotalSz
		}
	}
	r.update(func(s *StrategyState) {
		s.Phase = models.PairEntered
		s.Step = 1
	})
	r.log.WithField("ratio", ratio.Ratio).Info("pair entered")

	if tp == 0 && sl == 0 {
		r.update(func(s *StrategyState) { s.Phase = models.PairComplete })
		return r.report, nil
	}

	// A long pair profits when the ratio rises.
	breach, err := t.waitForRatio(ctx, r, base, quote, func(x float64) bool {
		if req.Side.IsBuy() {
			return (tp > 0 && x >= tp) || (sl > 0 && x <= sl)
		}
		return (tp > 0 && x <= tp) || (sl > 0 && x >= sl)
	})
	if err != nil {
		return r.report, err
	}
	r.log.WithField("ratio", breach.Ratio).Info("pair exit triggered")

	marks = []float64{breach.BasePx, breach.QuotePx}
	unwind := make(models.OrderBatch, 0, 2)
	for i, leg := range legs {
		closeSide := leg.side.Opposite()
		px, err := numeric.FormatPrice(marketPrice(marks[i], closeSide), leg.asset.SzDecimals)
		if err != nil {
			return r.report, err
		}
		unwind = append(unwind, models.OrderIntent{
			Asset:      leg.asset.ID,
			IsBuy:      closeSide.IsBuy(),
			LimitPx:    px,
			Sz:         leg.sz,
			ReduceOnly: true,
			OrderType:  models.LimitType(models.TifIoc),
		})
	}
	if _, err := r.place(ctx, "pair unwind", unwind); err != nil {
		return r.report, err
	}
	r.update(func(s *StrategyState) {
		s.Phase = models.PairUnwound
		s.Step = 2
	})
	r.update(func(s *StrategyState) { s.Phase = models.PairComplete })
	return r.report, nil
}

func optionalRatio(field, s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return parsePositive(field, s)
}

func checkRatioBracket(side models.OrderSide, tp, sl float64) error {
	if tp == 0 || sl == 0 {
		return nil
	}
	if side.IsBuy() && tp <= sl {
		return inputErr("tp", fmt.Sprint(tp), "must be above sl %v for a long pair", sl)
	}
	if !side.IsBuy() && tp >= sl {
		return inputErr("tp", fmt.Sprint(tp), "must be below sl %v for a short pair", sl)
	}
	return nil
}

func (t *Trader) ratio(ctx context.Context, base, quote models.Asset) (models.RatioSnapshot, error) {
	snaps, err := t.info.Snapshot(ctx, base.Symbol, quote.Symbol)
	if err != nil {
		return models.RatioSnapshot{}, err
	}
	return models.NewRatioSnapshot(snaps[0], snaps[1]), nil
}

// waitForRatio polls the ratio every PairPollInterval until done accepts it.
func (t *Trader) waitForRatio(ctx context.Context, r *run, base, quote models.Asset, done func(float64) bool) (models.RatioSnapshot, error) {
	for {
		snap, err := t.ratio(ctx, base, quote)
		if err != nil {
			return models.RatioSnapshot{}, err
		}
		r.update(func(s *StrategyState) { s.Ratio = snap.Ratio })
		r.log.WithFields(logrus.Fields{"ratio": snap.Ratio, "base_px": snap.BasePx, "quote_px": snap.QuotePx}).Debug("pair ratio")
		if done(snap.Ratio) {
			return snap, nil
		}
		if err := sleep(ctx, t.clock, PairPollInterval); err != nil {
			return models.RatioSnapshot{}, err
		}
	}
}
