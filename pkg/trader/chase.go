package trader

import (
	"context"
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/perptrader/pkg/models"
	"github.com/gregtusar/perptrader/pkg/numeric"
)

// ChaseRequest trails an existing resting order.
type ChaseRequest struct {
	Oid   uint64
	Asset string
	Side  models.OrderSide
}

// chasePrice sits just inside the mark: below it for buys, above for sells.
func chasePrice(mark float64, side models.OrderSide) float64 {
	return mark * (1 - side.Sign()*ChaseOffset)
}

// Chase looks up the resting order and trails it until it fills.
func (t *Trader) Chase(ctx context.Context, req ChaseRequest) (*Report, error) {
	asset, err := t.asset(req.Asset)
	if err != nil {
		return nil, err
	}
	if req.Side != models.OrderSideBuy && req.Side != models.OrderSideSell {
		return nil, inputErr("side", string(req.Side), "want buy or sell")
	}

	open, err := t.info.OpenOrders(ctx)
	if err != nil {
		return nil, err
	}
	var resting *models.OpenOrder
	for i := range open {
		if open[i].Oid == req.Oid {
			resting = &open[i]
			break
		}
	}
	if resting == nil {
		return nil, &InvariantViolation{Msg: fmt.Sprintf("order %d is not resting", req.Oid)}
	}
	if resting.IsBuy() != req.Side.IsBuy() {
		return nil, inputErr("side", string(req.Side), "order %d is on the other side", req.Oid)
	}

	r := t.begin("chase", asset.Symbol, ChaseMaxIter)
	defer r.end()

	order := models.OrderIntent{
		Asset:     asset.ID,
		IsBuy:     req.Side.IsBuy(),
		LimitPx:   resting.LimitPx,
		Sz:        resting.Sz,
		OrderType: models.LimitType(models.TifGtc),
	}
	return r.report, t.chase(ctx, r, asset, order, req.Oid)
}

// chaseEntry rests a GTC near the mark, then chases it if it did not fill.
func (t *Trader) chaseEntry(ctx context.Context, r *run, plan *entryPlan) error {
	statuses, err := r.place(ctx, "entry", models.OrderBatch{plan.order})
	if err != nil {
		return err
	}
	st := statuses[0]
	if st.Kind != models.StatusResting {
		return nil
	}
	return t.chase(ctx, r, plan.asset, plan.order, st.Oid)
}

// chase modifies oid toward the mark every ChaseInterval. After ChaseMaxIter
// modifies or ChaseDeadline it crosses the spread with a final IOC.
func (t *Trader) chase(ctx context.Context, r *run, asset models.Asset, order models.OrderIntent, oid uint64) error {
	side := order.Side()
	start := t.clock.Now()
	deadline := start.Add(ChaseDeadline)
	r.update(func(s *StrategyState) {
		s.LastOid = oid
		s.Deadline = &deadline
	})

	for i := 0; ; i++ {
		snap, err := t.info.Mark(ctx, asset.Symbol)
		if err != nil {
			return err
		}

		final := i >= ChaseMaxIter || !t.clock.Now().Before(deadline)
		px, tif := chasePrice(snap.MarkPrice, side), models.TifGtc
		if final {
			px, tif = marketPrice(snap.MarkPrice, side), models.TifIoc
		}
		pxStr, err := numeric.FormatPrice(px, asset.SzDecimals)
		if err != nil {
			return err
		}
		next := order
		next.LimitPx = pxStr
		next.OrderType = models.LimitType(tif)

		name := fmt.Sprintf("chase %d", i+1)
		if final {
			name = "chase final"
		}
		statuses, err := r.modify(ctx, name, []models.ModifyRequest{{Oid: oid, Order: next}})
		if err != nil {
			return err
		}

		st := statuses[0]
		log := r.log.WithFields(logrus.Fields{"oid": oid, "step": name, "px": next.LimitPx})
		switch st.Kind {
		case models.StatusFilled:
			log.Info("chased order filled")
			r.update(func(s *StrategyState) {
				s.Fills = append(s.Fills, st)
				s.LastOid = st.Oid
			})
			return nil
		case models.StatusError:
			if strings.Contains(st.Message, alreadyFilledMsg) {
				log.Info("chased order left the book")
				r.report.Note = "order filled or canceled before modify"
				return nil
			}
			return &OrderRejected{Step: name, Index: 0, Msg: st.Message}
		case models.StatusResting:
			if st.Oid != 0 {
				oid = st.Oid
			}
		}
		if final {
			return nil
		}
		r.update(func(s *StrategyState) {
			s.Step = i + 1
			s.LastOid = oid
		})
		log.Debug("chase step")

		if err := sleep(ctx, t.clock, ChaseInterval); err != nil {
			return err
		}
	}
}
