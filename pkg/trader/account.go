package trader

import (
	"context"
	"fmt"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/gregtusar/perptrader/pkg/models"
)

// Cancel removes one resting order.
func (t *Trader) Cancel(ctx context.Context, symbol string, oid uint64) (*Report, error) {
	asset, err := t.asset(symbol)
	if err != nil {
		return nil, err
	}
	if oid == 0 {
		return nil, inputErr("oid", "0", "must be positive")
	}

	r := t.begin("cancel", asset.Symbol, 1)
	defer r.end()

	statuses, err := t.exchange.CancelOrders(ctx, []models.CancelRequest{{Asset: asset.ID, Oid: oid}})
	if err != nil {
		return r.report, err
	}
	r.report.Steps = append(r.report.Steps, Step{
		Name:     "cancel " + strconv.FormatUint(oid, 10),
		Statuses: statuses,
	})
	if statuses[0].Kind == models.StatusError {
		return r.report, &OrderRejected{Step: "cancel", Index: 0, Msg: statuses[0].Message}
	}
	return r.report, nil
}

// SetLeverage updates leverage for one asset. An empty margin falls back to
// the configured default.
func (t *Trader) SetLeverage(ctx context.Context, symbol string, leverage int, margin models.MarginType) error {
	asset, err := t.asset(symbol)
	if err != nil {
		return err
	}
	if leverage < 1 {
		return inputErr("leverage", strconv.Itoa(leverage), "must be at least 1")
	}
	if margin == "" {
		margin = t.defaults.Margin
	}
	if margin != models.MarginCross && margin != models.MarginIsolated {
		return inputErr("margin", string(margin), "want cross or isolated")
	}
	if err := t.exchange.UpdateLeverage(ctx, asset.ID, uint32(leverage), margin == models.MarginCross); err != nil {
		return err
	}
	t.logger.WithField("asset", asset.Symbol).WithField("leverage", fmt.Sprintf("%dx %s", leverage, margin)).Info("leverage updated")
	return nil
}

// Summary is the account as the venue reports it.
type Summary struct {
	State      *models.AccountState
	OpenOrders []models.OpenOrder
	Margin     models.MarginType
}

func (s Summary) AccountValue() float64 { return s.State.AccountValue(s.Margin) }

// Summary fetches account state and open orders concurrently.
func (t *Trader) Summary(ctx context.Context) (*Summary, error) {
	out := &Summary{Margin: t.defaults.Margin}
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		state, err := t.info.AccountState(gctx)
		if err != nil {
			return fmt.Errorf("account state: %w", err)
		}
		out.State = state
		return nil
	})
	g.Go(func() error {
		orders, err := t.info.OpenOrders(gctx)
		if err != nil {
			return fmt.Errorf("open orders: %w", err)
		}
		out.OpenOrders = orders
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}
