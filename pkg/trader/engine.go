package trader

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/gregtusar/perptrader/pkg/models"
	"github.com/gregtusar/perptrader/pkg/numeric"
	"github.com/gregtusar/perptrader/pkg/venue"
)

const (
	// SlippageCap bounds market orders, which are sent as IOC limits.
	SlippageCap = 0.03

	ChaseOffset      = 0.01
	ChaseInterval    = 5 * time.Second
	ChaseMaxIter     = 100
	ChaseDeadline    = 60 * time.Second
	PairPollInterval = 5 * time.Second
)

// alreadyFilledMsg is the modify error the venue returns for an order that
// left the book. A chase treats it as a fill.
const alreadyFilledMsg = "Cannot modify canceled or filled order"

type SizeType string

const (
	SizeTypeNotional SizeType = "notional"
	SizeTypeRisk     SizeType = "risk"
)

// Defaults are the operator's configured fallbacks.
type Defaults struct {
	Margin   models.MarginType
	SizeType SizeType
	Size     string
	Asset    string
}

// Trader turns operator intents into signed submissions. It holds no global
// state; everything a strategy needs is reachable from here.
type Trader struct {
	assets   *venue.AssetTable
	info     *venue.Info
	exchange *venue.Exchange
	registry *Registry
	clock    Clock
	defaults Defaults
	logger   *logrus.Logger
}

type Option func(*Trader)

func WithClock(c Clock) Option {
	return func(t *Trader) { t.clock = c }
}

func WithRegistry(r *Registry) Option {
	return func(t *Trader) { t.registry = r }
}

func New(assets *venue.AssetTable, info *venue.Info, exchange *venue.Exchange, defaults Defaults, logger *logrus.Logger, opts ...Option) *Trader {
	if defaults.Margin == "" {
		defaults.Margin = models.MarginCross
	}
	if defaults.SizeType == "" {
		defaults.SizeType = SizeTypeNotional
	}
	t := &Trader{
		assets:   assets,
		info:     info,
		exchange: exchange,
		registry: NewRegistry(),
		clock:    RealClock{},
		defaults: defaults,
		logger:   logger,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *Trader) Registry() *Registry { return t.registry }

func (t *Trader) Info() *venue.Info { return t.info }

func (t *Trader) Assets() *venue.AssetTable { return t.assets }

func (t *Trader) asset(symbol string) (models.Asset, error) {
	if symbol == "" {
		symbol = t.defaults.Asset
	}
	if symbol == "" {
		return models.Asset{}, inputErr("asset", "", "no asset given and no default configured")
	}
	a, err := t.assets.Lookup(symbol)
	if err != nil {
		return models.Asset{}, inputErr("asset", symbol, "not listed on the venue")
	}
	return a, nil
}

func (t *Trader) sizeSpec(s string) (SizeSpec, error) {
	if s == "" {
		s = t.defaults.Size
	}
	return ParseSize(s)
}

// notional resolves a size spec to an amount in quote currency.
func (t *Trader) notional(ctx context.Context, spec SizeSpec) (float64, error) {
	if spec.Kind == SizeNotional {
		return spec.Value, nil
	}
	state, err := t.info.AccountState(ctx)
	if err != nil {
		return 0, err
	}
	value := state.AccountValue(t.defaults.Margin)
	if value <= 0 {
		return 0, &InvariantViolation{Msg: fmt.Sprintf("account value is %v, cannot size %s", value, spec)}
	}
	return value * spec.Value / 100, nil
}

// marketPrice is the IOC limit standing in for a market order.
func marketPrice(mark float64, side models.OrderSide) float64 {
	return mark * (1 + side.Sign()*SlippageCap)
}

func limitOrder(asset models.Asset, side models.OrderSide, px, sz float64, tif models.TimeInForce, reduceOnly bool) (models.OrderIntent, error) {
	pxStr, err := numeric.FormatPrice(px, asset.SzDecimals)
	if err != nil {
		return models.OrderIntent{}, err
	}
	szStr, err := numeric.FormatSize(sz, asset.SzDecimals)
	if err != nil {
		return models.OrderIntent{}, err
	}
	return models.OrderIntent{
		Asset:      asset.ID,
		IsBuy:      side.IsBuy(),
		LimitPx:    pxStr,
		Sz:         szStr,
		ReduceOnly: reduceOnly,
		OrderType:  models.LimitType(tif),
	}, nil
}

// triggerOrder is a reduce-only market trigger. sz is already normalized.
func triggerOrder(asset models.Asset, side models.OrderSide, triggerPx float64, sz string, tpsl models.TPSL) (models.OrderIntent, error) {
	pxStr, err := numeric.FormatPrice(triggerPx, asset.SzDecimals)
	if err != nil {
		return models.OrderIntent{}, err
	}
	return models.OrderIntent{
		Asset:      asset.ID,
		IsBuy:      side.IsBuy(),
		LimitPx:    pxStr,
		Sz:         sz,
		ReduceOnly: true,
		OrderType:  models.TriggerType(pxStr, true, tpsl),
	}, nil
}

// TriggerPrice applies a TP/SL spec to the entry of a position on side.
// Take-profits sit above a long's entry and below a short's; stop-losses
// mirror that.
func TriggerPrice(spec TriggerSpec, kind models.TPSL, side models.OrderSide, entry float64) float64 {
	dir := side.Sign()
	if kind == models.TPSLStopLoss {
		dir = -dir
	}
	switch spec.Kind {
	case TriggerPercent:
		return entry * (1 + dir*spec.Value/100)
	case TriggerAbsolute:
		return entry + dir*spec.Value
	default:
		return spec.Value
	}
}

// Step is one submission made by a strategy, with the venue's verdicts.
type Step struct {
	Name     string
	Orders   models.OrderBatch
	Statuses []models.OrderStatus
}

// Report collects every outcome of one intent, including those that preceded
// a failure.
type Report struct {
	ID       string
	Strategy string
	Asset    string
	Steps    []Step
	Note     string
}

// Filled sums filled base size across all steps.
func (r *Report) Filled() float64 {
	var total float64
	for _, s := range r.Steps {
		for _, st := range s.Statuses {
			if st.Kind == models.StatusFilled {
				sz, _ := numeric.Parse(st.TotalSz)
				total += sz
			}
		}
	}
	return total
}

// Orders counts submitted orders across all steps.
func (r *Report) Orders() int {
	n := 0
	for _, s := range r.Steps {
		n += len(s.Orders)
	}
	return n
}

// run binds a strategy's registry entry, report and log fields.
type run struct {
	t      *Trader
	id     string
	report *Report
	log    *logrus.Entry
}

func (t *Trader) begin(kind, asset string, steps int) *run {
	id := t.registry.start(kind, asset, steps, t.clock.Now())
	return &run{
		t:      t,
		id:     id,
		report: &Report{ID: id, Strategy: kind, Asset: asset},
		log: t.logger.WithFields(logrus.Fields{
			"strategy": kind,
			"asset":    asset,
			"run":      id,
		}),
	}
}

func (r *run) end() { r.t.registry.finish(r.id) }

func (r *run) update(fn func(*StrategyState)) {
	r.t.registry.update(r.id, r.t.clock.Now(), fn)
}

// record adds a step and returns the first per-order rejection, if any.
func (r *run) record(name string, batch models.OrderBatch, statuses []models.OrderStatus) error {
	r.report.Steps = append(r.report.Steps, Step{Name: name, Orders: batch, Statuses: statuses})

	var rejected error
	var fills []models.OrderStatus
	var lastOid uint64
	for i, st := range statuses {
		switch st.Kind {
		case models.StatusFilled:
			fills = append(fills, st)
			lastOid = st.Oid
		case models.StatusResting:
			lastOid = st.Oid
		case models.StatusError:
			r.log.WithFields(logrus.Fields{"step": name, "index": i}).Warn(st.Message)
			if rejected == nil {
				rejected = &OrderRejected{Step: name, Index: i, Msg: st.Message}
			}
		}
	}
	r.update(func(s *StrategyState) {
		s.Fills = append(s.Fills, fills...)
		if lastOid != 0 {
			s.LastOid = lastOid
		}
	})
	return rejected
}

// place submits one batch. Submissions are never pipelined: each call waits
// for the venue's answer.
func (r *run) place(ctx context.Context, name string, batch models.OrderBatch) ([]models.OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	statuses, err := r.t.exchange.PlaceOrders(ctx, batch)
	if err != nil {
		r.log.WithError(err).WithField("step", name).Error("submission failed")
		return nil, err
	}
	r.log.WithFields(logrus.Fields{"step": name, "orders": len(batch)}).Info("submitted")
	return statuses, r.record(name, batch, statuses)
}

func (r *run) modify(ctx context.Context, name string, mods []models.ModifyRequest) ([]models.OrderStatus, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	statuses, err := r.t.exchange.ModifyOrders(ctx, mods)
	if err != nil {
		r.log.WithError(err).WithField("step", name).Error("modify failed")
		return nil, err
	}
	batch := make(models.OrderBatch, len(mods))
	for i, m := range mods {
		batch[i] = m.Order
	}
	r.report.Steps = append(r.report.Steps, Step{Name: name, Orders: batch, Statuses: statuses})
	return statuses, nil
}
