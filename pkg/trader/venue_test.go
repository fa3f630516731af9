package trader

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/sirupsen/logrus"

	"github.com/gregtusar/perptrader/pkg/models"
	"github.com/gregtusar/perptrader/pkg/venue"
)

var testUniverse = []venue.UniverseEntry{
	{Name: "BTC", SzDecimals: 5},
	{Name: "ETH", SzDecimals: 4},
	{Name: "SOL", SzDecimals: 2},
}

type postedAction struct {
	Type     string                 `json:"type"`
	Orders   models.OrderBatch      `json:"orders"`
	Modifies []models.ModifyRequest `json:"modifies"`
	Cancels  []models.CancelRequest `json:"cancels"`
	Asset    uint32                 `json:"asset"`
	IsCross  bool                   `json:"isCross"`
	Leverage uint32                 `json:"leverage"`
}

// fakeVenue serves the info and exchange endpoints from in-memory state.
type fakeVenue struct {
	mu      sync.Mutex
	marks   map[string]float64
	state   models.AccountState
	open    []models.OpenOrder
	actions []postedAction
	nextOid uint64
	// respond overrides the per-item statuses for one action.
	respond func(n int, a postedAction) []models.OrderStatus
	// reject answers the whole batch with {"status":"err"}.
	reject string
}

func newFakeVenue() *fakeVenue {
	return &fakeVenue{
		marks:   map[string]float64{"BTC": 30000, "ETH": 2000, "SOL": 150},
		nextOid: 100,
	}
}

func (f *fakeVenue) setMark(symbol string, px float64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.marks[symbol] = px
}

func (f *fakeVenue) posted() []postedAction {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]postedAction(nil), f.actions...)
}

func (f *fakeVenue) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	switch r.URL.Path {
	case "/info":
		var req map[string]string
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.serveInfo(w, req["type"])
	case "/exchange":
		var env struct {
			Action postedAction `json:"action"`
			Nonce  uint64       `json:"nonce"`
		}
		if err := json.NewDecoder(r.Body).Decode(&env); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		f.actions = append(f.actions, env.Action)
		f.serveExchange(w, env.Action)
	default:
		http.NotFound(w, r)
	}
}

func (f *fakeVenue) serveInfo(w http.ResponseWriter, kind string) {
	var body interface{}
	switch kind {
	case "meta":
		body = venue.Meta{Universe: testUniverse}
	case "metaAndAssetCtxs":
		ctxs := make([]venue.AssetCtx, len(testUniverse))
		for i, u := range testUniverse {
			ctxs[i] = venue.AssetCtx{MarkPx: formatFloat(f.marks[u.Name])}
		}
		body = []interface{}{venue.Meta{Universe: testUniverse}, ctxs}
	case "clearinghouseState":
		body = f.state
	case "openOrders":
		body = f.open
	case "userFills":
		body = []models.Fill{}
	default:
		http.Error(w, "unknown info type", http.StatusBadRequest)
		return
	}
	json.NewEncoder(w).Encode(body)
}

func (f *fakeVenue) serveExchange(w http.ResponseWriter, a postedAction) {
	if f.reject != "" {
		json.NewEncoder(w).Encode(map[string]string{"status": "err", "response": f.reject})
		return
	}

	var statuses []models.OrderStatus
	if f.respond != nil {
		statuses = f.respond(len(f.actions), a)
	}
	if statuses == nil {
		statuses = f.defaultStatuses(a)
	}
	if a.Type == "updateLeverage" {
		json.NewEncoder(w).Encode(map[string]interface{}{"status": "ok", "response": map[string]string{"type": "default"}})
		return
	}
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "ok",
		"response": map[string]interface{}{
			"type": a.Type,
			"data": map[string]interface{}{"statuses": statuses},
		},
	})
}

// defaultStatuses fills IOC orders at the mark and rests everything else.
func (f *fakeVenue) defaultStatuses(a postedAction) []models.OrderStatus {
	var out []models.OrderStatus
	orderStatus := func(o models.OrderIntent) models.OrderStatus {
		f.nextOid++
		if o.OrderType.Limit != nil && o.OrderType.Limit.Tif == models.TifIoc {
			mark := f.marks[testUniverse[o.Asset].Name]
			return models.OrderStatus{Kind: models.StatusFilled, Oid: f.nextOid, TotalSz: o.Sz, AvgPx: formatFloat(mark)}
		}
		return models.OrderStatus{Kind: models.StatusResting, Oid: f.nextOid}
	}
	switch a.Type {
	case "order":
		for _, o := range a.Orders {
			out = append(out, orderStatus(o))
		}
	case "batchModify":
		for _, m := range a.Modifies {
			out = append(out, orderStatus(m.Order))
		}
	case "cancel":
		for range a.Cancels {
			out = append(out, models.OrderStatus{Kind: models.StatusSuccess, Message: "success"})
		}
	}
	return out
}

func formatFloat(x float64) string {
	b, _ := json.Marshal(x)
	return string(b)
}

// fakeClock advances instantly on every wait.
type fakeClock struct {
	mu      sync.Mutex
	now     time.Time
	sleeps  []time.Duration
	onSleep func(n int)
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) After(d time.Duration) <-chan time.Time {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.sleeps = append(c.sleeps, d)
	n := len(c.sleeps)
	now := c.now
	hook := c.onSleep
	c.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	ch := make(chan time.Time, 1)
	ch <- now
	return ch
}

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestTrader(t *testing.T, fv *fakeVenue, clock Clock, defaults Defaults) *Trader {
	t.Helper()
	srv := httptest.NewServer(fv)
	t.Cleanup(srv.Close)

	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	wallet, err := venue.NewWallet(hexutil.Encode(crypto.FromECDSA(key)))
	if err != nil {
		t.Fatal(err)
	}
	logger := quietLogger()
	client := venue.NewClient(srv.URL, logger, venue.WithRateLimit(0))
	nonces, err := venue.NewNonceSource(nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	signer := venue.NewSigner(wallet, venue.ExchangeDomain())
	info := venue.NewInfo(client, wallet.Address())
	exchange := venue.NewExchange(client, signer, nonces, logger)

	assets, err := venue.NewAssetTable(testUniverse)
	if err != nil {
		t.Fatal(err)
	}
	return New(assets, info, exchange, defaults, logger, WithClock(clock))
}

func position(coin, szi, entry string) models.AssetPosition {
	return models.AssetPosition{Type: "oneWay", Position: models.Position{Coin: coin, Szi: szi, EntryPx: entry}}
}

func orderOf(t *testing.T, a postedAction, i int) models.OrderIntent {
	t.Helper()
	if len(a.Orders) <= i {
		t.Fatalf("action %s has %d orders, want index %d", a.Type, len(a.Orders), i)
	}
	return a.Orders[i]
}
