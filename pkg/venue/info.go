package venue

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/gregtusar/perptrader/pkg/models"
)

type UniverseEntry struct {
	Name        string `json:"name"`
	SzDecimals  int32  `json:"szDecimals"`
	MaxLeverage int    `json:"maxLeverage,omitempty"`
}

type Meta struct {
	Universe []UniverseEntry `json:"universe"`
}

type AssetCtx struct {
	MarkPx       string `json:"markPx"`
	MidPx        string `json:"midPx"`
	OraclePx     string `json:"oraclePx"`
	Funding      string `json:"funding"`
	OpenInterest string `json:"openInterest"`
}

// Info issues unauthenticated queries against the info endpoint on behalf of
// one user address.
type Info struct {
	client *Client
	user   common.Address
}

func NewInfo(client *Client, user common.Address) *Info {
	return &Info{client: client, user: user}
}

func (i *Info) User() common.Address { return i.user }

func (i *Info) Meta(ctx context.Context) (*Meta, error) {
	var meta Meta
	if err := i.client.Info(ctx, map[string]string{"type": "meta"}, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

func (i *Info) MetaAndAssetCtxs(ctx context.Context) (*Meta, []AssetCtx, error) {
	var raw []json.RawMessage
	if err := i.client.Info(ctx, map[string]string{"type": "metaAndAssetCtxs"}, &raw); err != nil {
		return nil, nil, err
	}
	if len(raw) != 2 {
		return nil, nil, fmt.Errorf("%w: metaAndAssetCtxs has %d parts", ErrMalformedJSON, len(raw))
	}
	var meta Meta
	if err := json.Unmarshal(raw[0], &meta); err != nil {
		return nil, nil, fmt.Errorf("%w: meta: %v", ErrMalformedJSON, err)
	}
	var ctxs []AssetCtx
	if err := json.Unmarshal(raw[1], &ctxs); err != nil {
		return nil, nil, fmt.Errorf("%w: asset ctxs: %v", ErrMalformedJSON, err)
	}
	return &meta, ctxs, nil
}

// Marks returns the current mark price of every listed asset keyed by symbol.
func (i *Info) Marks(ctx context.Context) (map[string]float64, error) {
	meta, ctxs, err := i.MetaAndAssetCtxs(ctx)
	if err != nil {
		return nil, err
	}
	marks := make(map[string]float64, len(ctxs))
	for idx, c := range ctxs {
		if idx >= len(meta.Universe) {
			break
		}
		px, err := strconv.ParseFloat(c.MarkPx, 64)
		if err != nil {
			continue
		}
		marks[strings.ToUpper(meta.Universe[idx].Name)] = px
	}
	return marks, nil
}

// Snapshot fetches fresh marks for the given symbols in one request.
func (i *Info) Snapshot(ctx context.Context, symbols ...string) ([]models.MarketSnapshot, error) {
	marks, err := i.Marks(ctx)
	if err != nil {
		return nil, err
	}
	now := time.Now()
	out := make([]models.MarketSnapshot, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(s)
		px, ok := marks[s]
		if !ok || px <= 0 {
			return nil, fmt.Errorf("%w: no mark for %s", ErrUnknownAsset, s)
		}
		out = append(out, models.MarketSnapshot{Symbol: s, MarkPrice: px, Timestamp: now})
	}
	return out, nil
}

func (i *Info) Mark(ctx context.Context, symbol string) (models.MarketSnapshot, error) {
	snaps, err := i.Snapshot(ctx, symbol)
	if err != nil {
		return models.MarketSnapshot{}, err
	}
	return snaps[0], nil
}

func (i *Info) userQuery(kind string) map[string]string {
	return map[string]string{"type": kind, "user": i.user.Hex()}
}

func (i *Info) AccountState(ctx context.Context) (*models.AccountState, error) {
	var state models.AccountState
	if err := i.client.Info(ctx, i.userQuery("clearinghouseState"), &state); err != nil {
		return nil, err
	}
	return &state, nil
}

func (i *Info) OpenOrders(ctx context.Context) ([]models.OpenOrder, error) {
	var orders []models.OpenOrder
	if err := i.client.Info(ctx, i.userQuery("openOrders"), &orders); err != nil {
		return nil, err
	}
	return orders, nil
}

func (i *Info) UserFills(ctx context.Context) ([]models.Fill, error) {
	var fills []models.Fill
	if err := i.client.Info(ctx, i.userQuery("userFills"), &fills); err != nil {
		return nil, err
	}
	return fills, nil
}
