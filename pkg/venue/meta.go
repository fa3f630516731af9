package venue

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/gregtusar/perptrader/pkg/models"
)

// AssetTable maps upper-case symbols to assets. It is built once at boot and
// only read afterwards.
type AssetTable struct {
	bySymbol map[string]models.Asset
}

// LoadAssets performs the one "meta" query and builds the table.
func LoadAssets(ctx context.Context, info *Info) (*AssetTable, error) {
	meta, err := info.Meta(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMetadataUnavailable, err)
	}
	return NewAssetTable(meta.Universe)
}

func NewAssetTable(universe []UniverseEntry) (*AssetTable, error) {
	if len(universe) == 0 {
		return nil, fmt.Errorf("%w: empty universe", ErrMetadataUnavailable)
	}
	t := &AssetTable{bySymbol: make(map[string]models.Asset, len(universe))}
	for i, u := range universe {
		sym := strings.ToUpper(u.Name)
		t.bySymbol[sym] = models.Asset{Symbol: sym, ID: uint32(i), SzDecimals: u.SzDecimals}
	}
	return t, nil
}

func (t *AssetTable) Lookup(symbol string) (models.Asset, error) {
	a, ok := t.bySymbol[strings.ToUpper(strings.TrimSpace(symbol))]
	if !ok {
		return models.Asset{}, fmt.Errorf("%w: %s", ErrUnknownAsset, symbol)
	}
	return a, nil
}

func (t *AssetTable) Len() int { return len(t.bySymbol) }

// Assets returns every asset ordered by id.
func (t *AssetTable) Assets() []models.Asset {
	out := make([]models.Asset, 0, len(t.bySymbol))
	for _, a := range t.bySymbol {
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
