package venue

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"

	"github.com/gregtusar/perptrader/pkg/models"
	"github.com/gregtusar/perptrader/pkg/numeric"
)

// Order-type codes bound into the connection id. Changing any of these makes
// the venue reject every signature.
const (
	codeLimitAlo        uint16 = 1
	codeLimitGtc        uint16 = 2
	codeLimitIoc        uint16 = 3
	codeTriggerMarketTP uint16 = 4
	codeTriggerLimitTP  uint16 = 5
	codeTriggerMarketSL uint16 = 6
	codeTriggerLimitSL  uint16 = 7
)

const (
	groupingNA   int32 = 0
	groupingWire       = "na"
)

var orderComponents = []abi.ArgumentMarshaling{
	{Name: "asset", Type: "uint32"},
	{Name: "isBuy", Type: "bool"},
	{Name: "limitPx", Type: "uint64"},
	{Name: "sz", Type: "uint64"},
	{Name: "reduceOnly", Type: "bool"},
	{Name: "orderType", Type: "uint16"},
	{Name: "triggerPx", Type: "uint64"},
}

var (
	addressType = mustType("address", nil)
	nonceType   = mustType("uint128", nil)

	orderArgs = abi.Arguments{
		{Type: mustType("tuple[]", orderComponents)},
		{Type: mustType("int32", nil)},
		{Type: addressType},
		{Type: nonceType},
	}
	modifyArgs = abi.Arguments{
		{Type: mustType("tuple[]", append([]abi.ArgumentMarshaling{{Name: "oid", Type: "uint64"}}, orderComponents...))},
		{Type: addressType},
		{Type: nonceType},
	}
	cancelArgs = abi.Arguments{
		{Type: mustType("tuple[]", []abi.ArgumentMarshaling{
			{Name: "asset", Type: "uint32"},
			{Name: "oid", Type: "uint64"},
		})},
		{Type: addressType},
		{Type: nonceType},
	}
	leverageArgs = abi.Arguments{
		{Type: mustType("uint32", nil)},
		{Type: mustType("bool", nil)},
		{Type: mustType("uint32", nil)},
		{Type: addressType},
		{Type: nonceType},
	}
)

func mustType(t string, components []abi.ArgumentMarshaling) abi.Type {
	typ, err := abi.NewType(t, "", components)
	if err != nil {
		panic(fmt.Errorf("abi type %s: %w", t, err))
	}
	return typ
}

type orderTuple struct {
	Asset      uint32
	IsBuy      bool
	LimitPx    uint64
	Sz         uint64
	ReduceOnly bool
	OrderType  uint16
	TriggerPx  uint64
}

type modifyTuple struct {
	Oid        uint64
	Asset      uint32
	IsBuy      bool
	LimitPx    uint64
	Sz         uint64
	ReduceOnly bool
	OrderType  uint16
	TriggerPx  uint64
}

type cancelTuple struct {
	Asset uint32
	Oid   uint64
}

// OrderTypeCode returns the (tag, extra) pair for an order type.
func OrderTypeCode(t models.OrderType) (uint16, uint64, error) {
	switch {
	case t.Limit != nil && t.Trigger == nil:
		switch t.Limit.Tif {
		case models.TifAlo:
			return codeLimitAlo, 0, nil
		case models.TifGtc:
			return codeLimitGtc, 0, nil
		case models.TifIoc:
			return codeLimitIoc, 0, nil
		}
		return 0, 0, fmt.Errorf("unknown time in force %q", t.Limit.Tif)
	case t.Trigger != nil && t.Limit == nil:
		extra, err := numeric.EncodeWire(t.Trigger.TriggerPx)
		if err != nil {
			return 0, 0, fmt.Errorf("trigger price: %w", err)
		}
		switch {
		case t.Trigger.Tpsl == models.TPSLTakeProfit && t.Trigger.IsMarket:
			return codeTriggerMarketTP, extra, nil
		case t.Trigger.Tpsl == models.TPSLTakeProfit:
			return codeTriggerLimitTP, extra, nil
		case t.Trigger.Tpsl == models.TPSLStopLoss && t.Trigger.IsMarket:
			return codeTriggerMarketSL, extra, nil
		case t.Trigger.Tpsl == models.TPSLStopLoss:
			return codeTriggerLimitSL, extra, nil
		}
		return 0, 0, fmt.Errorf("unknown tpsl %q", t.Trigger.Tpsl)
	}
	return 0, 0, fmt.Errorf("order type must be exactly one of limit or trigger")
}

func toOrderTuple(o models.OrderIntent) (orderTuple, error) {
	px, err := numeric.EncodeWire(o.LimitPx)
	if err != nil {
		return orderTuple{}, fmt.Errorf("limit price: %w", err)
	}
	sz, err := numeric.EncodeWire(o.Sz)
	if err != nil {
		return orderTuple{}, fmt.Errorf("size: %w", err)
	}
	tag, extra, err := OrderTypeCode(o.OrderType)
	if err != nil {
		return orderTuple{}, err
	}
	return orderTuple{
		Asset:      o.Asset,
		IsBuy:      o.IsBuy,
		LimitPx:    px,
		Sz:         sz,
		ReduceOnly: o.ReduceOnly,
		OrderType:  tag,
		TriggerPx:  extra,
	}, nil
}

// EncodeOrderBatch is the ABI encoding hashed into an order connection id.
func EncodeOrderBatch(batch models.OrderBatch, vault common.Address, nonce uint64) ([]byte, error) {
	tuples := make([]orderTuple, 0, len(batch))
	for i, o := range batch {
		t, err := toOrderTuple(o)
		if err != nil {
			return nil, fmt.Errorf("order %d: %w", i, err)
		}
		tuples = append(tuples, t)
	}
	return orderArgs.Pack(tuples, groupingNA, vault, new(big.Int).SetUint64(nonce))
}

func OrderConnectionID(batch models.OrderBatch, vault common.Address, nonce uint64) (common.Hash, error) {
	packed, err := EncodeOrderBatch(batch, vault, nonce)
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

func ModifyConnectionID(mods []models.ModifyRequest, vault common.Address, nonce uint64) (common.Hash, error) {
	tuples := make([]modifyTuple, 0, len(mods))
	for i, m := range mods {
		t, err := toOrderTuple(m.Order)
		if err != nil {
			return common.Hash{}, fmt.Errorf("modify %d: %w", i, err)
		}
		tuples = append(tuples, modifyTuple{
			Oid:        m.Oid,
			Asset:      t.Asset,
			IsBuy:      t.IsBuy,
			LimitPx:    t.LimitPx,
			Sz:         t.Sz,
			ReduceOnly: t.ReduceOnly,
			OrderType:  t.OrderType,
			TriggerPx:  t.TriggerPx,
		})
	}
	packed, err := modifyArgs.Pack(tuples, vault, new(big.Int).SetUint64(nonce))
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

func CancelConnectionID(cancels []models.CancelRequest, vault common.Address, nonce uint64) (common.Hash, error) {
	tuples := make([]cancelTuple, 0, len(cancels))
	for _, c := range cancels {
		tuples = append(tuples, cancelTuple{Asset: c.Asset, Oid: c.Oid})
	}
	packed, err := cancelArgs.Pack(tuples, vault, new(big.Int).SetUint64(nonce))
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

func LeverageConnectionID(asset uint32, cross bool, leverage uint32, vault common.Address, nonce uint64) (common.Hash, error) {
	packed, err := leverageArgs.Pack(asset, cross, leverage, vault, new(big.Int).SetUint64(nonce))
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

type OrderAction struct {
	Type     string            `json:"type"`
	Grouping string            `json:"grouping"`
	Orders   models.OrderBatch `json:"orders"`
}

type ModifyAction struct {
	Type     string                 `json:"type"`
	Modifies []models.ModifyRequest `json:"modifies"`
}

type CancelAction struct {
	Type    string                 `json:"type"`
	Cancels []models.CancelRequest `json:"cancels"`
}

type LeverageAction struct {
	Type     string `json:"type"`
	Asset    uint32 `json:"asset"`
	IsCross  bool   `json:"isCross"`
	Leverage uint32 `json:"leverage"`
}

// Envelope is the body posted to the exchange endpoint.
type Envelope struct {
	Action       interface{} `json:"action"`
	Nonce        uint64      `json:"nonce"`
	Signature    Signature   `json:"signature"`
	VaultAddress string      `json:"vaultAddress,omitempty"`
}
