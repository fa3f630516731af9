package models

import (
	"encoding/json"
	"fmt"
)

type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

func (s OrderSide) IsBuy() bool { return s == OrderSideBuy }

func (s OrderSide) Opposite() OrderSide {
	if s == OrderSideBuy {
		return OrderSideSell
	}
	return OrderSideBuy
}

// Sign is +1 for buys and -1 for sells.
func (s OrderSide) Sign() float64 {
	if s == OrderSideBuy {
		return 1
	}
	return -1
}

func ParseSide(s string) (OrderSide, error) {
	switch s {
	case "buy", "BUY", "long":
		return OrderSideBuy, nil
	case "sell", "SELL", "short":
		return OrderSideSell, nil
	}
	return "", fmt.Errorf("unknown side %q", s)
}

// TimeInForce values use the venue's wire spelling.
type TimeInForce string

const (
	TifGtc TimeInForce = "Gtc"
	TifAlo TimeInForce = "Alo"
	TifIoc TimeInForce = "Ioc"
)

type TPSL string

const (
	TPSLTakeProfit TPSL = "tp"
	TPSLStopLoss   TPSL = "sl"
)

type LimitOrderType struct {
	Tif TimeInForce `json:"tif"`
}

type TriggerOrderType struct {
	TriggerPx string `json:"triggerPx"`
	IsMarket  bool   `json:"isMarket"`
	Tpsl      TPSL   `json:"tpsl"`
}

// OrderType is exactly one of Limit or Trigger.
type OrderType struct {
	Limit   *LimitOrderType   `json:"limit,omitempty"`
	Trigger *TriggerOrderType `json:"trigger,omitempty"`
}

func LimitType(tif TimeInForce) OrderType {
	return OrderType{Limit: &LimitOrderType{Tif: tif}}
}

func TriggerType(triggerPx string, isMarket bool, tpsl TPSL) OrderType {
	return OrderType{Trigger: &TriggerOrderType{TriggerPx: triggerPx, IsMarket: isMarket, Tpsl: tpsl}}
}

func (t OrderType) String() string {
	switch {
	case t.Limit != nil:
		return "limit/" + string(t.Limit.Tif)
	case t.Trigger != nil:
		kind := "limit"
		if t.Trigger.IsMarket {
			kind = "market"
		}
		return fmt.Sprintf("trigger/%s/%s@%s", t.Trigger.Tpsl, kind, t.Trigger.TriggerPx)
	}
	return "unknown"
}

// OrderIntent is a validated order in wire form. LimitPx and Sz are already
// normalized decimal strings.
type OrderIntent struct {
	Asset      uint32    `json:"asset"`
	IsBuy      bool      `json:"isBuy"`
	LimitPx    string    `json:"limitPx"`
	Sz         string    `json:"sz"`
	ReduceOnly bool      `json:"reduceOnly"`
	OrderType  OrderType `json:"orderType"`
}

func (o OrderIntent) Side() OrderSide {
	if o.IsBuy {
		return OrderSideBuy
	}
	return OrderSideSell
}

// OrderBatch is submitted atomically under one nonce and one signature.
type OrderBatch []OrderIntent

// ModifyRequest replaces the resting order Oid with Order.
type ModifyRequest struct {
	Oid   uint64      `json:"oid"`
	Order OrderIntent `json:"order"`
}

type CancelRequest struct {
	Asset uint32 `json:"asset"`
	Oid   uint64 `json:"oid"`
}

type StatusKind string

const (
	StatusFilled  StatusKind = "filled"
	StatusResting StatusKind = "resting"
	StatusError   StatusKind = "error"
	// StatusSuccess is the bare acknowledgement used by cancels.
	StatusSuccess StatusKind = "success"
)

// OrderStatus is the venue's per-order verdict, in submission order.
type OrderStatus struct {
	Kind    StatusKind
	Oid     uint64
	TotalSz string
	AvgPx   string
	Message string
}

func (s OrderStatus) String() string {
	switch s.Kind {
	case StatusFilled:
		return fmt.Sprintf("filled oid=%d sz=%s avg=%s", s.Oid, s.TotalSz, s.AvgPx)
	case StatusResting:
		return fmt.Sprintf("resting oid=%d", s.Oid)
	case StatusSuccess:
		return s.Message
	default:
		return "error: " + s.Message
	}
}

type filledWire struct {
	Oid     uint64 `json:"oid"`
	TotalSz string `json:"totalSz"`
	AvgPx   string `json:"avgPx"`
}

type restingWire struct {
	Oid uint64 `json:"oid"`
}

// UnmarshalJSON accepts {"filled":{...}}, {"resting":{...}}, {"error":"msg"}
// and the bare string "success" the venue returns for cancels.
func (s *OrderStatus) UnmarshalJSON(data []byte) error {
	var bare string
	if err := json.Unmarshal(data, &bare); err == nil {
		*s = OrderStatus{Kind: StatusSuccess, Message: bare}
		return nil
	}
	var raw struct {
		Filled  *filledWire  `json:"filled"`
		Resting *restingWire `json:"resting"`
		Error   *string      `json:"error"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch {
	case raw.Filled != nil:
		*s = OrderStatus{Kind: StatusFilled, Oid: raw.Filled.Oid, TotalSz: raw.Filled.TotalSz, AvgPx: raw.Filled.AvgPx}
	case raw.Resting != nil:
		*s = OrderStatus{Kind: StatusResting, Oid: raw.Resting.Oid}
	case raw.Error != nil:
		*s = OrderStatus{Kind: StatusError, Message: *raw.Error}
	default:
		return fmt.Errorf("unrecognized order status %s", string(data))
	}
	return nil
}

func (s OrderStatus) MarshalJSON() ([]byte, error) {
	switch s.Kind {
	case StatusFilled:
		return json.Marshal(map[string]filledWire{"filled": {Oid: s.Oid, TotalSz: s.TotalSz, AvgPx: s.AvgPx}})
	case StatusResting:
		return json.Marshal(map[string]restingWire{"resting": {Oid: s.Oid}})
	case StatusSuccess:
		return json.Marshal(s.Message)
	default:
		return json.Marshal(map[string]string{"error": s.Message})
	}
}
