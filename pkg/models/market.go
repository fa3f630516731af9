package models

import (
	"strconv"
	"strings"
	"time"
)

// Asset is one entry of the venue's perp universe. ID is the index in the
// universe list.
type Asset struct {
	Symbol     string
	ID         uint32
	SzDecimals int32
}

// MarketSnapshot is a point-in-time mark for one asset.
type MarketSnapshot struct {
	Symbol    string
	MarkPrice float64
	Timestamp time.Time
}

type MarginType string

const (
	MarginCross    MarginType = "cross"
	MarginIsolated MarginType = "isolated"
)

type Leverage struct {
	Type  MarginType `json:"type"`
	Value int        `json:"value"`
}

// Position mirrors the venue's assetPositions[].position object. Szi is signed:
// positive is long, negative is short.
type Position struct {
	Coin           string   `json:"coin"`
	Szi            string   `json:"szi"`
	EntryPx        string   `json:"entryPx"`
	PositionValue  string   `json:"positionValue"`
	UnrealizedPnl  string   `json:"unrealizedPnl"`
	ReturnOnEquity string   `json:"returnOnEquity"`
	LiquidationPx  string   `json:"liquidationPx"`
	MarginUsed     string   `json:"marginUsed"`
	Leverage       Leverage `json:"leverage"`
}

func (p Position) Size() float64 {
	return parseOrZero(p.Szi)
}

func (p Position) Entry() float64 {
	return parseOrZero(p.EntryPx)
}

func (p Position) PnL() float64 {
	return parseOrZero(p.UnrealizedPnl)
}

func (p Position) Side() OrderSide {
	if p.Size() < 0 {
		return OrderSideSell
	}
	return OrderSideBuy
}

type AssetPosition struct {
	Position Position `json:"position"`
	Type     string   `json:"type"`
}

type MarginSummary struct {
	AccountValue    string `json:"accountValue"`
	TotalNtlPos     string `json:"totalNtlPos"`
	TotalRawUsd     string `json:"totalRawUsd"`
	TotalMarginUsed string `json:"totalMarginUsed"`
}

func (m MarginSummary) Value() float64 {
	return parseOrZero(m.AccountValue)
}

// AccountState is the clearinghouseState response.
type AccountState struct {
	AssetPositions     []AssetPosition `json:"assetPositions"`
	MarginSummary      MarginSummary   `json:"marginSummary"`
	CrossMarginSummary MarginSummary   `json:"crossMarginSummary"`
	Withdrawable       string          `json:"withdrawable"`
}

// AccountValue picks the summary matching the margin mode.
func (a AccountState) AccountValue(margin MarginType) float64 {
	if margin == MarginCross {
		return a.CrossMarginSummary.Value()
	}
	return a.MarginSummary.Value()
}

func (a AccountState) PositionFor(coin string) (Position, bool) {
	for _, ap := range a.AssetPositions {
		if strings.EqualFold(ap.Position.Coin, coin) && ap.Position.Size() != 0 {
			return ap.Position, true
		}
	}
	return Position{}, false
}

func (a AccountState) TotalPnL() float64 {
	var total float64
	for _, ap := range a.AssetPositions {
		total += ap.Position.PnL()
	}
	return total
}

type OpenOrder struct {
	Coin      string `json:"coin"`
	LimitPx   string `json:"limitPx"`
	Oid       uint64 `json:"oid"`
	Side      string `json:"side"`
	Sz        string `json:"sz"`
	Timestamp int64  `json:"timestamp"`
}

// IsBuy reports the venue's "B" (bid) side.
func (o OpenOrder) IsBuy() bool { return o.Side == "B" }

type Fill struct {
	Coin      string `json:"coin"`
	Px        string `json:"px"`
	Sz        string `json:"sz"`
	Side      string `json:"side"`
	Time      int64  `json:"time"`
	Dir       string `json:"dir"`
	ClosedPnl string `json:"closedPnl"`
	Oid       uint64 `json:"oid"`
	Fee       string `json:"fee"`
}

func parseOrZero(s string) float64 {
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}
