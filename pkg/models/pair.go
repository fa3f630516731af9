package models

import (
	"math"
	"time"
)

// RatioSnapshot is the price ratio between the two legs of a pair trade.
type RatioSnapshot struct {
	Base      string
	Quote     string
	BasePx    float64
	QuotePx   float64
	Ratio     float64
	Timestamp time.Time
}

func NewRatioSnapshot(base, quote MarketSnapshot) RatioSnapshot {
	ratio := 0.0
	if quote.MarkPrice > 0 {
		ratio = math.Round(base.MarkPrice/quote.MarkPrice*100) / 100
	}
	return RatioSnapshot{
		Base:      base.Symbol,
		Quote:     quote.Symbol,
		BasePx:    base.MarkPrice,
		QuotePx:   quote.MarkPrice,
		Ratio:     ratio,
		Timestamp: time.Now(),
	}
}

type PairPhase string

const (
	PairIdle     PairPhase = "IDLE"
	PairWaiting  PairPhase = "WAITING"
	PairEntered  PairPhase = "ENTERED"
	PairUnwound  PairPhase = "UNWOUND"
	PairComplete PairPhase = "COMPLETE"
)
