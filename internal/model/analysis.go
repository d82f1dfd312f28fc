package model

import (
	"time"

	"github.com/guregu/null/v6"
)

// MACDValue holds the latest MACD line, signal and histogram.
type MACDValue struct {
	Line      null.Float `json:"line"`
	Signal    null.Float `json:"signal"`
	Histogram null.Float `json:"histogram"`
}

// BollingerValue holds the latest Bollinger band levels.
type BollingerValue struct {
	Upper  null.Float `json:"upper"`
	Middle null.Float `json:"middle"`
	Lower  null.Float `json:"lower"`
}

// StochasticValue holds the latest %K and %D.
type StochasticValue struct {
	K null.Float `json:"k"`
	D null.Float `json:"d"`
}

// IndicatorSnapshot is the most recent value of each indicator for a symbol.
// A field that could not be computed from the input window is null.
type IndicatorSnapshot struct {
	Symbol     string          `json:"symbol"`
	AsOf       time.Time       `json:"asOf"`
	SMA20      null.Float      `json:"sma20"`
	SMA50      null.Float      `json:"sma50"`
	EMA12      null.Float      `json:"ema12"`
	EMA26      null.Float      `json:"ema26"`
	RSI14      null.Float      `json:"rsi14"`
	MACD       MACDValue       `json:"macd"`
	Bollinger  BollingerValue  `json:"bollinger"`
	Stochastic StochasticValue `json:"stochastic"`
	ATR14      null.Float      `json:"atr14"`
	OBV        null.Float      `json:"obv"`
}

// SentimentLabel is the bucketed sentiment.
type SentimentLabel string

const (
	Bearish         SentimentLabel = "Bearish"
	SlightlyBearish SentimentLabel = "Slightly Bearish"
	Neutral         SentimentLabel = "Neutral"
	SlightlyBullish SentimentLabel = "Slightly Bullish"
	Bullish         SentimentLabel = "Bullish"
)

// Direction is the directional reading of a single signal.
type Direction string

const (
	DirectionBullish Direction = "Bullish"
	DirectionBearish Direction = "Bearish"
	DirectionNeutral Direction = "Neutral"
)

// Signal is one contribution to a sentiment score.
type Signal struct {
	Indicator      string    `json:"indicator"`
	Direction      Direction `json:"direction"`
	Value          float64   `json:"value"`
	Weight         float64   `json:"weight"`
	Interpretation string    `json:"interpretation"`
}

// SentimentReport is the composite sentiment for a symbol.
type SentimentReport struct {
	Symbol   string         `json:"symbol"`
	Label    SentimentLabel `json:"label"`
	Score    float64        `json:"score"`
	RawScore float64        `json:"rawScore"`
	Signals  []Signal       `json:"signals"`
	AsOf     time.Time      `json:"asOf"`
}

// PeriodReturns holds trailing percentage returns.
type PeriodReturns struct {
	Day   null.Float `json:"day"`
	Week  null.Float `json:"week"`
	Month null.Float `json:"month"`
}

// TradingMetrics are range, volume, volatility and beta statistics.
type TradingMetrics struct {
	Symbol                 string        `json:"symbol"`
	High52w                null.Float    `json:"high52w"`
	Low52w                 null.Float    `json:"low52w"`
	DistanceFromHighPct    null.Float    `json:"distanceFromHighPct"`
	DistanceFromLowPct     null.Float    `json:"distanceFromLowPct"`
	AverageVolume          null.Float    `json:"averageVolume"`
	AverageVolumeFormatted string        `json:"averageVolumeFormatted,omitempty"`
	Volatility             null.Float    `json:"volatility"`
	Beta                   null.Float    `json:"beta"`
	BetaReference          string        `json:"betaReference"`
	MA50                   null.Float    `json:"ma50"`
	MA200                  null.Float    `json:"ma200"`
	Returns                PeriodReturns `json:"returns"`
}

// AlertKind enumerates the rule checks.
type AlertKind string

const (
	AlertPriceMove       AlertKind = "PriceMove"
	AlertVolumeSpike     AlertKind = "VolumeSpike"
	AlertConsolidation   AlertKind = "Consolidation"
	AlertMACrossoverUp   AlertKind = "MACrossoverUp"
	AlertMACrossoverDown AlertKind = "MACrossoverDown"
)

// Alert is an ephemeral rule hit. Alerts are recomputed per request.
type Alert struct {
	Kind       AlertKind `json:"kind"`
	Message    string    `json:"message"`
	ComputedAt time.Time `json:"computedAt"`
}

// Quote is one entry of a market summary.
type Quote struct {
	Symbol        string    `json:"symbol"`
	Price         float64   `json:"price"`
	Change        float64   `json:"change"`
	PercentChange float64   `json:"percentChange"`
	Volume        int64     `json:"volume"`
	Timestamp     time.Time `json:"timestamp"`
}

// Mover is one entry of the top movers list.
type Mover struct {
	Symbol        string  `json:"symbol"`
	PercentChange float64 `json:"percentChange"`
}
