package gateway

import "marketcore/internal/model"

// Websocket message types.
const (
	MsgSubscribe    = "SUBSCRIBE"
	MsgUnsubscribe  = "UNSUBSCRIBE"
	MsgSubscribed   = "SUBSCRIBED"
	MsgUnsubscribed = "UNSUBSCRIBED"
	MsgBar          = "BAR"
	MsgError        = "ERROR"
	MsgPong         = "pong"
)

// ClientMessage is sent by a websocket peer. A message with only Ping set is
// answered with a pong.
type ClientMessage struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol,omitempty"`
	Ping   int64  `json:"ping,omitempty"`
}

// ServerMessage is the envelope pushed to websocket peers.
type ServerMessage struct {
	Type    string     `json:"type"`
	Symbol  string     `json:"symbol,omitempty"`
	Bar     *model.Bar `json:"bar,omitempty"`
	Initial bool       `json:"initial,omitempty"`
	Symbols []string   `json:"symbols,omitempty"`
	Error   string     `json:"error,omitempty"`

	Ping     int64 `json:"ping,omitempty"`
	ServerTS int64 `json:"server_ts,omitempty"`
}

// StatsResponse is returned by /api/stats.
type StatsResponse struct {
	Subscribers    int                     `json:"subscribers"`
	TrackedSymbols []string                `json:"trackedSymbols"`
	Latency        map[string]LatencyStats `json:"latency"`
}
