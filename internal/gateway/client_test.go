package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// wsPeer reads coalesced frames and yields one ServerMessage at a time.
type wsPeer struct {
	t       *testing.T
	conn    *websocket.Conn
	pending []ServerMessage
}

func dialWS(t *testing.T, s *Server) *wsPeer {
	t.Helper()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return &wsPeer{t: t, conn: conn}
}

func (p *wsPeer) send(msg ClientMessage) {
	p.t.Helper()
	if err := p.conn.WriteJSON(msg); err != nil {
		p.t.Fatalf("write: %v", err)
	}
}

func (p *wsPeer) next() ServerMessage {
	p.t.Helper()
	for len(p.pending) == 0 {
		p.conn.SetReadDeadline(time.Now().Add(5 * time.Second))
		_, frame, err := p.conn.ReadMessage()
		if err != nil {
			p.t.Fatalf("read: %v", err)
		}
		for _, line := range bytes.Split(frame, []byte{'\n'}) {
			var m ServerMessage
			if err := json.Unmarshal(line, &m); err != nil {
				p.t.Fatalf("decode %q: %v", line, err)
			}
			p.pending = append(p.pending, m)
		}
	}
	m := p.pending[0]
	p.pending = p.pending[1:]
	return m
}

func TestWS_SubscribeReceivesSnapshotAndLiveBars(t *testing.T) {
	s, svc := newTestServer(t)
	peer := dialWS(t, s)

	peer.send(ClientMessage{Type: MsgSubscribe, Symbol: "spy"})

	ack := peer.next()
	if ack.Type != MsgSubscribed || ack.Symbol != "SPY" {
		t.Fatalf("expected SUBSCRIBED SPY, got %+v", ack)
	}
	if len(ack.Symbols) != 1 || ack.Symbols[0] != "SPY" {
		t.Errorf("subscriptions = %v", ack.Symbols)
	}

	snap := peer.next()
	if snap.Type != MsgBar || !snap.Initial || snap.Bar == nil {
		t.Fatalf("expected initial BAR, got %+v", snap)
	}

	bar, err := svc.Advance(context.Background(), "SPY")
	if err != nil {
		t.Fatalf("Advance: %v", err)
	}

	live := peer.next()
	if live.Type != MsgBar || live.Initial {
		t.Fatalf("expected live BAR, got %+v", live)
	}
	if !live.Bar.Timestamp.Equal(bar.Timestamp) || live.Bar.Close != bar.Close {
		t.Errorf("live bar = %+v, want %+v", *live.Bar, bar)
	}
	if live.Bar.Open != snap.Bar.Close {
		t.Errorf("live open %v should equal snapshot close %v", live.Bar.Open, snap.Bar.Close)
	}
}

func TestWS_Unsubscribe(t *testing.T) {
	s, _ := newTestServer(t)
	peer := dialWS(t, s)

	peer.send(ClientMessage{Type: MsgSubscribe, Symbol: "QQQ"})
	if m := peer.next(); m.Type != MsgSubscribed {
		t.Fatalf("expected SUBSCRIBED, got %+v", m)
	}
	peer.next() // snapshot

	peer.send(ClientMessage{Type: MsgUnsubscribe, Symbol: "qqq"})
	m := peer.next()
	if m.Type != MsgUnsubscribed || m.Symbol != "QQQ" || len(m.Symbols) != 0 {
		t.Fatalf("expected UNSUBSCRIBED QQQ with no symbols left, got %+v", m)
	}
}

func TestWS_InvalidSymbolAndUnknownType(t *testing.T) {
	s, _ := newTestServer(t)
	peer := dialWS(t, s)

	peer.send(ClientMessage{Type: MsgSubscribe, Symbol: "INVALID123456"})
	if m := peer.next(); m.Type != MsgError || m.Error == "" {
		t.Fatalf("expected ERROR for bad symbol, got %+v", m)
	}

	peer.send(ClientMessage{Type: "HELLO"})
	if m := peer.next(); m.Type != MsgError {
		t.Fatalf("expected ERROR for unknown type, got %+v", m)
	}
}

func TestWS_PingPong(t *testing.T) {
	s, _ := newTestServer(t)
	peer := dialWS(t, s)

	peer.send(ClientMessage{Ping: 12345})
	m := peer.next()
	if m.Type != MsgPong || m.Ping != 12345 || m.ServerTS == 0 {
		t.Fatalf("expected pong, got %+v", m)
	}
}

func TestWS_DisconnectUnregisters(t *testing.T) {
	s, svc := newTestServer(t)
	peer := dialWS(t, s)
	peer.send(ClientMessage{Type: MsgSubscribe, Symbol: "SPY"})
	peer.next()
	if svc.SubscriberCount() != 1 {
		t.Fatalf("subscribers = %d, want 1", svc.SubscriberCount())
	}

	peer.conn.Close()
	deadline := time.Now().Add(5 * time.Second)
	for svc.SubscriberCount() != 0 {
		if time.Now().After(deadline) {
			t.Fatal("subscriber not unregistered after disconnect")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
