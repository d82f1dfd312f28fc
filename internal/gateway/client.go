package gateway

import (
	"context"
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"marketcore/internal/broadcast"
	"marketcore/internal/market"
	"marketcore/internal/metrics"
	"marketcore/internal/model"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = 30 * time.Second
	maxMessageSize = 4096
	sendBuffer     = 256
)

// Client is one websocket peer. It owns one broadcast subscription whose
// symbol set is driven by SUBSCRIBE and UNSUBSCRIBE messages.
type Client struct {
	conn *websocket.Conn
	svc  *market.Service
	sub  *broadcast.Subscriber
	send chan []byte

	done      chan struct{}
	closeOnce sync.Once
}

func newClient(conn *websocket.Conn, svc *market.Service) *Client {
	return &Client{
		conn: conn,
		svc:  svc,
		sub:  svc.Register(""),
		send: make(chan []byte, sendBuffer),
		done: make(chan struct{}),
	}
}

// run starts the pumps. It returns immediately; the connection is torn down
// when the peer goes away or a write fails.
func (c *Client) run() {
	metrics.WSClients.Inc()
	log.Printf("[gateway] ws client %s connected", c.sub.ID)
	go c.forward()
	go c.writePump()
	go c.readPump()
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.svc.Unregister(c.sub.ID)
		close(c.done)
		metrics.WSClients.Dec()
		log.Printf("[gateway] ws client %s disconnected", c.sub.ID)
	})
}

// forward relays broadcast bars until the subscription is unregistered.
func (c *Client) forward() {
	for bar := range c.sub.C() {
		c.enqueue(ServerMessage{Type: MsgBar, Symbol: bar.Symbol, Bar: &bar})
	}
}

// enqueue never blocks. A peer whose buffer is full loses the message.
func (c *Client) enqueue(msg ServerMessage) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[gateway] marshal %s: %v", msg.Type, err)
		return
	}
	select {
	case <-c.done:
	case c.send <- data:
	default:
		log.Printf("[gateway] ws client %s send buffer full, dropping %s", c.sub.ID, msg.Type)
	}
}

func (c *Client) sendError(symbol, text string) {
	c.enqueue(ServerMessage{Type: MsgError, Symbol: symbol, Error: text})
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.done:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			c.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		case msg := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))

			// Queued messages share one frame, newline separated.
			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				c.close()
				return
			}
			w.Write(msg)
			n := len(c.send)
			for i := 0; i < n; i++ {
				w.Write([]byte{'\n'})
				w.Write(<-c.send)
			}
			if err := w.Close(); err != nil {
				c.close()
				return
			}
		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

func (c *Client) readPump() {
	defer c.close()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.sendError("", "invalid message: "+err.Error())
			continue
		}

		switch msg.Type {
		case MsgSubscribe:
			c.handleSubscribe(msg.Symbol)
		case MsgUnsubscribe:
			c.handleUnsubscribe(msg.Symbol)
		default:
			if msg.Ping > 0 {
				c.enqueue(ServerMessage{Type: MsgPong, Ping: msg.Ping, ServerTS: time.Now().UnixMilli()})
				continue
			}
			c.sendError("", "unknown message type "+msg.Type)
		}
	}
}

// handleSubscribe adds the symbol and sends its latest bar as an initial
// snapshot so the peer does not wait a full tick for data.
func (c *Client) handleSubscribe(symbol string) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		c.sendError(symbol, err.Error())
		return
	}
	if err := c.svc.Subscribe(c.sub.ID, sym); err != nil {
		c.sendError(sym, err.Error())
		return
	}
	c.enqueue(ServerMessage{Type: MsgSubscribed, Symbol: sym, Symbols: c.svc.Subscriptions(c.sub.ID)})
	log.Printf("[gateway] ws client %s subscribed to %s", c.sub.ID, sym)

	ctx, cancel := context.WithTimeout(context.Background(), writeWait)
	defer cancel()
	bars, err := c.svc.GetLatestBars(ctx, sym, 1)
	if err != nil || len(bars) == 0 {
		log.Printf("[gateway] ws client %s: no snapshot for %s: %v", c.sub.ID, sym, err)
		return
	}
	c.enqueue(ServerMessage{Type: MsgBar, Symbol: sym, Bar: &bars[0], Initial: true})
}

func (c *Client) handleUnsubscribe(symbol string) {
	sym, err := model.NormalizeSymbol(symbol)
	if err != nil {
		c.sendError(symbol, err.Error())
		return
	}
	if err := c.svc.Unsubscribe(c.sub.ID, sym); err != nil {
		c.sendError(sym, err.Error())
		return
	}
	c.enqueue(ServerMessage{Type: MsgUnsubscribed, Symbol: sym, Symbols: c.svc.Subscriptions(c.sub.ID)})
	log.Printf("[gateway] ws client %s unsubscribed from %s", c.sub.ID, sym)
}
