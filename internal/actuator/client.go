package actuator

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is the facade-side end of the websocket. It is safe for use by
// one reader at a time; writes are serialized.
type Client struct {
	conn *websocket.Conn
	wmu  sync.Mutex
}

// envelope delays decoding of the payload until the type is known.
type envelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data,omitempty"`
}

// Dial connects to a controller websocket endpoint such as ws://host:8765/ws.
func Dial(ctx context.Context, url string) (*Client, error) {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", url, err)
	}
	return &Client{conn: conn}, nil
}

// Close closes the connection.
func (c *Client) Close() error {
	c.wmu.Lock()
	defer c.wmu.Unlock()
	_ = c.conn.WriteMessage(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	return c.conn.Close()
}

// RequestAdjustments asks the controller for its current adjustments and
// waits for the reply.
func (c *Client) RequestAdjustments(ctx context.Context) (Adjustments, error) {
	data, err := json.Marshal(Message{Type: MessageRequestAdjustments})
	if err != nil {
		return Adjustments{}, err
	}
	c.wmu.Lock()
	err = c.conn.WriteMessage(websocket.TextMessage, data)
	c.wmu.Unlock()
	if err != nil {
		return Adjustments{}, fmt.Errorf("send request: %w", err)
	}
	return c.Next(ctx)
}

// Next blocks until the next adjustments message arrives, whether a reply
// or a pushed update. An error message from the controller is returned as
// ErrNoAdjustments.
func (c *Client) Next(ctx context.Context) (Adjustments, error) {
	if deadline, ok := ctx.Deadline(); ok {
		c.conn.SetReadDeadline(deadline)
		defer c.conn.SetReadDeadline(time.Time{})
	}

	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			return Adjustments{}, fmt.Errorf("read: %w", err)
		}
		var msg envelope
		if err := json.Unmarshal(raw, &msg); err != nil {
			return Adjustments{}, fmt.Errorf("decode message: %w", err)
		}

		switch msg.Type {
		case MessageFacadeAdjustments:
			var adj Adjustments
			if err := json.Unmarshal(msg.Data, &adj); err != nil {
				return Adjustments{}, fmt.Errorf("decode adjustments: %w", err)
			}
			return adj, nil
		case MessageError:
			var e ErrorData
			_ = json.Unmarshal(msg.Data, &e)
			return Adjustments{}, fmt.Errorf("%w: %s", ErrNoAdjustments, e.Message)
		}
	}
}
