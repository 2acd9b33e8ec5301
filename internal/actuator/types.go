package actuator

import (
	"context"
	"errors"
	"time"

	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/facade"
	"github.com/danielpatrickdp/adaptive-facade/go-controller/internal/trainer"
)

// Websocket message types.
const (
	MessageRequestAdjustments = "request_adjustments"
	MessageFacadeAdjustments  = "facade_adjustments"
	MessageError              = "error"
)

// ErrNoAdjustments is returned when neither a published action nor a
// fallback is available.
var ErrNoAdjustments = errors.New("no adjustments available")

// #region messages
// Message is the websocket envelope in both directions.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data,omitempty"`
}

// Adjustments is an action vector as three named fields.
type Adjustments struct {
	Adjustment1 float64 `json:"adjustment_1"`
	Adjustment2 float64 `json:"adjustment_2"`
	Adjustment3 float64 `json:"adjustment_3"`
}

// FromAction converts an action into its wire form.
func FromAction(a facade.Action) Adjustments {
	return Adjustments{Adjustment1: a[0], Adjustment2: a[1], Adjustment3: a[2]}
}

// Action converts the wire form back into an action.
func (a Adjustments) Action() facade.Action {
	return facade.Action{a.Adjustment1, a.Adjustment2, a.Adjustment3}
}

// ErrorData is the payload of an error message.
type ErrorData struct {
	Message string `json:"message"`
}

// #endregion messages

// #region server-config
// StatusProvider exposes training progress to the status API.
type StatusProvider interface {
	Status() trainer.Status
}

// FallbackFunc computes an action on demand when none has been published.
type FallbackFunc func(ctx context.Context) (facade.Action, error)

// ServerConfig controls the actuator server.
type ServerConfig struct {
	Addr            string
	PushUpdates     bool // push every published action to connected clients
	FallbackTimeout time.Duration
	ShutdownTimeout time.Duration
	SendBuffer      int
}

// DefaultServerConfig returns the standard server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8765",
		PushUpdates:     true,
		FallbackTimeout: 10 * time.Second,
		ShutdownTimeout: 5 * time.Second,
		SendBuffer:      16,
	}
}

// #endregion server-config
