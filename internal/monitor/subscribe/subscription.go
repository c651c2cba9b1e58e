// Package subscribe records per-subscription metrics for the monitor and periodically
// logs the progress of running subscriptions.
package subscribe

import (
	"strconv"
	"time"
)

// Protocol is the transport a subscription uses.
type Protocol string

// Known protocols.
const (
	ProtocolGRPC Protocol = "GRPC"
	ProtocolREST Protocol = "REST"
)

// Status is the lifecycle state of a subscription.
type Status int

// Subscription states.
const (
	StatusIdle Status = iota
	StatusRunning
	StatusCompleted
)

func (s Status) String() string {
	switch s {
	case StatusRunning:
		return "RUNNING"
	case StatusCompleted:
		return "COMPLETED"
	default:
		return "IDLE"
	}
}

// Key identifies a subscription and supplies the label values of its instruments.
type Key struct {
	Protocol Protocol
	Scenario string
	ID       int
}

// String renders the key as scenario #id.
func (k Key) String() string { return k.Scenario + " #" + strconv.Itoa(k.ID) }

// Subscription exposes the live state of one subscriber. Implementations must be
// safe for concurrent use.
type Subscription interface {
	Key() Key
	Status() Status
	Count() int64
	Elapsed() time.Duration
	Rate() float64
	Errors() map[string]int
}

// Response is one message received by a subscription.
type Response struct {
	Subscription       Subscription
	PublishedTimestamp *time.Time // nil when the message carries no publish time
	ReceivedTimestamp  time.Time
}
