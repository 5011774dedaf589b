// Package capture polls sensors on an interval and hands each successful reading to sinks, such as
// an MQTT broker, while keeping prometheus metrics about the reads.
package capture

import (
	"context"
	"time"
)

// A Reading is one successful Readings call.
type Reading struct {
	Sensor   string                 `json:"sensor"`
	Time     time.Time              `json:"time"`
	Readings map[string]interface{} `json:"readings"`
}

// A Sink receives readings. Write is called from one goroutine per sensor, so implementations must
// be safe for concurrent use.
type Sink interface {
	Write(ctx context.Context, r Reading) error
	Close() error
}
