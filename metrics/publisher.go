package metrics

import (
	"time"

	json "github.com/goccy/go-json"
	"github.com/go-openapi/strfmt"

	"github.com/casualjim/sluice/stream"
)

// Snapshot is a point-in-time capture of every metric in a registry.
type Snapshot struct {
	Timestamp strfmt.DateTime    `json:"timestamp"`
	Counters  map[string]int64   `json:"counters"`
	Gauges    map[string]float64 `json:"gauges,omitempty"`
}

// JSON renders the snapshot for reporters that ship JSON.
func (s Snapshot) JSON() ([]byte, error) {
	return json.Marshal(s)
}

// NewPublisher bridges a registry into a single-subscriber stream that
// emits one snapshot per interval, bounded by subscriber demand. Ticks
// arriving while the subscriber has no outstanding demand are dropped,
// not buffered.
func NewPublisher(sched stream.Scheduler, registry *Registry, interval time.Duration) stream.Publisher[Snapshot] {
	return stream.NewPeriodic(sched, interval, func() (Snapshot, error) {
		return registry.Snapshot(), nil
	})
}
