package socket

import (
	"sync/atomic"

	"github.com/irctrakz/prototun/pkg/core"
)

// Metrics is an alias for core.TransportMetrics
type Metrics = core.TransportMetrics

func loadMetrics(m *Metrics) Metrics {
	if m == nil {
		return Metrics{}
	}
	return Metrics{
		DatagramsRejected: atomic.LoadUint64(&m.DatagramsRejected),
		PacketsSent:       atomic.LoadUint64(&m.PacketsSent),
		PacketsReceived:   atomic.LoadUint64(&m.PacketsReceived),
		BytesSent:         atomic.LoadUint64(&m.BytesSent),
		BytesReceived:     atomic.LoadUint64(&m.BytesReceived),
	}
}
