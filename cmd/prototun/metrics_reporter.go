package main

import (
	"context"
	"encoding/json"
	"fmt"
	"runtime"
	"time"

	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/forward"
	"github.com/irctrakz/prototun/pkg/logging"
	"github.com/irctrakz/prototun/pkg/socket"
)

type metricsSnapshot struct {
	Timestamp string            `json:"ts"`
	S2I       map[string]uint64 `json:"socket_to_interface"`
	I2S       map[string]uint64 `json:"interface_to_socket"`
	Socket    map[string]uint64 `json:"socket"`
	TUN       map[string]uint64 `json:"tun"`
	RT        map[string]uint64 `json:"rt"`
}

type socketMetricsSource interface {
	Metrics() socket.Metrics
}

type tunMetricsSource interface {
	Metrics() core.TUNMetrics
}

type forwardMetricsSource interface {
	Metrics() forward.Metrics
}

func runMetricsReporter(ctx context.Context, interval time.Duration, format string,
	sock socketMetricsSource, dev tunMetricsSource, fwd forwardMetricsSource) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			logging.Infof("metrics: %s", formatMetrics(buildSnapshot(sock, dev, fwd, time.Now()), format))
		}
	}
}

func buildSnapshot(sock socketMetricsSource, dev tunMetricsSource, fwd forwardMetricsSource, now time.Time) metricsSnapshot {
	fm := fwd.Metrics()
	sm := sock.Metrics()
	tm := dev.Metrics()
	var ms runtime.MemStats
	runtime.ReadMemStats(&ms)

	direction := func(m core.DirectionMetrics) map[string]uint64 {
		return map[string]uint64{"frames": m.Frames, "bytes": m.Bytes, "errors": m.Errors}
	}
	return metricsSnapshot{
		Timestamp: now.UTC().Format(time.RFC3339),
		S2I:       direction(fm.SocketToInterface),
		I2S:       direction(fm.InterfaceToSocket),
		Socket: map[string]uint64{
			"pkts_sent":  sm.PacketsSent,
			"pkts_recv":  sm.PacketsReceived,
			"bytes_sent": sm.BytesSent,
			"bytes_recv": sm.BytesReceived,
			"rejected":   sm.DatagramsRejected,
		},
		TUN: map[string]uint64{
			"pkts_sent":  tm.PacketsSent,
			"pkts_recv":  tm.PacketsReceived,
			"bytes_sent": tm.BytesSent,
			"bytes_recv": tm.BytesReceived,
			"errors":     tm.Errors,
		},
		RT: map[string]uint64{
			"heap_alloc": ms.HeapAlloc,
			"num_gc":     uint64(ms.NumGC),
			"goroutines": uint64(runtime.NumGoroutine()),
		},
	}
}

func formatMetrics(snap metricsSnapshot, format string) string {
	if format == "json" {
		b, err := json.Marshal(snap)
		if err != nil {
			return fmt.Sprintf("marshal error: %v", err)
		}
		return string(b)
	}
	return fmt.Sprintf("ts=%s | s2i: frames=%d bytes=%d err=%d | i2s: frames=%d bytes=%d err=%d | sock: sent=%d/%d recv=%d/%d rej=%d | tun: sent=%d/%d recv=%d/%d err=%d | rt: heap=%dMi gor=%d gc=%d",
		snap.Timestamp,
		snap.S2I["frames"], snap.S2I["bytes"], snap.S2I["errors"],
		snap.I2S["frames"], snap.I2S["bytes"], snap.I2S["errors"],
		snap.Socket["pkts_sent"], snap.Socket["bytes_sent"],
		snap.Socket["pkts_recv"], snap.Socket["bytes_recv"],
		snap.Socket["rejected"],
		snap.TUN["pkts_sent"], snap.TUN["bytes_sent"],
		snap.TUN["pkts_recv"], snap.TUN["bytes_recv"],
		snap.TUN["errors"],
		snap.RT["heap_alloc"]/(1024*1024), snap.RT["goroutines"], snap.RT["num_gc"],
	)
}
