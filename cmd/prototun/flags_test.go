package main

import (
	"encoding/json"
	"flag"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/irctrakz/prototun/pkg/config"
	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/forward"
	"github.com/irctrakz/prototun/pkg/socket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFlagsShortAndLong(t *testing.T) {
	opts, err := parseFlags([]string{"-a", "10.0.0.1/24", "-s", "127.0.0.1:9000", "-t", "-m", "1400"}, io.Discard)
	require.NoError(t, err)

	cfg := config.DefaultConfig()
	opts.apply(cfg)
	assert.Equal(t, "10.0.0.1/24", cfg.Tunnel.Address)
	assert.Equal(t, "127.0.0.1:9000", cfg.Transport.Server)
	assert.True(t, cfg.Transport.TCP)
	assert.Equal(t, 1400, cfg.Tunnel.MTU)
	assert.Equal(t, "prototun", cfg.Tunnel.Name)

	opts, err = parseFlags([]string{"-address", "10.0.0.2/24", "-client", "127.0.0.1:9000", "-name", "tun7", "-driver", "water", "-failure-policy", "cancel"}, io.Discard)
	require.NoError(t, err)

	cfg = config.DefaultConfig()
	opts.apply(cfg)
	assert.Equal(t, "10.0.0.2/24", cfg.Tunnel.Address)
	assert.Equal(t, "127.0.0.1:9000", cfg.Transport.Client)
	assert.Equal(t, "tun7", cfg.Tunnel.Name)
	assert.Equal(t, "water", cfg.Tunnel.Driver)
	assert.Equal(t, "cancel", cfg.Transport.FailurePolicy)
}

func TestParseFlagsErrors(t *testing.T) {
	_, err := parseFlags([]string{"-h"}, io.Discard)
	assert.ErrorIs(t, err, flag.ErrHelp)

	_, err = parseFlags([]string{"-bogus"}, io.Discard)
	assert.Error(t, err)

	_, err = parseFlags([]string{"-a", "10.0.0.1/24", "extra"}, io.Discard)
	assert.Error(t, err)
}

func TestUnsetFlagsKeepLowerLayers(t *testing.T) {
	t.Setenv("TUNNEL_MTU", "1280")
	t.Setenv("TUNNEL_NAME", "envtun")

	cfg, err := loadConfig([]string{"-a", "10.0.0.1/24", "-c", "127.0.0.1:9000"})
	require.NoError(t, err)
	assert.Equal(t, 1280, cfg.Tunnel.MTU)
	assert.Equal(t, "envtun", cfg.Tunnel.Name)

	cfg, err = loadConfig([]string{"-a", "10.0.0.1/24", "-c", "127.0.0.1:9000", "-m", "1500"})
	require.NoError(t, err)
	assert.Equal(t, 1500, cfg.Tunnel.MTU)
}

func TestLoadConfigFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "prototun.yaml")
	data := "tunnel:\n  address: 10.9.0.1/30\n  mtu: 1400\ntransport:\n  server: 127.0.0.1:7000\n  tcp: true\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := loadConfig([]string{"-config", path})
	require.NoError(t, err)
	assert.Equal(t, "10.9.0.1/30", cfg.Tunnel.Address)
	assert.Equal(t, 1400, cfg.Tunnel.MTU)

	ep := cfg.Endpoint()
	assert.Equal(t, core.Server, ep.Role)
	assert.Equal(t, core.TCP, ep.Protocol)
	assert.Equal(t, "127.0.0.1:7000", ep.Address)
}

func TestLoadConfigRejectsBothRoles(t *testing.T) {
	_, err := loadConfig([]string{"-a", "10.0.0.1/24", "-s", "127.0.0.1:9000", "-c", "127.0.0.1:9001"})
	assert.Error(t, err)
}

func TestRunReturnsSetupCodeOnBadConfig(t *testing.T) {
	assert.Equal(t, exitSetup, run([]string{"-a", "not-an-address", "-c", "127.0.0.1:9000"}))
	assert.Equal(t, exitOK, run([]string{"-h"}))
}

type fakeSources struct{}

func (fakeSources) Metrics() socket.Metrics {
	return socket.Metrics{PacketsSent: 3, BytesSent: 300, DatagramsRejected: 1}
}

type fakeTUN struct{}

func (fakeTUN) Metrics() core.TUNMetrics {
	return core.TUNMetrics{PacketsReceived: 3, BytesReceived: 300}
}

type fakeForward struct{}

func (fakeForward) Metrics() forward.Metrics {
	return forward.Metrics{
		InterfaceToSocket: core.DirectionMetrics{Frames: 3, Bytes: 300},
	}
}

func TestMetricsSnapshotFormats(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	snap := buildSnapshot(fakeSources{}, fakeTUN{}, fakeForward{}, now)

	assert.Equal(t, "2024-05-01T12:00:00Z", snap.Timestamp)
	assert.Equal(t, uint64(3), snap.I2S["frames"])
	assert.Equal(t, uint64(1), snap.Socket["rejected"])

	text := formatMetrics(snap, "text")
	assert.True(t, strings.HasPrefix(text, "ts=2024-05-01T12:00:00Z"))
	assert.Contains(t, text, "i2s: frames=3 bytes=300 err=0")
	assert.Contains(t, text, "rej=1")

	var decoded map[string]map[string]uint64
	raw := formatMetrics(snap, "json")
	var probe map[string]json.RawMessage
	require.NoError(t, json.Unmarshal([]byte(raw), &probe))
	delete(probe, "ts")
	b, err := json.Marshal(probe)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(b, &decoded))
	assert.Equal(t, uint64(300), decoded["tun"]["bytes_recv"])
	assert.Equal(t, uint64(300), decoded["interface_to_socket"]["bytes"])
}
