// Command prototun bridges a local TUN device with one remote peer over TCP
// or UDP.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/irctrakz/prototun/pkg/capture"
	"github.com/irctrakz/prototun/pkg/config"
	"github.com/irctrakz/prototun/pkg/core"
	"github.com/irctrakz/prototun/pkg/forward"
	"github.com/irctrakz/prototun/pkg/logging"
	"github.com/irctrakz/prototun/pkg/socket"
	"github.com/irctrakz/prototun/pkg/tun"
)

// Exit codes for runs that never reach forwarding. Forwarding outcomes map
// through forward.Result.ExitCode.
const (
	exitOK    = 0
	exitSetup = 1
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := loadConfig(args)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return exitOK
		}
		logging.Errorf("config: %v", err)
		return exitSetup
	}
	if err := cfg.ApplyLogging(); err != nil {
		logging.Errorf("logging: %v", err)
		return exitSetup
	}

	// Debug logging toggle via DEBUG env
	if config.Truthy(os.Getenv("DEBUG")) {
		logging.SetLevel(logging.DebugLevel)
		core.SetDebugMode(true)
		logging.Infof("DEBUG enabled: verbose logging and per-frame tracing")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dev, err := tun.Open(cfg.TUN())
	if err != nil {
		logging.Errorf("%v", err)
		return exitSetup
	}

	endpoint := cfg.Endpoint()
	stream, err := socket.Establish(ctx, endpoint, socket.Config{
		FrameCapacity: cfg.Tunnel.FrameCapacity(),
		Debug:         logging.IsDebug(),
	})
	if err != nil {
		dev.Close()
		logging.Errorf("%v", err)
		return exitSetup
	}

	opts := forward.Options{
		MTU:    cfg.Tunnel.MTU,
		Policy: cfg.FailurePolicy(),
	}
	if cfg.Capture.File != "" {
		pcap, err := capture.Create(cfg.Capture.File)
		if err != nil {
			stream.Close()
			dev.Close()
			logging.Errorf("%v", err)
			return exitSetup
		}
		defer pcap.Close()
		opts.Tap = pcap
	}
	orch := forward.New(stream, dev, opts)

	if d := cfg.MetricsInterval(); d > 0 {
		go runMetricsReporter(ctx, d, cfg.Metrics.Format, stream, dev, orch)
	}

	res := orch.Run(ctx)
	if ctx.Err() != nil {
		logging.Warnf("shutdown requested by signal")
	}
	if err := res.Err(); err != nil {
		logging.Errorf("tunnel terminated: %v", err)
	} else {
		logging.Infof("tunnel closed cleanly")
	}
	return res.ExitCode()
}
