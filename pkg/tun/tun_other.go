//go:build !linux

package tun

import (
	"fmt"
	"runtime"

	"github.com/irctrakz/prototun/pkg/core"
)

// Open is only implemented on Linux.
func Open(cfg Config) (*Device, error) {
	return nil, &core.SetupError{Stage: "open", Addr: cfg.Name,
		Err: fmt.Errorf("tun devices are not supported on %s", runtime.GOOS)}
}
