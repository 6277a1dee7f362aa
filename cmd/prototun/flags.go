package main

import (
	"flag"
	"fmt"
	"io"
	"os"

	"github.com/irctrakz/prototun/pkg/config"
)

// cliOptions holds command-line values. Only flags that were set override
// the file and environment layers.
type cliOptions struct {
	configPath    string
	address       string
	name          string
	server        string
	client        string
	tcp           bool
	mtu           int
	driver        string
	failurePolicy string

	set map[string]bool
}

func parseFlags(args []string, output io.Writer) (*cliOptions, error) {
	o := &cliOptions{set: map[string]bool{}}
	fs := flag.NewFlagSet("prototun", flag.ContinueOnError)
	fs.SetOutput(output)

	fs.StringVar(&o.configPath, "config", "", "configuration file (.yaml, .yml or .json)")
	for _, n := range []string{"a", "address"} {
		fs.StringVar(&o.address, n, "", "tunnel address in CIDR notation, e.g. 10.0.0.1/24")
	}
	for _, n := range []string{"n", "name"} {
		fs.StringVar(&o.name, n, "prototun", "tun device name")
	}
	for _, n := range []string{"s", "server"} {
		fs.StringVar(&o.server, n, "", "listen on host:port (conflicts with -client)")
	}
	for _, n := range []string{"c", "client"} {
		fs.StringVar(&o.client, n, "", "connect to host:port (conflicts with -server)")
	}
	for _, n := range []string{"t", "tcp"} {
		fs.BoolVar(&o.tcp, n, false, "use TCP instead of UDP")
	}
	for _, n := range []string{"m", "mtu"} {
		fs.IntVar(&o.mtu, n, 1500, "tun device MTU")
	}
	fs.StringVar(&o.driver, "driver", "kernel", "tun driver: kernel, water or wireguard")
	fs.StringVar(&o.failurePolicy, "failure-policy", "wait", "on a failed direction: wait for the other, or cancel it")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if fs.NArg() > 0 {
		return nil, fmt.Errorf("unexpected arguments: %v", fs.Args())
	}
	fs.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "a":
			o.set["address"] = true
		case "n":
			o.set["name"] = true
		case "s":
			o.set["server"] = true
		case "c":
			o.set["client"] = true
		case "t":
			o.set["tcp"] = true
		case "m":
			o.set["mtu"] = true
		default:
			o.set[f.Name] = true
		}
	})
	return o, nil
}

// apply copies the flags that were given onto cfg.
func (o *cliOptions) apply(cfg *config.Config) {
	if o.set["address"] {
		cfg.Tunnel.Address = o.address
	}
	if o.set["name"] {
		cfg.Tunnel.Name = o.name
	}
	if o.set["server"] {
		cfg.Transport.Server = o.server
	}
	if o.set["client"] {
		cfg.Transport.Client = o.client
	}
	if o.set["tcp"] {
		cfg.Transport.TCP = o.tcp
	}
	if o.set["mtu"] {
		cfg.Tunnel.MTU = o.mtu
	}
	if o.set["driver"] {
		cfg.Tunnel.Driver = o.driver
	}
	if o.set["failure-policy"] {
		cfg.Transport.FailurePolicy = o.failurePolicy
	}
}

// loadConfig layers defaults, the optional file, the environment and the
// command line, then validates the result.
func loadConfig(args []string) (*config.Config, error) {
	opts, err := parseFlags(args, os.Stderr)
	if err != nil {
		return nil, err
	}

	cfg := config.DefaultConfig()
	if opts.configPath != "" {
		if err := config.LoadFromFile(opts.configPath, cfg); err != nil {
			return nil, err
		}
	}
	config.LoadFromEnv(cfg)
	opts.apply(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
