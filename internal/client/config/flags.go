package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/dmitrijs2005/filekeeper/internal/flagx"
)

// parseFlags overlays command-line flags onto cfg:
//
//	-a string    server address
//	-i duration  online check interval
//	-t duration  per-request timeout
//
// Durations take Go syntax ("1m30s") or a bare number of seconds. Flags of
// other components in os.Args are ignored.
func parseFlags(cfg *Config) {
	args := flagx.FilterArgs(os.Args[1:], []string{"-a", "-i", "-t"})

	fs := flag.NewFlagSet("client", flag.ContinueOnError)
	fs.StringVar(&cfg.ServerEndpointAddr, "a", cfg.ServerEndpointAddr, "address and port to access server")
	durationFlag(fs, &cfg.OnlineCheckInterval, "i", "online check interval")
	durationFlag(fs, &cfg.RequestTimeout, "t", "request timeout")

	if err := fs.Parse(args); err != nil {
		panic(err)
	}
}

func durationFlag(fs *flag.FlagSet, dst *time.Duration, name, usage string) {
	fs.Func(name, usage, func(v string) error {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = time.Duration(n) * time.Second
			return nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("-%s: %w", name, err)
		}
		*dst = d
		return nil
	})
}
