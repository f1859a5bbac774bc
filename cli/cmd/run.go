package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/mihaip/nailgun/cli/config"
	"github.com/mihaip/nailgun/log"
	"github.com/mihaip/nailgun/nailgun"
)

// RunCommand returns the run command: execute one command on the
// server and exit with its exit code.
func RunCommand() *cli.Command {
	return &cli.Command{
		Name:      "run",
		Usage:     "Run a command on the server",
		ArgsUsage: "COMMAND [ARG...]",
		Flags: []cli.Flag{
			ConfigFlag,
			AddressFlag,
			VerboseFlag,
			&cli.StringSliceFlag{
				Name:    "env",
				Aliases: []string{"e"},
				Usage:   "Environment entry NAME=VALUE (repeatable; replaces the inherited environment)",
			},
			&cli.StringFlag{
				Name:    "dir",
				Aliases: []string{"d"},
				Usage:   "Working directory sent to the server (default: current directory)",
			},
			&cli.BoolFlag{
				Name:  "no-input",
				Usage: "Do not forward stdin; answer the first input request with end-of-input",
			},
			&cli.DurationFlag{
				Name:  "heartbeat-interval",
				Usage: "Interval between liveness chunks (0 for library default)",
			},
			&cli.IntFlag{
				Name:  "stdin-chunk-size",
				Usage: "Max input bytes sent per server input request (0 for library default)",
			},
		},
		Action: runAction,
	}
}

func runAction(c *cli.Context) error {
	if c.NArg() < 1 {
		return cli.Exit("run: command name required", 1)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	address := resolveAddress(c, cfg)
	if address == "" {
		return cli.Exit("run: no server address (use --address or config)", 1)
	}

	opts := buildOptions(c, cfg, address)

	cmd := nailgun.Command{
		Name:   c.Args().First(),
		Args:   c.Args().Tail(),
		Dir:    c.String("dir"),
		Stdout: os.Stdout,
		Stderr: os.Stderr,
	}
	if env := c.StringSlice("env"); len(env) > 0 {
		for _, entry := range env {
			if !strings.Contains(entry, "=") {
				return cli.Exit(fmt.Sprintf("run: malformed env entry %q (want NAME=VALUE)", entry), 1)
			}
		}
		cmd.Env = env
	}
	if !c.Bool("no-input") {
		cmd.Stdin = os.Stdin
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	code, err := nailgun.Run(ctx, address, cmd, opts)
	if err != nil {
		return cli.Exit(fmt.Sprintf("ng: %v", err), 1)
	}
	return cli.Exit("", code)
}

// loadConfig reads the --config file when given; otherwise every
// config value defaults to zero and flags stand alone.
func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return &config.Config{}, nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, cli.Exit(err.Error(), 1)
	}
	return cfg, nil
}

func resolveAddress(c *cli.Context, cfg *config.Config) string {
	if addr := c.String("address"); addr != "" {
		return addr
	}
	return cfg.Address
}

// buildOptions merges flags over config values into session options.
func buildOptions(c *cli.Context, cfg *config.Config, address string) *nailgun.Options {
	opts := &nailgun.Options{
		HeartbeatInterval: cfg.HeartbeatInterval.Duration,
		StdinChunkSize:    cfg.StdinChunkSize,
	}
	if d := c.Duration("heartbeat-interval"); d != 0 {
		opts.HeartbeatInterval = d
	}
	if n := c.Int("stdin-chunk-size"); n != 0 {
		opts.StdinChunkSize = n
	}
	if c.Bool("verbose") {
		opts.Logger = log.NewLogger(address)
	}
	return opts
}

// sessionContext bounds sessions that should never hang, like the
// bench harness's per-iteration runs.
func sessionContext(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	if timeout <= 0 {
		return context.WithCancel(parent)
	}
	return context.WithTimeout(parent, timeout)
}
