package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/mihaip/nailgun/cli/config"
	"github.com/mihaip/nailgun/cli/render"
	"github.com/mihaip/nailgun/log"
	"github.com/mihaip/nailgun/metrics"
	"github.com/mihaip/nailgun/nailgun"
	"github.com/mihaip/nailgun/protocol"
	"github.com/mihaip/nailgun/server"
)

const benchIterationTimeout = 30 * time.Second

// BenchResponse is the rendered result of a bench run.
type BenchResponse struct {
	Command    string `json:"command"`
	Iterations int    `json:"iterations"`
	Failures   int    `json:"failures"`
	// Latency of sessions whose input streams from a reader.
	Stream string `json:"stream"`
	// Latency of sessions whose input is a preloaded byte slice.
	// Empty when the bench runs without input.
	Bytes string `json:"bytes,omitempty"`

	Heartbeats int64 `json:"heartbeats_sent"`
	ChunksSent int64 `json:"chunks_sent"`
	ChunksRecv int64 `json:"chunks_received"`
}

// BenchCommand returns the bench command: run the same command many
// times against one server and report latency aggregates.
func BenchCommand() *cli.Command {
	return &cli.Command{
		Name:      "bench",
		Usage:     "Measure session latency against a server",
		ArgsUsage: "[COMMAND [ARG...]]",
		Flags: []cli.Flag{
			ConfigFlag,
			AddressFlag,
			FormatFlag,
			VerboseFlag,
			&cli.IntFlag{
				Name:    "iterations",
				Aliases: []string{"n"},
				Usage:   "Number of sessions to run",
			},
			&cli.StringFlag{
				Name:  "input",
				Usage: "Input piped to every session (empty for none)",
			},
			&cli.BoolFlag{
				Name:  "spawn-server",
				Usage: "Start the configured server on a generated local socket, bench against it, then stop it",
			},
		},
		Action: benchAction,
	}
}

func benchAction(c *cli.Context) error {
	r, err := render.NewRenderer(c)
	if err != nil {
		return err
	}
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	iterations := cfg.Bench.Iterations
	if n := c.Int("iterations"); n > 0 {
		iterations = n
	}
	if iterations <= 0 {
		iterations = 10
	}

	name := cfg.Bench.Command
	args := cfg.Bench.Args
	if c.NArg() > 0 {
		name = c.Args().First()
		args = c.Args().Tail()
	}
	if name == "" {
		return cli.Exit("bench: command name required (argument or bench.command in config)", 1)
	}

	input := cfg.Bench.Input
	if c.IsSet("input") {
		input = c.String("input")
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	address := resolveAddress(c, cfg)
	var mgr *server.Manager
	if c.Bool("spawn-server") {
		address, mgr, err = spawnServer(ctx, c.Bool("verbose"), cfg)
		if err != nil {
			return cli.Exit(fmt.Sprintf("bench: %v", err), 1)
		}
		defer stopServer(ctx, address, mgr)
	}
	if address == "" {
		return cli.Exit("bench: no server address (use --address, config, or --spawn-server)", 1)
	}

	opts := buildOptions(c, cfg, address)
	collector := metrics.NewCollector()
	opts.Collector = collector

	var stream, preloaded metrics.Times
	failures := 0
	for i := 0; i < iterations; i++ {
		if ctx.Err() != nil {
			break
		}
		if !runOnce(ctx, address, name, args, input, false, opts, &stream) {
			failures++
		}
		// Measure the preloaded-bytes variant side by side so the two
		// input paths can be compared on the same server state.
		if input != "" {
			if !runOnce(ctx, address, name, args, input, true, opts, &preloaded) {
				failures++
			}
		}
	}

	snap := collector.Snapshot()
	resp := BenchResponse{
		Command:    name,
		Iterations: iterations,
		Failures:   failures,
		Stream:     stream.String(),
		Heartbeats: snap.HeartbeatsSent,
		ChunksSent: snap.ChunksSent,
		ChunksRecv: snap.ChunksReceived,
	}
	if input != "" {
		resp.Bytes = preloaded.String()
	}
	if err := r.Render(resp); err != nil {
		return err
	}
	if failures > 0 {
		return cli.Exit("", 1)
	}
	return nil
}

// runOnce executes one timed session, discarding output. Returns false
// on session failure.
func runOnce(ctx context.Context, address, name string, args []string, input string, asBytes bool, opts *nailgun.Options, times *metrics.Times) bool {
	runCtx, cancel := sessionContext(ctx, benchIterationTimeout)
	defer cancel()

	cmd := nailgun.Command{Name: name, Args: args, Env: []string{}}

	start := time.Now()
	var err error
	if asBytes {
		_, err = nailgun.RunBytes(runCtx, address, cmd, []byte(input), opts)
	} else {
		if input != "" {
			cmd.Stdin = strings.NewReader(input)
		}
		_, err = nailgun.Run(runCtx, address, cmd, opts)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "bench: session failed: %v\n", err)
		return false
	}
	times.Add(time.Since(start))
	return true
}

// spawnServer starts the configured server process on a fresh local
// socket and waits for it to accept.
func spawnServer(ctx context.Context, verbose bool, cfg *config.Config) (string, *server.Manager, error) {
	if cfg.Server.Command == "" {
		return "", nil, fmt.Errorf("--spawn-server needs server.command in config")
	}

	sock := filepath.Join(os.TempDir(), "ng-bench-"+uuid.NewString()+".sock")
	address := "local:" + sock

	var logger *log.Logger
	if verbose {
		logger = log.NewLogger(address)
	}

	// The generated transport address ("local:PATH") is appended to the
	// configured args so the server listens where the bench will
	// connect; servers take the full address form, not a bare path.
	mgr := server.NewManager(&server.Config{
		Command:        cfg.Server.Command,
		Args:           append(append([]string{}, cfg.Server.Args...), address),
		Address:        address,
		StartupTimeout: cfg.Server.StartupTimeout.Duration,
		Logger:         logger,
	})
	if err := mgr.Start(ctx); err != nil {
		return "", nil, err
	}
	if err := mgr.WaitReady(ctx); err != nil {
		_ = mgr.Kill()
		_, _ = mgr.Wait()
		return "", nil, err
	}
	return address, mgr, nil
}

// stopServer asks the server to shut down over the protocol first; the
// connection dying mid-session is the expected shape of success there.
// Escalates to signals if the server is past talking to.
func stopServer(ctx context.Context, address string, mgr *server.Manager) {
	stopCtx, cancel := sessionContext(ctx, 10*time.Second)
	defer cancel()

	_, err := nailgun.Run(stopCtx, address, nailgun.Command{Name: "ng-stop", Env: []string{}}, nil)
	if err != nil && !protocol.IsBenignAfterStop(err) {
		fmt.Fprintf(os.Stderr, "bench: ng-stop failed: %v\n", err)
		_ = mgr.Stop()
	}
	if _, err := mgr.Wait(); err != nil {
		_ = mgr.Kill()
	}
}
