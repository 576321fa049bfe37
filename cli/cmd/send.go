package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/prism/broadcast"
	"github.com/pithecene-io/prism/chunker"
	"github.com/pithecene-io/prism/config"
	"github.com/pithecene-io/prism/draft"
	"github.com/pithecene-io/prism/iox"
	"github.com/pithecene-io/prism/keepalive"
	"github.com/pithecene-io/prism/log"
	"github.com/pithecene-io/prism/metrics"
)

// Send exit codes.
const (
	exitSendComplete    = 0
	exitSendInterrupted = 2
	exitSendFailure     = 3
)

// SendCommand returns the send command.
func SendCommand() *cli.Command {
	return &cli.Command{
		Name:      "send",
		Usage:     "Broadcast a file as a stream of visual symbols",
		ArgsUsage: "<file>",
		Flags: []cli.Flag{
			ConfigFlag,
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Chunk size in bytes (must match the receiver)",
			},
			&cli.DurationFlag{
				Name:  "cadence",
				Usage: "Display interval per symbol",
			},
			&cli.StringFlag{
				Name:  "remediate",
				Usage: "Path to a missing_parts.json manifest; send only the listed parts",
			},
			KeepAwakeFlag,
			&cli.BoolFlag{
				Name:  "quiet",
				Usage: "Suppress the completion summary",
			},
		},
		Action: sendAction,
	}
}

func sendAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return cli.Exit("send requires exactly one file argument", exitSendFailure)
	}
	filePath := c.Args().First()

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitSendFailure)
	}
	if v := c.Int("chunk-size"); v > 0 {
		cfg.ChunkSize = v
	}
	if v := c.Duration("cadence"); v > 0 {
		cfg.Cadence = config.Duration{Duration: v}
	}
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitSendFailure)
	}

	sessionID := uuid.NewString()
	remediation := c.String("remediate") != ""
	logger := log.NewLogger(&log.SessionMeta{
		SessionID:   sessionID,
		Role:        "send",
		Remediation: remediation,
	})
	defer iox.DiscardErr(logger.Sync)
	collector := metrics.NewCollector(sessionID, "send", 0)

	src, err := chunker.Open(filePath, cfg.ChunkSize)
	if err != nil {
		return cli.Exit(err.Error(), exitSendFailure)
	}
	defer src.Close()

	selector, err := loadSelector(c.String("remediate"), src)
	if err != nil {
		return cli.Exit(err.Error(), exitSendFailure)
	}

	logger.Info("broadcast starting", map[string]any{
		"file":       src.Name(),
		"size_bytes": src.Size(),
		"parts":      src.TotalParts(),
		"chunk_size": cfg.ChunkSize,
	})

	renderer, err := newRenderer()
	if err != nil {
		return cli.Exit(err.Error(), exitSendFailure)
	}
	presenter, err := newPresenter()
	if err != nil {
		return cli.Exit(err.Error(), exitSendFailure)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	if c.Bool("keep-awake") {
		stop := keepalive.Start(newClicker(), cfg.KeepAwakeEvery.Duration, logger)
		defer stop()
	}

	start := time.Now()
	units := make(chan *broadcast.Unit)
	runErrCh := make(chan error, 1)
	sched := broadcast.NewScheduler(renderer, logger, collector)
	go func() {
		err := sched.Run(ctx, src, selector, units)
		if err != nil {
			// Unblock Present, which otherwise waits for the sentinel.
			cancel()
		}
		runErrCh <- err
	}()

	presentErr := broadcast.Present(ctx, units, presenter, cfg.Cadence.Duration)
	runErr := <-runErrCh

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return cli.Exit(runErr.Error(), exitSendFailure)
	}
	if presentErr != nil && !errors.Is(presentErr, context.Canceled) {
		return cli.Exit(presentErr.Error(), exitSendFailure)
	}
	if errors.Is(runErr, context.Canceled) || errors.Is(presentErr, context.Canceled) {
		return cli.Exit("broadcast interrupted", exitSendInterrupted)
	}

	if !c.Bool("quiet") {
		snap := collector.Snapshot()
		fmt.Fprintf(os.Stdout, "sent %d of %d parts of %s in %s\n",
			snap.PartsSent, src.TotalParts(), src.Name(), time.Since(start).Round(time.Millisecond))
	}
	return nil
}

// loadSelector resolves the remediation part set, or nil for a full pass.
func loadSelector(manifestPath string, src *chunker.Source) (chunker.PartSet, error) {
	if manifestPath == "" {
		return nil, nil
	}
	m, err := draft.ReadManifest(manifestPath)
	if err != nil {
		return nil, err
	}
	if m.FileName != src.Name() {
		return nil, fmt.Errorf("manifest is for %q, not %q", m.FileName, src.Name())
	}
	if m.TotalParts != src.TotalParts() {
		return nil, fmt.Errorf("manifest expects %d parts but %s splits into %d; chunk size mismatch?",
			m.TotalParts, src.Name(), src.TotalParts())
	}
	if len(m.Missing) == 0 {
		return nil, fmt.Errorf("manifest %s lists no missing parts", manifestPath)
	}
	return chunker.NewPartSet(m.Missing), nil
}
