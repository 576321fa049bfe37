package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/urfave/cli/v2"

	"github.com/pithecene-io/prism/archive"
	"github.com/pithecene-io/prism/assemble"
	"github.com/pithecene-io/prism/capture"
	"github.com/pithecene-io/prism/cli/render"
	"github.com/pithecene-io/prism/cli/view"
	"github.com/pithecene-io/prism/config"
	"github.com/pithecene-io/prism/draft"
	"github.com/pithecene-io/prism/iox"
	"github.com/pithecene-io/prism/keepalive"
	"github.com/pithecene-io/prism/log"
	"github.com/pithecene-io/prism/metrics"
)

// Receive exit codes.
const (
	exitReceiveComplete    = 0
	exitReceiveStalled     = 1
	exitReceiveInterrupted = 2
	exitReceiveEmpty       = 3
)

// ReceiveCommand returns the receive command.
func ReceiveCommand() *cli.Command {
	return &cli.Command{
		Name:  "receive",
		Usage: "Capture symbols from the screen and reassemble the file",
		Flags: append([]cli.Flag{
			ConfigFlag,
			&cli.IntFlag{
				Name:  "chunk-size",
				Usage: "Chunk size in bytes (must match the sender)",
			},
			&cli.DurationFlag{
				Name:  "stall-timeout",
				Usage: "Inactivity interval after which the session is persisted as a draft",
			},
			&cli.IntFlag{
				Name:  "workers",
				Usage: "Decode worker pool size (default: CPU count)",
			},
			&cli.StringFlag{
				Name:  "out-dir",
				Usage: "Directory for restored files, drafts, and manifests",
			},
			&cli.StringFlag{
				Name:  "archive-s3",
				Usage: "Upload the restored file to S3 at bucket/prefix",
			},
			&cli.StringFlag{
				Name:  "archive-region",
				Usage: "AWS region for --archive-s3",
			},
			&cli.StringFlag{
				Name:  "archive-endpoint",
				Usage: "Custom S3 endpoint (MinIO, R2)",
			},
			&cli.BoolFlag{
				Name:  "archive-path-style",
				Usage: "Force path-style S3 addressing",
			},
			&cli.StringFlag{
				Name:  "archive-dir",
				Usage: "Copy the restored file into a directory",
			},
			KeepAwakeFlag,
		}, ReadOnlyFlags()...),
		Action: receiveAction,
	}
}

func receiveAction(c *cli.Context) error {
	if c.Bool("tui") {
		return cli.Exit("--tui is not supported for receive", exitReceiveEmpty)
	}
	r, err := render.NewRenderer(c)
	if err != nil {
		return cli.Exit(err.Error(), exitReceiveEmpty)
	}

	cfg, err := loadConfig(c)
	if err != nil {
		return cli.Exit(err.Error(), exitReceiveEmpty)
	}
	applyReceiveOverrides(cfg, c)
	if err := cfg.Validate(); err != nil {
		return cli.Exit(err.Error(), exitReceiveEmpty)
	}

	sessionID := uuid.NewString()
	logger := log.NewLogger(&log.SessionMeta{SessionID: sessionID, Role: "receive"})
	defer iox.DiscardErr(logger.Sync)
	collector := metrics.NewCollector(sessionID, "receive", cfg.Decoders)

	grabber, err := newGrabber()
	if err != nil {
		return cli.Exit(err.Error(), exitReceiveEmpty)
	}
	decoder, err := newDecoder()
	if err != nil {
		return cli.Exit(err.Error(), exitReceiveEmpty)
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

	pipeline := capture.New(grabber, decoder, cfg, logger, collector)
	results := pipeline.Start(ctx)

	store := draft.NewStore(cfg.OutDir, cfg.ChunkSize, logger)
	asm := assemble.New(store, cfg, logger, collector)
	res, runErr := asm.Run(ctx, results)
	pipeline.Stop()

	snap := collector.Snapshot()
	logger.Info("session metrics", map[string]any{
		"frames_grabbed":  snap.FramesGrabbed,
		"frames_dropped":  snap.FramesDropped,
		"decode_hits":     snap.DecodeHits,
		"parts_accepted":  snap.PartsAccepted,
		"parts_duplicate": snap.PartsDuplicate,
	})

	if runErr != nil {
		return cli.Exit(runErr.Error(), exitReceiveEmpty)
	}

	summary := summarize(res)
	if res.Outcome == assemble.OutcomeComplete {
		if dest, err := archiveRestored(cfg, res.RestoredPath, logger); err != nil {
			// The restored file is on disk; a failed upload degrades, it
			// does not fail the transfer.
			logger.Error("archive upload failed", map[string]any{"error": err.Error()})
		} else if dest != "" {
			summary.ArchivedTo = dest
		}
	}

	if err := r.Render(summary); err != nil {
		return cli.Exit(err.Error(), exitReceiveEmpty)
	}
	if code := outcomeExitCode(res.Outcome); code != exitReceiveComplete {
		return cli.Exit("", code)
	}
	return nil
}

func applyReceiveOverrides(cfg *config.Config, c *cli.Context) {
	if v := c.Int("chunk-size"); v > 0 {
		cfg.ChunkSize = v
	}
	if v := c.Duration("stall-timeout"); v > 0 {
		cfg.StallTimeout = config.Duration{Duration: v}
	}
	if v := c.Int("workers"); v > 0 {
		cfg.Decoders = v
	}
	if v := c.String("out-dir"); v != "" {
		cfg.OutDir = v
	}
	if v := c.String("archive-s3"); v != "" {
		cfg.Archive.Backend = "s3"
		cfg.Archive.Path = v
	}
	if v := c.String("archive-dir"); v != "" {
		cfg.Archive.Backend = "fs"
		cfg.Archive.Path = v
	}
	if v := c.String("archive-region"); v != "" {
		cfg.Archive.Region = v
	}
	if v := c.String("archive-endpoint"); v != "" {
		cfg.Archive.Endpoint = v
	}
	if c.Bool("archive-path-style") {
		cfg.Archive.PathStyle = true
	}
}

// summarize converts an assembler result into the output payload.
func summarize(res *assemble.Result) *view.SummaryView {
	return &view.SummaryView{
		Outcome:      string(res.Outcome),
		FileName:     res.FileName,
		TotalParts:   res.Total,
		Received:     res.Received,
		Missing:      res.Missing,
		RestoredPath: res.RestoredPath,
		ManifestPath: res.ManifestPath,
	}
}

// archiveRestored uploads the restored file when an archive backend is
// configured. Returns the destination, or empty when archiving is off.
// The upload runs on its own deadline: the session context may already be
// canceled by the time a completed transfer gets here.
func archiveRestored(cfg *config.Config, localPath string, logger *log.Logger) (string, error) {
	uploadCtx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	var store archive.Store
	switch cfg.Archive.Backend {
	case "":
		return "", nil
	case "s3":
		bucket, prefix := archive.ParsePath(cfg.Archive.Path)
		s3Store, err := archive.NewS3Store(uploadCtx, archive.S3Config{
			Bucket:       bucket,
			Prefix:       prefix,
			Region:       cfg.Archive.Region,
			Endpoint:     cfg.Archive.Endpoint,
			UsePathStyle: cfg.Archive.PathStyle,
		})
		if err != nil {
			return "", err
		}
		store = s3Store
	case "fs":
		fsStore, err := archive.NewFSStore(cfg.Archive.Path)
		if err != nil {
			return "", err
		}
		store = fsStore
	default:
		return "", fmt.Errorf("unknown archive backend %q", cfg.Archive.Backend)
	}

	start := time.Now()
	dest, err := store.Upload(uploadCtx, localPath)
	if err != nil {
		return "", err
	}
	logger.Info("restored file archived", map[string]any{
		"dest":     dest,
		"duration": time.Since(start).String(),
	})
	return dest, nil
}

// outcomeExitCode maps a session outcome to the process exit code.
func outcomeExitCode(o assemble.Outcome) int {
	switch o {
	case assemble.OutcomeComplete:
		return exitReceiveComplete
	case assemble.OutcomeStalled:
		return exitReceiveStalled
	case assemble.OutcomeInterrupted:
		return exitReceiveInterrupted
	default:
		return exitReceiveEmpty
	}
}
