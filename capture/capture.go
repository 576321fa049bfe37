// Package capture implements the receiver's concurrent front end: one frame
// producer feeding a bounded queue, and a fixed pool of decode workers
// draining it in parallel.
//
// The two queues carry different loss policies. Raw frames are disposable:
// a stale frame is worth less than a fresh one, so a full frame queue means
// drop and keep grabbing. Decoded symbols are not disposable: a worker with
// a result blocks until the assembler makes room.
//
// Ordering across workers is not guaranteed and does not matter; part
// numbers re-establish total order at assembly time.
package capture

import (
	"context"
	"image"
	"sync"
	"time"

	"github.com/pithecene-io/prism/config"
	"github.com/pithecene-io/prism/log"
	"github.com/pithecene-io/prism/metrics"
)

// Grabber acquires one frame from the screen or camera. It is an external
// capability; Grab must honor ctx so workers can be torn down promptly.
type Grabber interface {
	Grab(ctx context.Context) (image.Image, error)
}

// Decoder extracts symbol payloads from a frame. A frame with no symbols
// yields an empty slice and no error.
type Decoder interface {
	Decode(img image.Image) ([][]byte, error)
}

// Pipeline owns the frame producer and the decode worker pool.
type Pipeline struct {
	grabber   Grabber
	decoder   Decoder
	cfg       *config.Config
	logger    *log.Logger
	collector *metrics.Collector

	frames  chan image.Image
	results chan []byte
	wg      sync.WaitGroup
	cancel  context.CancelFunc
}

// New creates a pipeline. Queue sizes, worker count, and grab pacing come
// from cfg.
func New(grabber Grabber, decoder Decoder, cfg *config.Config, logger *log.Logger, collector *metrics.Collector) *Pipeline {
	return &Pipeline{
		grabber:   grabber,
		decoder:   decoder,
		cfg:       cfg,
		logger:    logger,
		collector: collector,
		frames:    make(chan image.Image, cfg.FrameQueueSize),
		results:   make(chan []byte, cfg.ResultQueueSize),
	}
}

// Start launches the producer and the worker pool and returns the results
// queue. Call Stop once the assembler reaches a terminal state; the workers
// have no termination condition of their own.
func (p *Pipeline) Start(ctx context.Context) <-chan []byte {
	ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.produce(ctx)

	for i := 0; i < p.cfg.Decoders; i++ {
		p.wg.Add(1)
		go p.decodeLoop(ctx)
	}
	p.logger.Info("capture pipeline started", map[string]any{
		"decoders":    p.cfg.Decoders,
		"frame_queue": p.cfg.FrameQueueSize,
		"grab_fps":    p.cfg.GrabRate,
	})

	return p.results
}

// Stop tears down the producer and workers and waits for them to exit.
// Results already queued remain readable; the results channel is closed
// once the last worker exits.
func (p *Pipeline) Stop() {
	p.cancel()
	p.wg.Wait()
	close(p.results)
}

// produce grabs frames at the target rate. Capture faults are absorbed with
// a retry delay; a full frame queue drops the frame after a short offer
// timeout rather than blocking the producer.
func (p *Pipeline) produce(ctx context.Context) {
	defer p.wg.Done()

	interval := time.Second / time.Duration(p.cfg.GrabRate)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		img, err := p.grabber.Grab(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.collector.IncCaptureFault()
			p.logger.Warn("frame acquisition failed", map[string]any{"error": err.Error()})
			select {
			case <-ctx.Done():
				return
			case <-time.After(p.cfg.RetryDelay.Duration):
			}
			continue
		}
		p.collector.IncFrameGrabbed()

		offer := time.NewTimer(p.cfg.OfferTimeout.Duration)
		select {
		case p.frames <- img:
			offer.Stop()
		case <-offer.C:
			// Decoders are not keeping up. Staleness is worse than loss.
			p.collector.IncFrameDropped()
			p.logger.Warn("frame queue full, dropping frame", map[string]any{
				"queued": len(p.frames),
			})
		case <-ctx.Done():
			offer.Stop()
			return
		}
	}
}

// decodeLoop pulls frames and forwards the first decoded symbol of each.
// A decode fault for one frame never terminates the worker.
func (p *Pipeline) decodeLoop(ctx context.Context) {
	defer p.wg.Done()

	for {
		var img image.Image
		select {
		case <-ctx.Done():
			return
		case img = <-p.frames:
		}

		p.collector.IncDecodeAttempt()
		symbols, err := p.decoder.Decode(img)
		if err != nil {
			p.collector.IncDecodeFault()
			continue
		}
		if len(symbols) == 0 {
			continue
		}
		p.collector.IncDecodeHit()

		// Blocking send: decoded results must not be silently lost the
		// way raw frames may be.
		select {
		case p.results <- symbols[0]:
		case <-ctx.Done():
			return
		}
	}
}
