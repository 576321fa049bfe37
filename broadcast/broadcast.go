// Package broadcast drives the sender side: it walks a chunk source,
// wraps each chunk in an envelope, renders it through the injected symbol
// capability, and hands rendered units to the presentation layer one at a
// time through an unbuffered channel.
//
// That single-slot rendezvous is the sole backpressure mechanism: the
// scheduler never gets more than one unit ahead of the display. A nil unit
// on the channel is the end-of-sequence sentinel.
package broadcast

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/pithecene-io/prism/chunker"
	"github.com/pithecene-io/prism/envelope"
	"github.com/pithecene-io/prism/log"
	"github.com/pithecene-io/prism/metrics"
)

// Renderer turns a transport string into a visual symbol. It is an external
// capability; this package never inspects the returned image.
type Renderer interface {
	Render(text string) (image.Image, error)
}

// Unit is one rendered symbol ready for presentation.
type Unit struct {
	// Part is the 1-based part number carried by the symbol.
	Part int
	// Total is the session part count.
	Total int
	// Image is the rendered symbol.
	Image image.Image
}

// Scheduler encodes and renders chunks at the pace the presenter consumes
// them.
type Scheduler struct {
	renderer  Renderer
	logger    *log.Logger
	collector *metrics.Collector
}

// NewScheduler creates a scheduler around the injected render capability.
func NewScheduler(renderer Renderer, logger *log.Logger, collector *metrics.Collector) *Scheduler {
	return &Scheduler{renderer: renderer, logger: logger, collector: collector}
}

// Run walks src and sends one rendered unit per selected part to out,
// blocking on each send until the presenter has consumed the previous unit.
// A nil selector selects every part; a remediation pass passes the missing
// set. After the last selected part Run sends the nil sentinel and returns.
//
// Render faults are fatal for the pass: a sender that cannot produce
// symbols has nothing useful to display.
func (s *Scheduler) Run(ctx context.Context, src *chunker.Source, selector chunker.PartSet, out chan<- *Unit) error {
	name := src.Name()
	total := src.TotalParts()

	for src.Next() {
		part := src.Part()
		if !selector.Has(part) {
			s.collector.IncPartSkipped()
			continue
		}

		text, err := envelope.Encode(&envelope.Envelope{
			Part:    part,
			Total:   total,
			Name:    name,
			Payload: src.Data(),
		})
		if err != nil {
			return fmt.Errorf("encoding part %d: %w", part, err)
		}

		img, err := s.renderer.Render(text)
		if err != nil {
			return fmt.Errorf("rendering part %d: %w", part, err)
		}

		select {
		case out <- &Unit{Part: part, Total: total, Image: img}:
		case <-ctx.Done():
			return ctx.Err()
		}
		s.collector.IncPartSent()
		s.logger.Info("part handed to presenter", map[string]any{
			"part":  part,
			"total": total,
		})
	}
	if err := src.Err(); err != nil {
		return fmt.Errorf("chunk source terminated early: %w", err)
	}

	select {
	case out <- nil:
	case <-ctx.Done():
		return ctx.Err()
	}
	return nil
}

// Presenter is the presentation boundary: it owns whatever surface the
// symbols appear on. Window management is outside this package.
type Presenter interface {
	// Present displays one unit, replacing the previous one.
	Present(unit *Unit) error
	// Done is called once after the sentinel; the presenter may show a
	// completion notice.
	Done() error
}

// Present consumes units from the rendezvous at a steady cadence, holding
// each symbol on screen for one interval before accepting the next. It
// returns after presenting the sentinel or when ctx is canceled.
func Present(ctx context.Context, units <-chan *Unit, p Presenter, cadence time.Duration) error {
	ticker := time.NewTicker(cadence)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case unit := <-units:
			if unit == nil {
				return p.Done()
			}
			if err := p.Present(unit); err != nil {
				return err
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
			}
		}
	}
}
