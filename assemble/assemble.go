// Package assemble owns the receive session state machine. One goroutine
// drains the decoded-results queue, binds session identity from the first
// accepted part, and decides among completion, stall, and interruption.
//
// Session state is owned exclusively by the Run loop. No other goroutine
// reads or writes the part map, so no locking is needed and the terminal
// persistence step sees a frozen snapshot by construction.
package assemble

import (
	"context"
	"fmt"
	"time"

	"github.com/pithecene-io/prism/chunker"
	"github.com/pithecene-io/prism/config"
	"github.com/pithecene-io/prism/draft"
	"github.com/pithecene-io/prism/envelope"
	"github.com/pithecene-io/prism/log"
	"github.com/pithecene-io/prism/metrics"
)

// Assembler consumes decoded symbol contents and reassembles one file per
// session.
type Assembler struct {
	store     *draft.Store
	cfg       *config.Config
	logger    *log.Logger
	collector *metrics.Collector
}

// session is the per-run mutable state. Identity (file name, total) is
// unbound until the first valid part arrives.
type session struct {
	fileName     string
	total        int
	chunks       map[int][]byte
	lastProgress time.Time
	resumed      int
}

// New creates an assembler writing artifacts through store.
func New(store *draft.Store, cfg *config.Config, logger *log.Logger, collector *metrics.Collector) *Assembler {
	return &Assembler{store: store, cfg: cfg, logger: logger, collector: collector}
}

// Run drains results until the session reaches a terminal state and returns
// how it ended. The stall clock starts only once identity is bound; before
// the first part the loop waits indefinitely for ctx or input.
//
// Run returns a non-nil Result even alongside an error: the Outcome is
// decided first, and the error reports a failed persistence step.
func (a *Assembler) Run(ctx context.Context, results <-chan []byte) (*Result, error) {
	sess := &session{chunks: map[int][]byte{}}
	poll := a.cfg.PollInterval.Duration
	stall := a.cfg.StallTimeout.Duration

	for {
		if sess.total > 0 && len(sess.chunks) < sess.total &&
			time.Since(sess.lastProgress) > stall {
			a.logger.Warn("no new parts within stall timeout", map[string]any{
				"file":     sess.fileName,
				"received": len(sess.chunks),
				"total":    sess.total,
			})
			return a.persistPartial(sess, OutcomeStalled)
		}

		select {
		case <-ctx.Done():
			return a.interrupted(sess)
		case raw, ok := <-results:
			if !ok {
				return a.interrupted(sess)
			}
			a.ingest(sess, raw)
			// Checked after every record, not only accepted ones: a
			// merged draft can complete the session while the incoming
			// part itself is a duplicate.
			if sess.total > 0 && len(sess.chunks) == sess.total {
				return a.finalize(sess)
			}
		case <-time.After(poll):
		}
	}
}

// ingest classifies one decoded text and folds it into the session. Only a
// newly accepted part advances the stall clock; foreign records, malformed
// records, and duplicates leave it untouched.
func (a *Assembler) ingest(sess *session, raw []byte) {
	env, err := envelope.Decode(string(raw))
	if err != nil {
		if envelope.IsForeign(err) {
			a.collector.IncRecordForeign()
			a.logger.Debug("ignoring foreign record", map[string]any{"error": err.Error()})
		} else {
			a.collector.IncRecordInvalid()
			a.logger.Debug("ignoring invalid record", map[string]any{"error": err.Error()})
		}
		return
	}

	if sess.total == 0 {
		a.bind(sess, env)
	} else if env.Name != sess.fileName || env.Total != sess.total {
		a.collector.IncRecordForeign()
		a.logger.Warn("record belongs to a different session", map[string]any{
			"file":  env.Name,
			"total": env.Total,
		})
		return
	}

	if env.Part > sess.total {
		a.collector.IncRecordInvalid()
		a.logger.Warn("part number exceeds declared total", map[string]any{
			"part":  env.Part,
			"total": sess.total,
		})
		return
	}

	if _, dup := sess.chunks[env.Part]; dup {
		a.collector.IncPartDuplicate()
		return
	}
	sess.chunks[env.Part] = env.Payload
	sess.lastProgress = time.Now()
	a.collector.IncPartAccepted()
	a.logger.Info("part accepted", map[string]any{
		"part":     env.Part,
		"received": len(sess.chunks),
		"total":    sess.total,
	})
}

// bind fixes session identity from the first accepted envelope and merges
// any persisted draft for the same file, so a remediation pass only needs
// the parts the previous session missed.
func (a *Assembler) bind(sess *session, env *envelope.Envelope) {
	sess.fileName = env.Name
	sess.total = env.Total
	// The stall clock starts at bind. Without this, a first envelope that
	// duplicates a part merged from a resumed draft would leave the clock at
	// its zero value and the session would stall on the next poll.
	sess.lastProgress = time.Now()
	a.logger.Info("session bound", map[string]any{
		"file":  sess.fileName,
		"total": sess.total,
	})

	prior, err := a.store.Load(sess.fileName, sess.total)
	if err != nil {
		a.logger.Warn("draft unreadable, starting fresh", map[string]any{
			"file":  sess.fileName,
			"error": err.Error(),
		})
		return
	}
	for part, data := range prior {
		sess.chunks[part] = data
	}
	sess.resumed = len(prior)
	if sess.resumed > 0 {
		a.logger.Info("resumed from draft", map[string]any{
			"file":  sess.fileName,
			"parts": sess.resumed,
		})
	}
}

// finalize writes the restored file and clears session artifacts.
func (a *Assembler) finalize(sess *session) (*Result, error) {
	res := &Result{
		Outcome:  OutcomeComplete,
		FileName: sess.fileName,
		Total:    sess.total,
		Received: len(sess.chunks),
	}
	path, err := a.store.WriteRestored(sess.fileName, sess.total, sess.chunks)
	if err != nil {
		return res, fmt.Errorf("restoring %s: %w", sess.fileName, err)
	}
	res.RestoredPath = path
	if err := a.store.Clear(sess.fileName); err != nil {
		return res, fmt.Errorf("clearing session artifacts: %w", err)
	}
	a.logger.Info("file restored", map[string]any{
		"file":  sess.fileName,
		"path":  path,
		"parts": sess.total,
	})
	return res, nil
}

// interrupted handles external cancellation. The narrow race where every
// part arrived but finalize had not run yet writes nothing: persisting a
// "complete draft" would claim nothing is missing, and a re-run recaptures
// cleanly.
func (a *Assembler) interrupted(sess *session) (*Result, error) {
	if sess.total > 0 && len(sess.chunks) == sess.total {
		a.logger.Warn("interrupted after final part, nothing persisted", map[string]any{
			"file": sess.fileName,
		})
		return &Result{
			Outcome:         OutcomeInterrupted,
			FileName:        sess.fileName,
			Total:           sess.total,
			Received:        len(sess.chunks),
			AllPartsUnsaved: true,
		}, nil
	}
	return a.persistPartial(sess, OutcomeInterrupted)
}

// persistPartial saves a draft and manifest for a session that received
// something, or reports an empty session without writing anything.
func (a *Assembler) persistPartial(sess *session, outcome Outcome) (*Result, error) {
	if sess.total == 0 {
		a.logger.Warn("session ended with nothing received", nil)
		return &Result{Outcome: OutcomeEmpty}, nil
	}

	res := &Result{
		Outcome:  outcome,
		FileName: sess.fileName,
		Total:    sess.total,
		Received: len(sess.chunks),
		Missing:  chunker.Missing(sess.total, sess.chunks),
	}
	saved, err := a.store.Save(sess.fileName, sess.total, sess.chunks)
	if err != nil {
		return res, fmt.Errorf("persisting draft for %s: %w", sess.fileName, err)
	}
	res.DraftPath = saved.DraftPath
	res.ManifestPath = saved.ManifestPath
	a.logger.Info("partial session persisted", map[string]any{
		"file":     sess.fileName,
		"received": len(sess.chunks),
		"total":    sess.total,
		"missing":  len(res.Missing),
		"manifest": saved.ManifestPath,
	})
	a.logger.Info("to re-send the missing parts, run: prism send --remediate "+saved.ManifestPath, nil)
	return res, nil
}
