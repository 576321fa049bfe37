// Package metrics provides per-session counters for the transfer pipeline.
//
// The Collector accumulates counters during a single send or receive
// session. It is a leaf package with no internal dependencies. Counters
// are incremented live by the capture pipeline and the assembler; a
// Snapshot is taken once at session end for the summary.
package metrics

import "sync"

// Snapshot is an immutable point-in-time view of all session counters.
// Returned by Collector.Snapshot(). Safe to read concurrently after creation.
type Snapshot struct {
	// Capture
	FramesGrabbed int64
	FramesDropped int64
	CaptureFaults int64

	// Decode pool
	DecodeAttempts int64
	DecodeHits     int64
	DecodeFaults   int64

	// Assembly
	PartsAccepted  int64
	PartsDuplicate int64
	RecordsForeign int64
	RecordsInvalid int64

	// Broadcast
	PartsSent    int64
	PartsSkipped int64

	// Dimensions (informational, set at construction)
	SessionID string
	Role      string
	Decoders  int
}

// Collector accumulates counters during a single session.
// Thread-safe via sync.Mutex. All increment methods are nil-receiver safe.
type Collector struct {
	mu sync.Mutex

	framesGrabbed int64
	framesDropped int64
	captureFaults int64

	decodeAttempts int64
	decodeHits     int64
	decodeFaults   int64

	partsAccepted  int64
	partsDuplicate int64
	recordsForeign int64
	recordsInvalid int64

	partsSent    int64
	partsSkipped int64

	sessionID string
	role      string
	decoders  int
}

// NewCollector creates a Collector with dimension labels.
func NewCollector(sessionID, role string, decoders int) *Collector {
	return &Collector{
		sessionID: sessionID,
		role:      role,
		decoders:  decoders,
	}
}

// --- Capture ---

// IncFrameGrabbed records one acquired frame.
func (c *Collector) IncFrameGrabbed() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesGrabbed++
	c.mu.Unlock()
}

// IncFrameDropped records a frame dropped because the frame queue was full.
func (c *Collector) IncFrameDropped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.framesDropped++
	c.mu.Unlock()
}

// IncCaptureFault records a frame acquisition failure.
func (c *Collector) IncCaptureFault() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.captureFaults++
	c.mu.Unlock()
}

// --- Decode pool ---

// IncDecodeAttempt records one frame handed to the decode capability.
func (c *Collector) IncDecodeAttempt() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeAttempts++
	c.mu.Unlock()
}

// IncDecodeHit records a frame that yielded at least one symbol.
func (c *Collector) IncDecodeHit() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeHits++
	c.mu.Unlock()
}

// IncDecodeFault records a decode capability failure for one frame.
func (c *Collector) IncDecodeFault() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.decodeFaults++
	c.mu.Unlock()
}

// --- Assembly ---

// IncPartAccepted records a new part inserted into the session.
func (c *Collector) IncPartAccepted() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.partsAccepted++
	c.mu.Unlock()
}

// IncPartDuplicate records a re-delivered part ignored idempotently.
func (c *Collector) IncPartDuplicate() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.partsDuplicate++
	c.mu.Unlock()
}

// IncRecordForeign records a decoded symbol from an unrelated producer.
func (c *Collector) IncRecordForeign() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordsForeign++
	c.mu.Unlock()
}

// IncRecordInvalid records a symbol that failed envelope decoding.
func (c *Collector) IncRecordInvalid() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.recordsInvalid++
	c.mu.Unlock()
}

// --- Broadcast ---

// IncPartSent records a part rendered and handed to the presenter.
func (c *Collector) IncPartSent() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.partsSent++
	c.mu.Unlock()
}

// IncPartSkipped records a part excluded by the remediation selector.
func (c *Collector) IncPartSkipped() {
	if c == nil {
		return
	}
	c.mu.Lock()
	c.partsSkipped++
	c.mu.Unlock()
}

// --- Snapshot ---

// Snapshot returns an immutable point-in-time view of all counters.
// The returned Snapshot is safe to read concurrently; the Collector can
// continue to be mutated independently.
func (c *Collector) Snapshot() Snapshot {
	if c == nil {
		return Snapshot{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	return Snapshot{
		FramesGrabbed: c.framesGrabbed,
		FramesDropped: c.framesDropped,
		CaptureFaults: c.captureFaults,

		DecodeAttempts: c.decodeAttempts,
		DecodeHits:     c.decodeHits,
		DecodeFaults:   c.decodeFaults,

		PartsAccepted:  c.partsAccepted,
		PartsDuplicate: c.partsDuplicate,
		RecordsForeign: c.recordsForeign,
		RecordsInvalid: c.recordsInvalid,

		PartsSent:    c.partsSent,
		PartsSkipped: c.partsSkipped,

		SessionID: c.sessionID,
		Role:      c.role,
		Decoders:  c.decoders,
	}
}
