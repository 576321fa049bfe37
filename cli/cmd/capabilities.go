package cmd

import (
	"errors"
	"fmt"

	"github.com/pithecene-io/prism/broadcast"
	"github.com/pithecene-io/prism/capture"
	"github.com/pithecene-io/prism/keepalive"
)

// ErrCapabilityUnavailable indicates the build carries no implementation
// for a platform capability the command needs.
var ErrCapabilityUnavailable = errors.New("capability not linked into this build")

// Platform capabilities are injected through these constructors so the core
// pipeline stays testable and portable. Platform builds replace them in an
// init function; tests swap them per case.
var (
	// newRenderer supplies the symbol renderer used by send.
	newRenderer = func() (broadcast.Renderer, error) {
		return nil, fmt.Errorf("symbol renderer: %w", ErrCapabilityUnavailable)
	}

	// newPresenter supplies the display surface used by send.
	newPresenter = func() (broadcast.Presenter, error) {
		return nil, fmt.Errorf("symbol presenter: %w", ErrCapabilityUnavailable)
	}

	// newGrabber supplies the frame source used by receive.
	newGrabber = func() (capture.Grabber, error) {
		return nil, fmt.Errorf("frame grabber: %w", ErrCapabilityUnavailable)
	}

	// newDecoder supplies the symbol decoder used by receive.
	newDecoder = func() (capture.Decoder, error) {
		return nil, fmt.Errorf("symbol decoder: %w", ErrCapabilityUnavailable)
	}

	// newClicker supplies the input synthesizer used by --keep-awake. A nil
	// clicker downgrades keep-awake to a warning rather than an error.
	newClicker = func() keepalive.Clicker {
		return nil
	}
)
