package iox

import (
	"errors"
	"testing"
)

type trackingCloser struct{ closed bool }

func (c *trackingCloser) Close() error { c.closed = true; return errors.New("ignored") }

func TestDiscardClose(t *testing.T) {
	c := &trackingCloser{}
	DiscardClose(c)
	if !c.closed {
		t.Error("Close was not called")
	}
}

func TestCloseFunc(t *testing.T) {
	c := &trackingCloser{}
	fn := CloseFunc(c)
	if c.closed {
		t.Error("Close called before the returned func ran")
	}
	fn()
	if !c.closed {
		t.Error("Close was not called")
	}
}

func TestDiscardErr(t *testing.T) {
	ran := false
	DiscardErr(func() error {
		ran = true
		return errors.New("ignored")
	})
	if !ran {
		t.Error("fn was not called")
	}
}
