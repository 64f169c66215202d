package faceengine

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
)

// Factory builds a ready-to-use analyzer. It runs at most once successfully per Handle.
type Factory func(ctx context.Context) (Analyzer, error)

// Handle is the process-wide engine handle. The analyzer is created on first use and
// reused afterwards; a failed initialisation is retried by the next caller.
type Handle struct {
	factory   Factory
	analyzer  atomic.Pointer[analyzerBox]
	initMu    sync.Mutex
	serialize bool
	inferMu   sync.Mutex
}

type analyzerBox struct {
	a Analyzer
}

// NewHandle wraps factory. With serialize set, inference calls run one at a time.
func NewHandle(factory Factory, serialize bool) *Handle {
	return &Handle{factory: factory, serialize: serialize}
}

// NewClientHandle returns a handle whose first use prepares the client's model.
func NewClientHandle(c *Client, serialize bool) *Handle {
	return NewHandle(func(ctx context.Context) (Analyzer, error) {
		if err := c.Prepare(ctx); err != nil {
			return nil, err
		}
		return c, nil
	}, serialize)
}

// Init initialises the analyzer if that has not happened yet.
func (h *Handle) Init(ctx context.Context) error {
	_, err := h.get(ctx)
	return err
}

// Ready reports whether the analyzer has been initialised.
func (h *Handle) Ready() bool {
	return h.analyzer.Load() != nil
}

func (h *Handle) get(ctx context.Context) (Analyzer, error) {
	if box := h.analyzer.Load(); box != nil {
		return box.a, nil
	}

	h.initMu.Lock()
	defer h.initMu.Unlock()

	if box := h.analyzer.Load(); box != nil {
		return box.a, nil
	}

	a, err := h.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("initializing face engine: %w", err)
	}
	h.analyzer.Store(&analyzerBox{a: a})
	return a, nil
}

// Analyze implements Analyzer.
func (h *Handle) Analyze(ctx context.Context, imageData []byte) ([]DetectedFace, error) {
	a, err := h.get(ctx)
	if err != nil {
		return nil, err
	}

	if h.serialize {
		h.inferMu.Lock()
		defer h.inferMu.Unlock()
	}
	return a.Analyze(ctx, imageData)
}
