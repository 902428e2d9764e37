// Copyright Conversation Gateway Authors
// SPDX-License-Identifier: Apache-2.0

package services

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/tadagpt/conversation-gateway/pkg/observability/logging"
)

// Sweepable purges stale conversations across all clients.
// Implemented by ConversationService.
type Sweepable interface {
	Sweep(ctx context.Context) (int, error)
}

// Sweeper runs Sweep on a fixed interval in the background.
type Sweeper struct {
	target   Sweepable
	interval time.Duration
	logger   *logging.Logger

	mu     sync.Mutex
	cancel context.CancelFunc
	done   chan struct{}
}

// NewSweeper creates a Sweeper. An interval of zero or less disables it:
// Start then does nothing.
func NewSweeper(target Sweepable, interval time.Duration, logger *logging.Logger) *Sweeper {
	if logger == nil {
		logger = logging.Discard()
	}
	return &Sweeper{
		target:   target,
		interval: interval,
		logger:   logger.Component("sweeper"),
	}
}

// Start launches the sweep loop. Calling Start on a running sweeper is a no-op.
func (s *Sweeper) Start(ctx context.Context) {
	if s.interval <= 0 {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return
	}

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.done = make(chan struct{})
	go s.run(ctx, s.done)

	s.logger.Info("sweeper started", "interval", s.interval.String())
}

func (s *Sweeper) run(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}

		removed, err := s.target.Sweep(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			s.logger.Warn("sweep failed", "error", err)
			continue
		}
		if removed > 0 {
			s.logger.Info("sweep finished", "removed", removed)
		}
	}
}

// Stop ends the loop and waits for an in-flight sweep to return.
func (s *Sweeper) Stop() {
	s.mu.Lock()
	cancel, done := s.cancel, s.done
	s.cancel, s.done = nil, nil
	s.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
	s.logger.Info("sweeper stopped")
}
