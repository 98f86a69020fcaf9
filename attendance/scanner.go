package attendance

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"attendance-server-go/decoder"
	"attendance-server-go/models"
)

// HostContext supplies the host a scan is recorded against. It is read once
// per scan attempt; freshness is the session owner's concern.
type HostContext interface {
	CurrentHost() models.Host
}

// StaticHost is a fixed HostContext.
type StaticHost models.Host

// CurrentHost implements HostContext.
func (h StaticHost) CurrentHost() models.Host {
	return models.Host(h)
}

// Scanner drives one scanning device: decoder results pass the in-flight
// guard and the debouncer before reaching the marker.
type Scanner struct {
	marker    *Marker
	debouncer *Debouncer
	host      HostContext
	onStatus  func(Status)

	guard  InFlight
	wg     sync.WaitGroup
	mu     sync.Mutex
	halted bool
}

// NewScanner creates a Scanner. onStatus receives every terminal Status and may be nil.
func NewScanner(marker *Marker, debouncer *Debouncer, host HostContext, onStatus func(Status)) *Scanner {
	return &Scanner{
		marker:    marker,
		debouncer: debouncer,
		host:      host,
		onStatus:  onStatus,
	}
}

// Handle processes one decoder callback. It returns ErrDecoderFault once the
// session has halted; every other outcome is reported through onStatus.
// Accepted scans are marked asynchronously; use Wait to drain them.
func (s *Scanner) Handle(ctx context.Context, res decoder.Result) error {
	if s.Halted() {
		return ErrDecoderFault
	}

	if res.Err != nil {
		switch {
		case errors.Is(res.Err, decoder.ErrNotFound):
			return nil
		case decoder.IsFatal(res.Err):
			s.halt()
			log.Printf("[scanner] decoder fault, halting: %v", res.Err)
			err := fmt.Errorf("%w: %w", ErrDecoderFault, res.Err)
			s.publish(Status{Kind: KindDecoderFault, Err: err})
			return err
		default:
			log.Printf("[scanner] warning: decoder error: %v", res.Err)
			return nil
		}
	}
	if strings.TrimSpace(res.Text) == "" {
		return nil
	}

	if !s.guard.TryAcquire() {
		return nil
	}
	if !s.debouncer.ShouldProcess(res.Text) {
		s.guard.Release()
		return nil
	}

	host := s.host.CurrentHost()
	// In-flight writes finish even if the scanning view goes away.
	markCtx := context.WithoutCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		st := s.marker.Mark(markCtx, res.Text, host)
		s.guard.Release()
		s.publish(st)
	}()
	return nil
}

// Run consumes results until the channel closes, ctx is done or the decoder faults.
func (s *Scanner) Run(ctx context.Context, results <-chan decoder.Result) error {
	defer s.Wait()
	for {
		select {
		case <-ctx.Done():
			return nil
		case res, ok := <-results:
			if !ok {
				return nil
			}
			if err := s.Handle(ctx, res); err != nil {
				return err
			}
		}
	}
}

// Wait blocks until in-flight marks complete.
func (s *Scanner) Wait() {
	s.wg.Wait()
}

// Busy reports whether a scan is being marked.
func (s *Scanner) Busy() bool {
	return s.guard.Busy()
}

// Halted reports whether a decoder fault stopped the session.
func (s *Scanner) Halted() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.halted
}

// Restart clears a halt and the debounce set, as when the scanning view is reopened.
func (s *Scanner) Restart() {
	s.mu.Lock()
	s.halted = false
	s.mu.Unlock()
	s.debouncer.Stop()
}

func (s *Scanner) halt() {
	s.mu.Lock()
	s.halted = true
	s.mu.Unlock()
}

func (s *Scanner) publish(st Status) {
	if s.onStatus != nil {
		s.onStatus(st)
	}
}
