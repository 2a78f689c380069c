// Package scanner runs the market scan loop: it iterates configured token
// pairs, feeds the quote gateway's results to the detector, and publishes
// the surviving opportunities.
package scanner

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/atomx-labs/atomx/internal/detector"
	"github.com/atomx-labs/atomx/internal/events"
	"github.com/atomx-labs/atomx/internal/quote"
)

var (
	ErrAlreadyRunning = errors.New("scan loop already running")
	ErrNotRunning     = errors.New("scan loop not running")
)

// QuoteSource supplies paired forward/reverse quotes. Satisfied by the quote
// gateway client.
type QuoteSource interface {
	PairQuotes(ctx context.Context, pair quote.TokenPair, baseAmount, quoteAmount uint64) (forward, reverse []quote.Quote, err error)
}

// Config configures the scan loop.
type Config struct {
	Pairs           []quote.TokenPair
	ScanInterval    time.Duration
	PairDelay       time.Duration
	TestVolumeUSD   float64
	FreshnessWindow time.Duration
	Filter          detector.Filter
}

// Status is the scanner's externally visible state.
type Status struct {
	IsRunning    bool
	ScanCount    int64
	LastScanTime time.Time
}

// Service is the scan loop. It holds exactly two states, stopped and
// scanning; a start while running is an error, never a second loop. Pair
// scans run sequentially on purpose, pacing the gateway's rate budget, and
// the published result set is replaced wholesale at the end of each cycle.
type Service struct {
	source   QuoteSource
	detector *detector.Detector
	bus      *events.Bus
	cfg      Config
	logger   *zap.Logger

	mu           sync.RWMutex
	running      bool
	stopCh       chan struct{}
	doneCh       chan struct{}
	scanCount    int64
	lastScanTime time.Time
	current      []detector.Opportunity
	lastErrors   []string
}

// NewService creates a scanner around a quote source and detector.
func NewService(source QuoteSource, det *detector.Detector, bus *events.Bus, cfg Config, logger *zap.Logger) *Service {
	if cfg.FreshnessWindow == 0 {
		cfg.FreshnessWindow = detector.DefaultFreshnessWindow
	}
	return &Service{
		source:   source,
		detector: det,
		bus:      bus,
		cfg:      cfg,
		logger:   logger.Named("scan_service"),
	}
}

// Start launches the scan loop. ctx bounds the loop's I/O; cancellation via
// Stop takes effect at the next iteration boundary, not mid-fetch.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return ErrAlreadyRunning
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.doneCh = make(chan struct{})
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	s.publishStatus(true, "started")
	s.logger.Info("scan loop started",
		zap.Int("pairs", len(s.cfg.Pairs)),
		zap.Duration("interval", s.cfg.ScanInterval))

	go s.run(ctx, stopCh, doneCh)
	return nil
}

// Stop requests loop shutdown and waits for the current cycle to finish.
func (s *Service) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return ErrNotRunning
	}
	stopCh, doneCh := s.stopCh, s.doneCh
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	return nil
}

func (s *Service) run(ctx context.Context, stopCh, doneCh chan struct{}) {
	defer func() {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		s.publishStatus(false, "stopped")
		s.logger.Info("scan loop stopped")
		close(doneCh)
	}()

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		default:
		}

		s.scanCycle(ctx)

		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-time.After(s.cfg.ScanInterval):
		}
	}
}

// ScanOnce runs a single synchronous pass and returns what it found. It
// refuses to overlap a running loop.
func (s *Service) ScanOnce(ctx context.Context) ([]detector.Opportunity, error) {
	s.mu.RLock()
	running := s.running
	s.mu.RUnlock()
	if running {
		return nil, ErrAlreadyRunning
	}
	return s.scanCycle(ctx), nil
}

// scanCycle scans every configured pair, isolating per-pair failures: one
// bad pair is recorded and the cycle moves on.
func (s *Service) scanCycle(ctx context.Context) []detector.Opportunity {
	start := time.Now()
	cycle := s.nextCycle()

	_ = s.bus.Publish(events.ScanStartedEvent{
		BaseEvent: events.NewBase(events.ScanStarted),
		Cycle:     cycle,
		Pairs:     len(s.cfg.Pairs),
	})

	var (
		found    []detector.Opportunity
		scanErrs []string
	)
	for i, pair := range s.cfg.Pairs {
		if ctx.Err() != nil {
			scanErrs = append(scanErrs, fmt.Sprintf("%s: %v", pair, ctx.Err()))
			break
		}
		if i > 0 && s.cfg.PairDelay > 0 {
			select {
			case <-ctx.Done():
			case <-time.After(s.cfg.PairDelay):
			}
		}

		opp, err := s.scanPair(ctx, pair)
		if err != nil {
			scanErrs = append(scanErrs, fmt.Sprintf("%s: %v", pair, err))
			s.logger.Warn("pair scan failed",
				zap.String("pair", pair.String()),
				zap.Error(err))
			continue
		}
		if opp != nil {
			found = append(found, *opp)
			_ = s.bus.Publish(events.OpportunityFoundEvent{
				BaseEvent:   events.NewBase(events.OpportunityFound),
				Pair:        pair.String(),
				ProfitUSD:   opp.ProfitUSD,
				ProfitPct:   opp.ProfitPct,
				Confidence:  opp.Confidence.String(),
				Opportunity: *opp,
			})
		}
	}

	detector.Sort(found)
	found = s.cfg.Filter.Apply(found)

	s.mu.Lock()
	s.current = found
	s.lastErrors = scanErrs
	s.lastScanTime = time.Now()
	s.mu.Unlock()

	_ = s.bus.Publish(events.ScanCompletedEvent{
		BaseEvent:     events.NewBase(events.ScanCompleted),
		Cycle:         cycle,
		Opportunities: len(found),
		Errors:        scanErrs,
		Duration:      time.Since(start),
	})

	s.logger.Info("scan cycle completed",
		zap.Int64("cycle", cycle),
		zap.Int("opportunities", len(found)),
		zap.Int("errors", len(scanErrs)),
		zap.Duration("duration", time.Since(start)))
	return found
}

func (s *Service) scanPair(ctx context.Context, pair quote.TokenPair) (*detector.Opportunity, error) {
	baseAmount := probeAmount(pair.BaseDecimals)
	quoteAmount := probeAmount(pair.QuoteDecimals)

	forward, reverse, err := s.source.PairQuotes(ctx, pair, baseAmount, quoteAmount)
	if err != nil {
		return nil, err
	}
	opp, ok := s.detector.Detect(pair, forward, reverse, s.cfg.TestVolumeUSD)
	if !ok {
		return nil, nil
	}
	return &opp, nil
}

// Status returns the scanner's current state.
func (s *Service) Status() Status {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return Status{
		IsRunning:    s.running,
		ScanCount:    s.scanCount,
		LastScanTime: s.lastScanTime,
	}
}

// Opportunities returns the fresh slice of the last completed cycle's
// results. Readers see whole-cycle granularity, never a half-built set.
func (s *Service) Opportunities() []detector.Opportunity {
	s.mu.RLock()
	snapshot := make([]detector.Opportunity, len(s.current))
	copy(snapshot, s.current)
	s.mu.RUnlock()
	return detector.Fresh(snapshot, time.Now(), s.cfg.FreshnessWindow)
}

// Errors returns the last cycle's per-pair error list.
func (s *Service) Errors() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, len(s.lastErrors))
	copy(out, s.lastErrors)
	return out
}

func (s *Service) nextCycle() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.scanCount++
	return s.scanCount
}

func (s *Service) publishStatus(running bool, reason string) {
	_ = s.bus.Publish(events.StatusChangedEvent{
		BaseEvent: events.NewBase(events.StatusChanged),
		Running:   running,
		Reason:    reason,
	})
}

// probeAmount is one whole token in raw units, the measurement size for
// venue quotes.
func probeAmount(decimals int) uint64 {
	return uint64(math.Pow10(decimals))
}
