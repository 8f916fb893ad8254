/*
scheduler.go - Promotion announcer

PURPOSE:
  Periodically checks the promotion registry and sends one notification
  per promotion on the first day it is active, listing the boosted rates.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - A promotion is announced when today falls inside its window and it
    has not been announced by this process yet
  - Announced names are remembered in memory; a restart re-announces
    promotions that are still running
  - Notification failures are logged and the promotion is retried on
    the next tick

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether the announcer is active (default: true)

USAGE:
  announcer := NewPromotionAnnouncer(engine, logger)
  announcer.Start()
  // ... later
  announcer.Stop()

SEE ALSO:
  - cashback/messages.go: PromotionMessage
  - cashback/engine.go: Announce
*/
package api

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/warp/cashback-engine/cashback"
)

// PromotionAnnouncer notifies the shop's channel when promotions open.
type PromotionAnnouncer struct {
	Engine        *cashback.Engine
	Logger        *slog.Logger
	CheckInterval time.Duration
	Enabled       bool

	announced map[string]bool // folded promotion name

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
}

// NewPromotionAnnouncer creates a new announcer.
func NewPromotionAnnouncer(engine *cashback.Engine, logger *slog.Logger) *PromotionAnnouncer {
	if logger == nil {
		logger = slog.Default()
	}
	return &PromotionAnnouncer{
		Engine:        engine,
		Logger:        logger.With("component", "announcer"),
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
		announced:     make(map[string]bool),
	}
}

// Start begins the announcer.
func (pa *PromotionAnnouncer) Start() {
	pa.mu.Lock()
	defer pa.mu.Unlock()

	if !pa.Enabled {
		pa.Logger.Info("disabled, not starting")
		return
	}
	if pa.ticker != nil {
		return
	}

	pa.ticker = time.NewTicker(pa.CheckInterval)
	pa.stop = make(chan struct{})
	pa.wg.Add(1)

	go pa.run(pa.ticker, pa.stop)

	pa.Logger.Info("started", "interval", pa.CheckInterval)
}

// Stop stops the announcer and waits for an in-flight check.
func (pa *PromotionAnnouncer) Stop() {
	pa.mu.Lock()
	ticker, stop := pa.ticker, pa.stop
	pa.ticker, pa.stop = nil, nil
	pa.mu.Unlock()

	if ticker != nil {
		ticker.Stop()
		close(stop)
		pa.wg.Wait()
		pa.Logger.Info("stopped")
	}
}

func (pa *PromotionAnnouncer) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer pa.wg.Done()

	// Run immediately on start
	pa.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			pa.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow announces every active promotion not announced yet and returns
// the names announced by this call.
func (pa *PromotionAnnouncer) RunNow(ctx context.Context) []string {
	today := pa.Engine.Today()
	tiers := pa.Engine.Program().Tiers.Tiers()

	var sent []string
	for _, p := range pa.Engine.Promotions() {
		if !p.ActiveOn(today) {
			continue
		}
		key := strings.ToLower(p.Name)

		pa.mu.Lock()
		done := pa.announced[key]
		pa.mu.Unlock()
		if done {
			continue
		}

		if warnings := pa.Engine.Announce(ctx, cashback.PromotionMessage(p, tiers)); len(warnings) > 0 {
			pa.Logger.Warn("announcement failed", "promotion", p.Name, "warnings", warnings)
			continue
		}

		pa.mu.Lock()
		pa.announced[key] = true
		pa.mu.Unlock()
		sent = append(sent, p.Name)
		pa.Logger.Info("promotion announced", "promotion", p.Name, "window", p.Window.String())
	}
	return sent
}

// NextRunTime returns when the next scheduled check will occur.
func (pa *PromotionAnnouncer) NextRunTime() time.Time {
	return time.Now().Add(pa.CheckInterval)
}
