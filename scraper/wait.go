package scraper

import (
	"context"
	"time"

	"github.com/use-agent/rfqscout/config"
)

// WaitPolicy is the fixed-duration settle heuristic: wait for first paint,
// scroll ScrollRounds times waiting ScrollWait after each, then wait
// FinalWait. It does not prove that lazy content finished loading.
type WaitPolicy struct {
	InitialWait  time.Duration
	ScrollRounds int
	// ScrollStep is the scroll distance in pixels. Zero or negative scrolls
	// to the bottom of the document.
	ScrollStep int
	ScrollWait time.Duration
	FinalWait  time.Duration
}

// PolicyFromConfig builds the settle policy from scraper config.
func PolicyFromConfig(cfg config.ScraperConfig) WaitPolicy {
	return WaitPolicy{
		InitialWait:  cfg.InitialWait,
		ScrollRounds: cfg.ScrollRounds,
		ScrollStep:   cfg.ScrollStep,
		ScrollWait:   cfg.ScrollWait,
		FinalWait:    cfg.FinalWait,
	}
}

// Total is the time the policy sleeps, excluding the scrolls themselves.
func (p WaitPolicy) Total() time.Duration {
	rounds := max(p.ScrollRounds, 0)
	return p.InitialWait + time.Duration(rounds)*p.ScrollWait + p.FinalWait
}

// Scroller performs one scroll step.
type Scroller interface {
	ScrollBy(ctx context.Context, pixels int) error
}

// RunPolicy executes p against s. Sessions implement Settle with it so the
// sequence is the same for every backend.
func RunPolicy(ctx context.Context, s Scroller, p WaitPolicy) error {
	if err := sleep(ctx, p.InitialWait); err != nil {
		return err
	}
	for i := 0; i < p.ScrollRounds; i++ {
		if err := s.ScrollBy(ctx, p.ScrollStep); err != nil {
			return err
		}
		if err := sleep(ctx, p.ScrollWait); err != nil {
			return err
		}
	}
	return sleep(ctx, p.FinalWait)
}

// sleep waits for d or until ctx is done.
func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
