package scraper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
)

// rodSession is a Session backed by one rod page.
type rodSession struct {
	browser  *rod.Browser
	page     *rod.Page
	router   *rod.HijackRouter
	launcher *launcher.Launcher // nil when attached
	cancel   context.CancelFunc
	attached bool

	// cleanupProfile removes the launcher's generated profile directory.
	cleanupProfile bool

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) Settle(ctx context.Context, p WaitPolicy) error {
	return RunPolicy(ctx, s, p)
}

// ScrollBy scrolls the window by pixels, or to the bottom when pixels <= 0.
func (s *rodSession) ScrollBy(ctx context.Context, pixels int) error {
	p := s.page.Context(ctx)
	var err error
	if pixels > 0 {
		_, err = p.Eval(`(y) => window.scrollBy(0, y)`, pixels)
	} else {
		_, err = p.Eval(`() => window.scrollTo(0, document.body.scrollHeight)`)
	}
	if err != nil {
		return fmt.Errorf("scroll: %w", err)
	}
	return nil
}

func (s *rodSession) CollectCards(ctx context.Context, selector string, limit int) ([]Card, error) {
	els, err := s.page.Context(ctx).Elements(selector)
	if err != nil {
		return nil, fmt.Errorf("query %q: %w", selector, err)
	}
	if limit > 0 && len(els) > limit {
		els = els[:limit]
	}
	cards := make([]Card, 0, len(els))
	for _, el := range els {
		cards = append(cards, rodCard{el: el})
	}
	return cards, nil
}

// Close stops interception, closes the page and then either kills the
// launched browser or disconnects from the attached one. It is idempotent.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		s.closeErr = s.teardown()
	})
	return s.closeErr
}

// teardown releases whatever Open managed to acquire.
func (s *rodSession) teardown() error {
	var errs []error
	if s.router != nil {
		if err := s.router.Stop(); err != nil {
			errs = append(errs, fmt.Errorf("stop hijack router: %w", err))
		}
	}
	if s.page != nil {
		if err := s.page.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close page: %w", err))
		}
	}
	if s.browser != nil && !s.attached {
		if err := s.browser.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close browser: %w", err))
		}
	}
	if s.cancel != nil {
		s.cancel()
	}
	if s.launcher != nil {
		s.launcher.Kill()
		if s.cleanupProfile {
			s.launcher.Cleanup()
		}
	}

	err := errors.Join(errs...)
	if err != nil {
		slog.Warn("browser session closed with errors", "error", err)
	} else {
		slog.Debug("browser session closed", "attached", s.attached)
	}
	return err
}

// rodCard is a Card backed by a rod element.
type rodCard struct {
	el *rod.Element
}

func (c rodCard) OuterHTML(ctx context.Context) (string, error) {
	return c.el.Context(ctx).HTML()
}
