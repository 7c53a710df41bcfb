package scraper

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/proto"
	"github.com/use-agent/rfqscout/config"
	"github.com/use-agent/rfqscout/models"
)

type recordingScroller struct {
	steps []int
	err   error
}

func (r *recordingScroller) ScrollBy(_ context.Context, px int) error {
	r.steps = append(r.steps, px)
	return r.err
}

func TestRunPolicy_ScrollRounds(t *testing.T) {
	s := &recordingScroller{}
	p := WaitPolicy{ScrollRounds: 5, ScrollStep: 1000}

	if err := RunPolicy(context.Background(), s, p); err != nil {
		t.Fatalf("RunPolicy: %v", err)
	}
	if len(s.steps) != 5 {
		t.Fatalf("scrolled %d times, want 5", len(s.steps))
	}
	for i, px := range s.steps {
		if px != 1000 {
			t.Errorf("step %d = %d px, want 1000", i, px)
		}
	}
}

func TestRunPolicy_ZeroPolicyDoesNothing(t *testing.T) {
	s := &recordingScroller{}
	start := time.Now()
	if err := RunPolicy(context.Background(), s, WaitPolicy{}); err != nil {
		t.Fatalf("RunPolicy: %v", err)
	}
	if len(s.steps) != 0 {
		t.Errorf("scrolled %d times, want 0", len(s.steps))
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Errorf("zero policy took %v", elapsed)
	}
}

func TestRunPolicy_ScrollErrorStops(t *testing.T) {
	boom := errors.New("boom")
	s := &recordingScroller{err: boom}

	err := RunPolicy(context.Background(), s, WaitPolicy{ScrollRounds: 3})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if len(s.steps) != 1 {
		t.Errorf("scrolled %d times after error, want 1", len(s.steps))
	}
}

func TestRunPolicy_ContextCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := RunPolicy(ctx, &recordingScroller{}, WaitPolicy{InitialWait: time.Hour})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
}

func TestWaitPolicy_Total(t *testing.T) {
	p := PolicyFromConfig(config.ScraperConfig{
		InitialWait:  5 * time.Second,
		ScrollRounds: 5,
		ScrollWait:   1500 * time.Millisecond,
		FinalWait:    3 * time.Second,
	})
	if got, want := p.Total(), 15500*time.Millisecond; got != want {
		t.Errorf("Total() = %v, want %v", got, want)
	}
}

func TestOpen_DriverMissing(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "chromedriver")
	d := NewDriller(config.BrowserConfig{DriverPath: missing}, config.ScraperConfig{})

	s, err := d.Open(context.Background(), "https://i.alibaba.com/rfq-page")
	if s != nil {
		t.Fatal("expected no session")
	}
	if !models.HasCode(err, models.ErrCodeDriverUnavailable) {
		t.Fatalf("err = %v, want %s", err, models.ErrCodeDriverUnavailable)
	}

	var se *models.ScrapeError
	errors.As(err, &se)
	if !strings.Contains(se.Reason(), "ChromeDriver not found") || !strings.Contains(se.Reason(), missing) {
		t.Errorf("Reason() = %q, want ChromeDriver not found at %s", se.Reason(), missing)
	}
}

func TestCheckDriver(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "chromedriver")
	if err := os.WriteFile(bin, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name    string
		cfg     config.BrowserConfig
		wantErr bool
	}{
		{"present", config.BrowserConfig{DriverPath: bin}, false},
		{"missing", config.BrowserConfig{DriverPath: filepath.Join(dir, "nope")}, true},
		{"directory", config.BrowserConfig{DriverPath: dir}, true},
		{"attach mode ignores path", config.BrowserConfig{DriverPath: filepath.Join(dir, "nope"), CDPURL: "ws://127.0.0.1:9222"}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := NewDriller(tt.cfg, config.ScraperConfig{})
			err := d.CheckDriver()
			if (err != nil) != tt.wantErr {
				t.Fatalf("CheckDriver() err = %v, wantErr %v", err, tt.wantErr)
			}
			if got := d.Stats().Available; got == tt.wantErr {
				t.Errorf("Stats().Available = %v", got)
			}
		})
	}
}

func TestIsTrackerDomain(t *testing.T) {
	tests := []struct {
		host string
		want bool
	}{
		{"google-analytics.com", true},
		{"www.google-analytics.com", true},
		{"stats.g.doubleclick.net", true},
		{"i.alibaba.com", false},
		{"notdoubleclick.net", false},
		{"", false},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			if got := isTrackerDomain(tt.host); got != tt.want {
				t.Errorf("isTrackerDomain(%q) = %v, want %v", tt.host, got, tt.want)
			}
		})
	}
}

func TestBlockedTypes_IgnoresUnknown(t *testing.T) {
	got := blockedTypes([]string{"Font", "Bogus", "Media"})
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	if _, ok := got[proto.NetworkResourceTypeFont]; !ok {
		t.Error("Font not blocked")
	}
}

func TestRequestFilter_Blocks(t *testing.T) {
	f := newRequestFilter([]string{"Image", "Font"}, true)

	tests := []struct {
		name string
		url  string
		typ  proto.NetworkResourceType
		want bool
	}{
		{"buyer avatar on alicdn", "https://s.alicdn.com/@img/avatar.png", proto.NetworkResourceTypeImage, false},
		{"country flag on alicdn", "https://img.alicdn.com/flags/us.png", proto.NetworkResourceTypeImage, false},
		{"font on alibaba", "https://i.alibaba.com/font.woff2", proto.NetworkResourceTypeFont, false},
		{"image elsewhere", "https://cdn.example.com/banner.png", proto.NetworkResourceTypeImage, true},
		{"tracker script", "https://www.google-analytics.com/analytics.js", proto.NetworkResourceTypeScript, true},
		{"lookalike host", "https://alicdn.com.evil.net/a.png", proto.NetworkResourceTypeImage, true},
		{"page document", "https://i.alibaba.com/rfq", proto.NetworkResourceTypeDocument, false},
		{"unparseable url", "://bad", proto.NetworkResourceTypeScript, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := f.blocks(tt.url, tt.typ); got != tt.want {
				t.Errorf("blocks(%q, %s) = %v, want %v", tt.url, tt.typ, got, tt.want)
			}
		})
	}
}

func TestRequestFilter_Empty(t *testing.T) {
	if !newRequestFilter(nil, false).empty() {
		t.Error("no types and no trackers should be empty")
	}
	if newRequestFilter(nil, true).empty() {
		t.Error("tracker blocking alone is not empty")
	}
	if newRequestFilter([]string{"Bogus"}, false).blocks("https://cdn.example.com/a.png", proto.NetworkResourceTypeImage) {
		t.Error("unknown type names must not block")
	}
}
