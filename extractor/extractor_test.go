package extractor

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/use-agent/rfqscout/models"
)

var scrapedAt = time.Date(2026, 3, 14, 9, 26, 53, 0, time.UTC)

const fullCard = `<div class="brh-rfq-item" data-rfq-id="RFQ-778812">
  <div class="brh-rfq-item__subject">
    <a class="brh-rfq-item__subject-link" href="//rfq.alibaba.com/rfq/detail.htm?rfqId=778812">
      Stainless   steel water bottles
    </a>
  </div>
  <div class="brh-rfq-item__quantity"><span>5000 Pieces</span></div>
  <div class="brh-rfq-item__publishtime">Date Posted: 2 hours before</div>
  <div class="brh-rfq-item__quote-left">Quotes Left <span>8</span></div>
  <div class="brh-rfq-item__country"><img src="//flags.example/de.png" alt="Deutschland"></div>
  <div class="brh-rfq-item__other-info">
    <img src="//img.alicdn.com/buyer/avatar.jpg">
    <div class="text">Jürgen Müller</div>
    <span class="brh-rfq-item__email-confirmed">Email Confirmed</span>
    <span class="brh-rfq-item__experienced-buyer"></span>
  </div>
</div>`

func newTestExtractor(t *testing.T) *Extractor {
	t.Helper()
	e, err := New(DefaultSelectors(), "https://i.alibaba.com/rfq-page")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return e
}

func TestExtract_FullCard(t *testing.T) {
	rec, err := newTestExtractor(t).Extract(fullCard, scrapedAt)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}

	want := models.Record{
		ID:               "RFQ-778812",
		Title:            "Stainless steel water bottles",
		BuyerName:        "Jürgen Müller",
		BuyerImage:       "https://img.alicdn.com/buyer/avatar.jpg",
		InquiryTime:      "Date Posted: 2 hours before",
		InquiryDate:      "Date Posted: 2 hours before",
		QuotesLeft:       "8",
		Country:          "Deutschland",
		QuantityRequired: "5000 Pieces",
		EmailConfirmed:   "Email Confirmed",
		ExperiencedBuyer: "Yes",
		InquiryURL:       "https://rfq.alibaba.com/rfq/detail.htm?rfqId=778812",
		ScrapeDate:       "2026-03-14",
	}
	if *rec != want {
		t.Errorf("Extract mismatch:\n got  %+v\n want %+v", *rec, want)
	}
}

func TestExtract_MissingTitle(t *testing.T) {
	cards := []struct {
		name   string
		markup string
	}{
		{"no anchor", strings.Replace(fullCard, `class="brh-rfq-item__subject-link"`, `class="other"`, 1)},
		{"empty card", `<div class="brh-rfq-item"></div>`},
		{"not html at all", `just some text`},
		{"empty string", ``},
	}

	e := newTestExtractor(t)
	for _, tt := range cards {
		t.Run(tt.name, func(t *testing.T) {
			rec, err := e.Extract(tt.markup, scrapedAt)
			if !errors.Is(err, ErrMissingTitle) {
				t.Fatalf("err = %v, want ErrMissingTitle", err)
			}
			if rec != nil {
				t.Errorf("expected nil record, got %+v", rec)
			}
		})
	}
}

func TestExtract_MissingOptionalFieldOnlyAffectsThatField(t *testing.T) {
	e := newTestExtractor(t)
	base, err := e.Extract(fullCard, scrapedAt)
	if err != nil {
		t.Fatalf("Extract full card: %v", err)
	}

	tests := []struct {
		name   string
		remove string
		field  func(*models.Record) *string
	}{
		{"buyer name", `<div class="text">Jürgen Müller</div>`, func(r *models.Record) *string { return &r.BuyerName }},
		{"quotes left", `<span>8</span>`, func(r *models.Record) *string { return &r.QuotesLeft }},
		{"country", `<img src="//flags.example/de.png" alt="Deutschland">`, func(r *models.Record) *string { return &r.Country }},
		{"quantity", `<span>5000 Pieces</span>`, func(r *models.Record) *string { return &r.QuantityRequired }},
		{"experienced buyer", `<span class="brh-rfq-item__experienced-buyer"></span>`, func(r *models.Record) *string { return &r.ExperiencedBuyer }},
		{"email confirmed", `<span class="brh-rfq-item__email-confirmed">Email Confirmed</span>`, func(r *models.Record) *string { return &r.EmailConfirmed }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			markup := strings.Replace(fullCard, tt.remove, "", 1)
			if markup == fullCard {
				t.Fatalf("fixture does not contain %q", tt.remove)
			}

			rec, err := e.Extract(markup, scrapedAt)
			if err != nil {
				t.Fatalf("Extract: %v", err)
			}
			if got := *tt.field(rec); got != models.Unavailable {
				t.Errorf("missing field = %q, want %q", got, models.Unavailable)
			}

			// Every other field must be unchanged.
			want := *base
			*tt.field(&want) = models.Unavailable
			if *rec != want {
				t.Errorf("other fields changed:\n got  %+v\n want %+v", *rec, want)
			}
		})
	}
}

func TestExtract_InquiryTimeDrivesInquiryDate(t *testing.T) {
	e := newTestExtractor(t)

	rec, err := e.Extract(strings.Replace(fullCard, `<div class="brh-rfq-item__publishtime">Date Posted: 2 hours before</div>`, "", 1), scrapedAt)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.InquiryTime != models.Unavailable || rec.InquiryDate != models.Unavailable {
		t.Errorf("inquiry time/date = %q/%q, want both %q", rec.InquiryTime, rec.InquiryDate, models.Unavailable)
	}
}

func TestExtract_ScrapeDateIndependentOfContent(t *testing.T) {
	e := newTestExtractor(t)
	other := time.Date(2027, 1, 2, 23, 59, 0, 0, time.UTC)

	rec, err := e.Extract(fullCard, other)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.ScrapeDate != "2027-01-02" {
		t.Errorf("ScrapeDate = %q, want 2027-01-02", rec.ScrapeDate)
	}
}

func TestExtract_TitleWithoutHref(t *testing.T) {
	markup := `<div class="brh-rfq-item"><a class="brh-rfq-item__subject-link">LED panels</a></div>`

	rec, err := newTestExtractor(t).Extract(markup, scrapedAt)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Title != "LED panels" {
		t.Errorf("Title = %q", rec.Title)
	}
	if rec.InquiryURL != models.Unavailable || rec.ID != models.Unavailable {
		t.Errorf("InquiryURL/ID = %q/%q, want sentinels", rec.InquiryURL, rec.ID)
	}
}

func TestExtract_EmptyTitleAndNoHref(t *testing.T) {
	markup := `<div class="brh-rfq-item"><a class="brh-rfq-item__subject-link">   </a></div>`

	_, err := newTestExtractor(t).Extract(markup, scrapedAt)
	if !errors.Is(err, ErrNoIdentity) {
		t.Fatalf("err = %v, want ErrNoIdentity", err)
	}
}

func TestExtract_IdentifierFromQuery(t *testing.T) {
	markup := `<div class="brh-rfq-item"><a class="brh-rfq-item__subject-link" href="/rfq/detail.htm?id=42&x=1">Cables</a></div>`

	rec, err := newTestExtractor(t).Extract(markup, scrapedAt)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.ID != "42" {
		t.Errorf("ID = %q, want 42", rec.ID)
	}
	if rec.InquiryURL != "https://i.alibaba.com/rfq/detail.htm?id=42&x=1" {
		t.Errorf("InquiryURL = %q", rec.InquiryURL)
	}
}

func TestExtract_MalformedMarkupIsTolerated(t *testing.T) {
	markup := `<div class="brh-rfq-item"><a class="brh-rfq-item__subject-link" href="//x.example/a">Unclosed <b>bold
	<div class="brh-rfq-item__quote-left"><span>3`

	rec, err := newTestExtractor(t).Extract(markup, scrapedAt)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if !strings.HasPrefix(rec.Title, "Unclosed bold") {
		t.Errorf("Title = %q", rec.Title)
	}
}

func TestNew_InvalidSelector(t *testing.T) {
	sel := DefaultSelectors()
	sel.BuyerName = "div[["
	if _, err := New(sel, "https://i.alibaba.com/rfq-page"); err == nil {
		t.Fatal("expected error for invalid selector")
	}

	sel = DefaultSelectors()
	sel.Title = ""
	if _, err := New(sel, "https://i.alibaba.com/rfq-page"); err == nil {
		t.Fatal("expected error for empty title selector")
	}
}

func TestNew_DisabledSelectorKeepsSentinel(t *testing.T) {
	sel := DefaultSelectors()
	sel.CountryImage = ""
	e, err := New(sel, "https://i.alibaba.com/rfq-page")
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	rec, err := e.Extract(fullCard, scrapedAt)
	if err != nil {
		t.Fatalf("Extract: %v", err)
	}
	if rec.Country != models.Unavailable {
		t.Errorf("Country = %q, want sentinel", rec.Country)
	}
}

func TestValidateSelector(t *testing.T) {
	tests := []struct {
		sel     string
		wantErr bool
	}{
		{"div.brh-rfq-item", false},
		{"section[data-role=rfq] > .card", false},
		{"div[[", true},
		{"", true},
		{"  ", true},
	}

	for _, tt := range tests {
		t.Run(tt.sel, func(t *testing.T) {
			if err := ValidateSelector(tt.sel); (err != nil) != tt.wantErr {
				t.Errorf("ValidateSelector(%q) error = %v, wantErr %v", tt.sel, err, tt.wantErr)
			}
		})
	}
}
