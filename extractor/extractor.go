// Package extractor turns the rendered markup of one RFQ card into a
// models.Record.
package extractor

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/use-agent/rfqscout/models"
	"golang.org/x/net/html"
)

var (
	// ErrMissingTitle means the card has no title element. The card is
	// skipped rather than emitted as a sentinel-filled record.
	ErrMissingTitle = errors.New("card has no title element")

	// ErrNoIdentity means the card yielded neither a title nor an
	// inquiry URL.
	ErrNoIdentity = errors.New("card has neither title nor inquiry URL")
)

// flagPresent is written to badge fields whose badge element exists but
// carries no text.
const flagPresent = "Yes"

// Extractor parses card markup with a fixed set of precompiled selectors.
// It is stateless after construction and safe for concurrent use.
type Extractor struct {
	sel     *compiled
	idAttrs []string
	idKeys  []string
	base    *url.URL
}

// New compiles the selectors. baseURL resolves relative and
// protocol-relative links found in cards; it is usually the scraped page.
func New(sel Selectors, baseURL string) (*Extractor, error) {
	c, err := sel.compile()
	if err != nil {
		return nil, err
	}
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("base URL %q: %w", baseURL, err)
	}
	if base.Scheme == "" {
		base.Scheme = "https"
	}
	return &Extractor{
		sel:     c,
		idAttrs: sel.IDAttributes,
		idKeys:  sel.IDQueryKeys,
		base:    base,
	}, nil
}

// Extract parses one card's outer HTML. Each field is looked up on its own;
// a field that cannot be found keeps models.Unavailable. scrapedAt sets the
// record's scrape date.
//
// It returns ErrMissingTitle when the title element is absent and
// ErrNoIdentity when neither a title nor an inquiry URL could be read.
func (e *Extractor) Extract(markup string, scrapedAt time.Time) (*models.Record, error) {
	root, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse card markup: %w", err)
	}
	doc := goquery.NewDocumentFromNode(root)

	title := first(doc, e.sel.title)
	if title == nil {
		return nil, ErrMissingTitle
	}

	rec := models.NewRecord(scrapedAt)
	rec.Title = textOr(title)
	if href, ok := title.Attr("href"); ok {
		rec.InquiryURL = e.absolute(href)
	}

	rec.BuyerName = textOr(first(doc, e.sel.buyerName))
	rec.BuyerImage = e.absolute(attrOr(first(doc, e.sel.buyerImage), "src"))
	rec.InquiryTime = textOr(first(doc, e.sel.inquiryTime))
	// The display string is authoritative; no date parsing.
	rec.InquiryDate = rec.InquiryTime
	rec.QuotesLeft = textOr(first(doc, e.sel.quotesLeft))
	rec.Country = attrOr(first(doc, e.sel.countryImage), "alt")
	rec.QuantityRequired = textOr(first(doc, e.sel.quantityRequired))
	rec.EmailConfirmed = flagOr(first(doc, e.sel.emailConfirmed))
	rec.ExperiencedBuyer = flagOr(first(doc, e.sel.experiencedBuyer))
	rec.ID = e.identifier(doc, rec.InquiryURL)

	if !rec.Valid() {
		return nil, ErrNoIdentity
	}
	return rec, nil
}

// first returns the first match of sel under doc, or nil when sel is
// disabled or matches nothing.
func first(doc *goquery.Document, sel cascadia.Selector) *goquery.Selection {
	if sel == nil {
		return nil
	}
	s := doc.FindMatcher(sel).First()
	if s.Length() == 0 {
		return nil
	}
	return s
}

func textOr(s *goquery.Selection) string {
	if s == nil {
		return models.Unavailable
	}
	if t := cleanText(s.Text()); t != "" {
		return t
	}
	return models.Unavailable
}

func attrOr(s *goquery.Selection, name string) string {
	if s == nil {
		return models.Unavailable
	}
	if v, ok := s.Attr(name); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return models.Unavailable
}

func flagOr(s *goquery.Selection) string {
	if s == nil {
		return models.Unavailable
	}
	if t := cleanText(s.Text()); t != "" {
		return t
	}
	return flagPresent
}

// cleanText collapses runs of whitespace into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// absolute resolves ref against the page URL. Protocol-relative links
// ("//host/path") take the page's scheme.
func (e *Extractor) absolute(ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || ref == models.Unavailable {
		return models.Unavailable
	}
	u, err := e.base.Parse(ref)
	if err != nil {
		return ref
	}
	return u.String()
}

// identifier reads the RFQ ID from the card root's attributes, then from
// the inquiry URL's query string.
func (e *Extractor) identifier(doc *goquery.Document, inquiryURL string) string {
	card := doc.Find("body").Children().First()
	for _, attr := range e.idAttrs {
		if v, ok := card.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}

	if inquiryURL == models.Unavailable {
		return models.Unavailable
	}
	u, err := url.Parse(inquiryURL)
	if err != nil {
		return models.Unavailable
	}
	q := u.Query()
	for _, key := range e.idKeys {
		if v := strings.TrimSpace(q.Get(key)); v != "" {
			return v
		}
	}
	return models.Unavailable
}
