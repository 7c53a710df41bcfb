package extractor

import (
	"errors"
	"fmt"
	"strings"

	"github.com/andybalholm/cascadia"
)

// Selectors are the CSS selectors used to read each field out of one card.
// An empty selector disables that field; it keeps the sentinel.
type Selectors struct {
	Title            string // anchor; text is the title, href the inquiry URL
	BuyerName        string
	BuyerImage       string // img; src is used
	InquiryTime      string
	QuotesLeft       string
	CountryImage     string // img; alt is used
	QuantityRequired string
	EmailConfirmed   string // badge; presence means confirmed
	ExperiencedBuyer string // badge; presence means experienced

	// IDAttributes are attributes of the card root that may carry the
	// RFQ identifier, tried in order.
	IDAttributes []string

	// IDQueryKeys are inquiry URL query parameters tried when no
	// IDAttributes match.
	IDQueryKeys []string
}

// DefaultSelectors matches the RFQ listing card layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Title:            "a.brh-rfq-item__subject-link",
		BuyerName:        "div.brh-rfq-item__other-info div.text",
		BuyerImage:       "div.brh-rfq-item__other-info img",
		InquiryTime:      "div.brh-rfq-item__publishtime",
		QuotesLeft:       "div.brh-rfq-item__quote-left span",
		CountryImage:     "div.brh-rfq-item__country img",
		QuantityRequired: "div.brh-rfq-item__quantity span",
		EmailConfirmed:   "div.brh-rfq-item__other-info .brh-rfq-item__email-confirmed",
		ExperiencedBuyer: "div.brh-rfq-item__other-info .brh-rfq-item__experienced-buyer",
		IDAttributes:     []string{"data-rfq-id", "data-id"},
		IDQueryKeys:      []string{"rfqId", "rfq_id", "id"},
	}
}

// compiled holds the parsed form of a Selectors value. Nil selectors are
// disabled fields.
type compiled struct {
	title            cascadia.Selector
	buyerName        cascadia.Selector
	buyerImage       cascadia.Selector
	inquiryTime      cascadia.Selector
	quotesLeft       cascadia.Selector
	countryImage     cascadia.Selector
	quantityRequired cascadia.Selector
	emailConfirmed   cascadia.Selector
	experiencedBuyer cascadia.Selector
}

func (s Selectors) compile() (*compiled, error) {
	if s.Title == "" {
		return nil, fmt.Errorf("title selector is required")
	}

	c := &compiled{}
	targets := []struct {
		name string
		sel  string
		dst  *cascadia.Selector
	}{
		{"title", s.Title, &c.title},
		{"buyer name", s.BuyerName, &c.buyerName},
		{"buyer image", s.BuyerImage, &c.buyerImage},
		{"inquiry time", s.InquiryTime, &c.inquiryTime},
		{"quotes left", s.QuotesLeft, &c.quotesLeft},
		{"country image", s.CountryImage, &c.countryImage},
		{"quantity required", s.QuantityRequired, &c.quantityRequired},
		{"email confirmed", s.EmailConfirmed, &c.emailConfirmed},
		{"experienced buyer", s.ExperiencedBuyer, &c.experiencedBuyer},
	}
	for _, t := range targets {
		if t.sel == "" {
			continue
		}
		m, err := cascadia.Compile(t.sel)
		if err != nil {
			return nil, fmt.Errorf("%s selector %q: %w", t.name, t.sel, err)
		}
		*t.dst = m
	}
	return c, nil
}

// ValidateSelector reports whether sel is a usable card selector.
func ValidateSelector(sel string) error {
	if strings.TrimSpace(sel) == "" {
		return errors.New("selector is empty")
	}
	_, err := cascadia.Compile(sel)
	return err
}
