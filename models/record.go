package models

import "time"

// Unavailable is the sentinel stored in any Record field whose value could
// not be read from the card.
const Unavailable = "N/A"

// ScrapeDateLayout is the layout of Record.ScrapeDate.
const ScrapeDateLayout = "2006-01-02"

// Record is one scraped RFQ posting.
//
// Every field is a display string. Fields that were not found hold
// Unavailable, so a Record always has the full column set.
type Record struct {
	ID               string
	Title            string
	BuyerName        string
	BuyerImage       string
	InquiryTime      string
	InquiryDate      string
	QuotesLeft       string
	Country          string
	QuantityRequired string
	EmailConfirmed   string
	ExperiencedBuyer string
	InquiryURL       string
	ScrapeDate       string
}

// columns is the fixed artifact header. Order matches Record.Row.
var columns = []string{
	"RFQ ID",
	"Title",
	"Buyer Name",
	"Buyer Image",
	"Inquiry Time",
	"Inquiry Date",
	"Quotes Left",
	"Country",
	"Quantity Required",
	"Email Confirmed",
	"Experienced Buyer",
	"Inquiry URL",
	"Scraping Date",
}

// Columns returns the artifact header in its fixed order.
func Columns() []string {
	out := make([]string, len(columns))
	copy(out, columns)
	return out
}

// NewRecord returns a Record with every field set to Unavailable except
// ScrapeDate, which is the calendar date of scrapedAt.
func NewRecord(scrapedAt time.Time) *Record {
	return &Record{
		ID:               Unavailable,
		Title:            Unavailable,
		BuyerName:        Unavailable,
		BuyerImage:       Unavailable,
		InquiryTime:      Unavailable,
		InquiryDate:      Unavailable,
		QuotesLeft:       Unavailable,
		Country:          Unavailable,
		QuantityRequired: Unavailable,
		EmailConfirmed:   Unavailable,
		ExperiencedBuyer: Unavailable,
		InquiryURL:       Unavailable,
		ScrapeDate:       scrapedAt.Format(ScrapeDateLayout),
	}
}

// Valid reports whether the record carries the minimum identity signal:
// a title or an inquiry URL.
func (r *Record) Valid() bool {
	if r == nil {
		return false
	}
	return !isUnavailable(r.Title) || !isUnavailable(r.InquiryURL)
}

// Row returns the record's values in Columns order.
func (r *Record) Row() []string {
	return []string{
		r.ID,
		r.Title,
		r.BuyerName,
		r.BuyerImage,
		r.InquiryTime,
		r.InquiryDate,
		r.QuotesLeft,
		r.Country,
		r.QuantityRequired,
		r.EmailConfirmed,
		r.ExperiencedBuyer,
		r.InquiryURL,
		r.ScrapeDate,
	}
}

func isUnavailable(v string) bool {
	return v == "" || v == Unavailable
}

// RecordBatch is the ordered output of one scrape run.
// The runner builds it; once handed to a sink it is not modified.
type RecordBatch struct {
	RunID     string
	StartedAt time.Time
	Records   []Record
}

// Len returns the number of records in the batch.
func (b RecordBatch) Len() int { return len(b.Records) }
