package model

import (
	"time"
)

// FetchStatus is the outcome of fetching a URL.
type FetchStatus string

const (
	// FetchOnline means the server answered with HTTP 200.
	FetchOnline FetchStatus = "ONLINE"
	// FetchOffline means no connection could be established.
	FetchOffline FetchStatus = "OFFLINE"
	// FetchTimeout means the connect or read deadline expired.
	FetchTimeout FetchStatus = "TIMEOUT"
	// FetchError covers non-200 responses and any other failure.
	FetchError FetchStatus = "ERROR"
	// FetchUnknown is used when no fetch was attempted.
	FetchUnknown FetchStatus = "UNKNOWN"
)

// RiskLevel is the coarse bucket derived from a threat score.
type RiskLevel string

const (
	// RiskLow is assigned to scores below 30.
	RiskLow RiskLevel = "LOW"
	// RiskMedium is assigned to scores from 30 to 60 inclusive.
	RiskMedium RiskLevel = "MEDIUM"
	// RiskHigh is assigned to scores above 60.
	RiskHigh RiskLevel = "HIGH"
)

// UnknownCategory labels documents that could not be classified because
// no content was retrieved.
const UnknownCategory = "Unknown"

// Link is an anchor found on a page.
type Link struct {
	URL  string `json:"url" bson:"url"`
	Text string `json:"text,omitempty" bson:"text,omitempty"`
}

// FileLink is a link whose extension marks it as a downloadable file.
type FileLink struct {
	URL       string `json:"url" bson:"url"`
	Text      string `json:"text,omitempty" bson:"text,omitempty"`
	Extension string `json:"extension" bson:"extension"`
}

// StatusEntry is one fetch observation in a URL's status history.
type StatusEntry struct {
	Timestamp    time.Time   `json:"timestamp" bson:"timestamp"`
	Status       FetchStatus `json:"url_status" bson:"url_status"`
	ResponseTime *float64    `json:"response_time,omitempty" bson:"response_time,omitempty"`
	StatusCode   *int        `json:"status_code,omitempty" bson:"status_code,omitempty"`
}

// Evidence records why a category was selected.
type Evidence struct {
	KeywordMatches   int      `json:"keyword_matches" bson:"keyword_matches"`
	MatchedKeywords  []string `json:"matched_keywords" bson:"matched_keywords"`
	CryptoDetected   bool     `json:"crypto_detected" bson:"crypto_detected"`
	EmailDetected    bool     `json:"email_detected" bson:"email_detected"`
	MalwareDetected  bool     `json:"malware_detected" bson:"malware_detected"`
	WeightedScore    float64  `json:"weighted_score" bson:"weighted_score"`
	CategoryBoost    int      `json:"category_boost" bson:"category_boost"`
	MarketplaceForce bool     `json:"marketplace_override,omitempty" bson:"marketplace_override,omitempty"`
}

// ScanDocument is the persisted result of one orchestrator run.
// Documents are append-only; the current state of a URL is its most
// recently inserted document.
type ScanDocument struct {
	ID        string    `json:"id" bson:"_id"`
	URL       string    `json:"url" bson:"url"`
	Timestamp time.Time `json:"timestamp" bson:"timestamp"`

	Status       FetchStatus `json:"url_status" bson:"url_status"`
	StatusCode   *int        `json:"status_code,omitempty" bson:"status_code,omitempty"`
	ResponseTime *float64    `json:"response_time,omitempty" bson:"response_time,omitempty"`

	Title       string     `json:"title" bson:"title"`
	Links       []Link     `json:"links" bson:"links"`
	FileLinks   []FileLink `json:"file_links" bson:"file_links"`
	Keywords    []string   `json:"keywords" bson:"keywords"`
	TextPreview string     `json:"text_preview" bson:"text_preview"`
	ContentHash string     `json:"content_hash" bson:"content_hash"`

	// TextContent is the full extracted text. It is kept in memory for
	// analysis and not persisted.
	TextContent string `json:"-" bson:"-"`

	Emails          []string  `json:"emails_found" bson:"emails_found"`
	CryptoAddresses []string  `json:"crypto_addresses" bson:"crypto_addresses"`
	ThreatScore     int       `json:"threat_score" bson:"threat_score"`
	Category        string    `json:"category" bson:"category"`
	Confidence      float64   `json:"confidence" bson:"confidence"`
	RiskLevel       RiskLevel `json:"risk_level" bson:"risk_level"`
	Evidence        Evidence  `json:"threat_indicators" bson:"threat_indicators"`
	PGPDetected     bool      `json:"pgp_detected" bson:"pgp_detected"`

	ContentChanged bool          `json:"content_changed" bson:"content_changed"`
	StatusHistory  []StatusEntry `json:"status_history" bson:"status_history"`

	FileAnalysis   []FileReport      `json:"file_analysis,omitempty" bson:"file_analysis,omitempty"`
	ClamAVStatus   MalwareScanStatus `json:"clamav_status,omitempty" bson:"clamav_status,omitempty"`
	ClamAVDetected bool              `json:"clamav_detected" bson:"clamav_detected"`
	ClamAVDetails  []MalwareHit      `json:"clamav_details,omitempty" bson:"clamav_details,omitempty"`
}

// StatusEntry returns the fetch observation this document contributes to
// the URL's status history.
func (d *ScanDocument) StatusEntry() StatusEntry {
	return StatusEntry{
		Timestamp:    d.Timestamp,
		Status:       d.Status,
		ResponseTime: d.ResponseTime,
		StatusCode:   d.StatusCode,
	}
}

// HasContent reports whether the document was produced from fetched content
// rather than being a placeholder for a failed fetch.
func (d *ScanDocument) HasContent() bool {
	return d.ContentHash != ""
}

// MalwareFileCount returns how many analyzed files were flagged as malware.
func (d *ScanDocument) MalwareFileCount() int {
	n := 0
	for _, f := range d.FileAnalysis {
		if f.Malware.Detected {
			n++
		}
	}
	return n
}

// NewPlaceholderDocument returns the minimal document recorded when a fetch
// produced no content.
func NewPlaceholderDocument(url string, status FetchStatus, statusCode *int, responseTime *float64, at time.Time) *ScanDocument {
	return &ScanDocument{
		URL:             url,
		Timestamp:       at,
		Status:          status,
		StatusCode:      statusCode,
		ResponseTime:    responseTime,
		Title:           "[" + string(status) + "] Unable to fetch content",
		TextPreview:     "Failed to retrieve content - Status: " + string(status),
		Links:           []Link{},
		FileLinks:       []FileLink{},
		Keywords:        []string{},
		Emails:          []string{},
		CryptoAddresses: []string{},
		ThreatScore:     0,
		Category:        UnknownCategory,
		RiskLevel:       RiskLow,
		StatusHistory:   []StatusEntry{},
	}
}
