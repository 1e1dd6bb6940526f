// Package extract calls the receipt-extraction service and normalises its
// answer into structured transaction hints.
package extract

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Result holds the fields the service could read off a receipt. Any of them may be absent.
type Result struct {
	Amount             *decimal.Decimal `json:"amount,omitempty"`
	Date               *string          `json:"date,omitempty"`
	Merchant           *string          `json:"merchant,omitempty"`
	Description        *string          `json:"description,omitempty"`
	CategorySuggestion *string          `json:"categorySuggestion,omitempty"`
	Currency           *string          `json:"currency,omitempty"`
}

type Extractor interface {
	Extract(ctx context.Context, data []byte, mimeType string) (*Result, error)
}

var pdfTypes = regexp.MustCompile(`(?i)^application/(pdf|x-pdf|acrobat)$`)

// IsSupportedMIME reports whether mimeType is an image or a PDF.
func IsSupportedMIME(mimeType string) bool {
	m := strings.ToLower(strings.TrimSpace(mimeType))
	return strings.HasPrefix(m, "image/") || pdfTypes.MatchString(m)
}

// HTTPExtractor posts the file as base64 JSON to a remote endpoint.
type HTTPExtractor struct {
	endpoint string
	apiKey   string
	client   *http.Client
}

func NewHTTPExtractor(endpoint, apiKey string, timeout time.Duration) *HTTPExtractor {
	return &HTTPExtractor{
		endpoint: endpoint,
		apiKey:   apiKey,
		client:   &http.Client{Timeout: timeout},
	}
}

type request struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type rawResult struct {
	Amount             json.RawMessage `json:"amount"`
	Date               json.RawMessage `json:"date"`
	Merchant           *string         `json:"merchant"`
	Description        *string         `json:"description"`
	CategorySuggestion *string         `json:"categorySuggestion"`
	Currency           *string         `json:"currency"`
}

func (e *HTTPExtractor) Extract(ctx context.Context, data []byte, mimeType string) (*Result, error) {
	body, err := json.Marshal(request{MimeType: mimeType, Data: base64.StdEncoding.EncodeToString(data)})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	if e.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+e.apiKey)
	}

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("extractor request: %w", err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("extractor response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("extractor returned status %d", resp.StatusCode)
	}

	return Normalize(payload), nil
}

var nonNumeric = regexp.MustCompile(`[^0-9.\-]`)

// Normalize decodes an extractor payload leniently. Malformed JSON yields an
// empty result; amounts may be numbers or strings with currency noise.
func Normalize(payload []byte) *Result {
	var raw rawResult
	if err := json.Unmarshal(payload, &raw); err != nil {
		return &Result{}
	}

	out := &Result{
		Merchant:           nonEmpty(raw.Merchant),
		Description:        nonEmpty(raw.Description),
		CategorySuggestion: nonEmpty(raw.CategorySuggestion),
		Currency:           nonEmpty(raw.Currency),
	}
	out.Amount = parseAmount(raw.Amount)

	var date string
	if len(raw.Date) > 0 && json.Unmarshal(raw.Date, &date) == nil && date != "" {
		out.Date = &date
	}
	return out
}

func parseAmount(raw json.RawMessage) *decimal.Decimal {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}

	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		// Not a string, so take the number literally.
		s = string(raw)
	}
	s = nonNumeric.ReplaceAllString(s, "")
	if s == "" {
		return nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil
	}
	return &d
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	v := strings.TrimSpace(*s)
	return &v
}
