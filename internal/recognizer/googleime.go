// internal/recognizer/googleime.go
package recognizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/linyc/inkgold/internal/ink"
)

// DefaultEndpoint is the Google Input Tools handwriting endpoint.
const DefaultEndpoint = "https://www.google.com.tw/inputtools/request?ime=handwriting&app=autofill&maxresults=3&out=json"

// DefaultLanguage is the recognition language when none is configured.
const DefaultLanguage = "zh-TW"

// GoogleIME recognizes handwriting via the Google Input Tools API.
type GoogleIME struct {
	Endpoint string
	Language string
	Client   *http.Client
}

// NewGoogleIME builds a client with the default endpoint, language, and a
// 10 second request timeout.
func NewGoogleIME() *GoogleIME {
	return &GoogleIME{
		Endpoint: DefaultEndpoint,
		Language: DefaultLanguage,
		Client:   &http.Client{Timeout: 10 * time.Second},
	}
}

type imeRequest struct {
	InputType int          `json:"input_type"`
	Requests  []imeInkSpec `json:"requests"`
}

type imeInkSpec struct {
	WritingGuide imeGuide      `json:"writing_guide"`
	Ink          [][3][]int64  `json:"ink"`
	Language     string        `json:"language"`
}

type imeGuide struct {
	Width  int `json:"writing_area_width"`
	Height int `json:"writing_area_height"`
}

// Recognize posts the accumulated ink and returns the top-ranked
// candidate. Any transport, status, or parse failure comes back as an
// error with no side effects.
func (g *GoogleIME) Recognize(ctx context.Context, strokes ink.Ink) (string, error) {
	payload := imeRequest{
		Requests: []imeInkSpec{{
			WritingGuide: imeGuide{Width: ink.GuideSize, Height: ink.GuideSize},
			Ink:          strokes.Strokes(),
			Language:     g.Language,
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("recognizer: marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.Endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("recognizer: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.Client.Do(req)
	if err != nil {
		return "", fmt.Errorf("recognizer: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("recognizer: unexpected status %d", resp.StatusCode)
	}

	var parsed []json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("recognizer: decode response: %w", err)
	}
	return topCandidate(parsed)
}

// topCandidate digs the first candidate out of the Input Tools response
// shape: ["SUCCESS", [[request_id, [candidates...], ...]]].
func topCandidate(parsed []json.RawMessage) (string, error) {
	if len(parsed) < 2 {
		return "", fmt.Errorf("recognizer: short response")
	}
	var status string
	if err := json.Unmarshal(parsed[0], &status); err != nil {
		return "", fmt.Errorf("recognizer: parse status: %w", err)
	}
	if status != "SUCCESS" {
		return "", fmt.Errorf("recognizer: service status %q", status)
	}

	var results []json.RawMessage
	if err := json.Unmarshal(parsed[1], &results); err != nil {
		return "", fmt.Errorf("recognizer: parse results: %w", err)
	}
	if len(results) == 0 {
		return "", ErrNoCandidates
	}

	var first []json.RawMessage
	if err := json.Unmarshal(results[0], &first); err != nil {
		return "", fmt.Errorf("recognizer: parse result entry: %w", err)
	}
	if len(first) < 2 {
		return "", ErrNoCandidates
	}

	var candidates []string
	if err := json.Unmarshal(first[1], &candidates); err != nil {
		return "", fmt.Errorf("recognizer: parse candidates: %w", err)
	}
	if len(candidates) == 0 {
		return "", ErrNoCandidates
	}
	return candidates[0], nil
}
