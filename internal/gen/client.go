package gen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// Client talks to the external question producer. Its output is treated
// exactly like pasted JSON: raw objects to be run through lenient
// validation, never trusted as-is.
type Client struct {
	baseURL string
	hc      *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		hc:      &http.Client{Timeout: 60 * time.Second},
	}
}

// Request describes the batch being asked for.
type Request struct {
	Topic      string `json:"topic"`
	Count      int    `json:"count"`
	Difficulty string `json:"difficulty,omitempty"`
}

// Generate asks the producer for a batch and returns the raw question
// objects. The producer may answer with a bare array or a {questions: [...]}
// envelope; both are passed along untouched.
func (c *Client) Generate(ctx context.Context, req Request) ([]map[string]any, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, err
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.hc.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("generator: status %d", resp.StatusCode)
	}

	var raw json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&raw); err != nil {
		return nil, fmt.Errorf("generator: %w", err)
	}
	var raws []map[string]any
	if err := json.Unmarshal(raw, &raws); err == nil {
		return raws, nil
	}
	var envelope struct {
		Questions []map[string]any `json:"questions"`
	}
	if err := json.Unmarshal(raw, &envelope); err != nil || envelope.Questions == nil {
		return nil, fmt.Errorf("generator: unexpected response shape")
	}
	return envelope.Questions, nil
}
