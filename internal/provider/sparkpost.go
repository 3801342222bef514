package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ignite/campaign-engine/internal/pkg/logger"
)

// SparkPost sends batches through the SparkPost transmissions API, one
// transmission per item so each item gets its own message id back.
type SparkPost struct {
	apiKey  string
	baseURL string
	client  *http.Client
}

// NewSparkPost creates a SparkPost provider. timeout bounds each HTTP call.
func NewSparkPost(apiKey, baseURL string, timeout time.Duration) *SparkPost {
	if baseURL == "" {
		baseURL = "https://api.sparkpost.com"
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &SparkPost{
		apiKey:  apiKey,
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

func (sp *SparkPost) Name() string { return "sparkpost" }

// BatchSend submits each item as its own transmission. A 429 on any item
// aborts the batch with ErrRateLimited so the caller can back off; items
// already accepted keep their ids on the next attempt's duplicate rows.
func (sp *SparkPost) BatchSend(ctx context.Context, items []Item) ([]string, error) {
	ids := make([]string, 0, len(items))
	for i, item := range items {
		id, err := sp.sendOne(ctx, item)
		if err != nil {
			return nil, fmt.Errorf("item %d (%s): %w", i, item.To, err)
		}
		ids = append(ids, id)
	}
	return ids, nil
}

func (sp *SparkPost) sendOne(ctx context.Context, item Item) (string, error) {
	payload := map[string]interface{}{
		"options": map[string]interface{}{
			"open_tracking":  false,
			"click_tracking": false,
		},
		"content": map[string]interface{}{
			"from": map[string]string{
				"email": item.From,
				"name":  item.FromName,
			},
			"subject": item.Subject,
			"html":    item.HTML,
			"text":    item.Text,
		},
		"recipients": []map[string]interface{}{
			{"address": map[string]string{"email": item.To}},
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("marshal transmission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, sp.baseURL+"/api/v1/transmissions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Authorization", sp.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := sp.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("sparkpost request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", ErrRateLimited
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr struct {
			Errors []struct {
				Message string `json:"message"`
			} `json:"errors"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		msg := ""
		if len(apiErr.Errors) > 0 {
			msg = apiErr.Errors[0].Message
		}
		return "", fmt.Errorf("sparkpost status %d: %s", resp.StatusCode, msg)
	}

	var result struct {
		Results struct {
			ID string `json:"id"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return "", fmt.Errorf("decode transmission response: %w", err)
	}
	if result.Results.ID == "" {
		return "", fmt.Errorf("sparkpost returned no transmission id")
	}

	logger.Debug("transmission accepted", "transmission_id", result.Results.ID)
	return result.Results.ID, nil
}
