package testlayers

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/peelforce/pkg/logger"
)

// HTTPClient wraps http.Client with timeout
type HTTPClient struct {
	client  *http.Client
	timeout time.Duration
}

// newHTTPClient creates a new HTTP client with timeout
func newHTTPClient(timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		client: &http.Client{
			Timeout: timeout,
		},
		timeout: timeout,
	}
}

// Get performs a GET request
func (c *HTTPClient) Get(ctx context.Context, url string) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	return c.client.Do(req)
}

// Post performs a POST request with JSON body
func (c *HTTPClient) Post(ctx context.Context, url string, body any) (*http.Response, error) {
	jsonData, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	return c.client.Do(req)
}

// postJSON posts body and decodes a response of the expected status into out.
func (c *HTTPClient) postJSON(ctx context.Context, url string, body any, want int, out any) error {
	resp, err := c.Post(ctx, url, body)
	if err != nil {
		return err
	}
	return decodeResponse(resp, want, out)
}

// getJSON decodes a response of the expected status into out.
func (c *HTTPClient) getJSON(ctx context.Context, url string, want int, out any) error {
	resp, err := c.Get(ctx, url)
	if err != nil {
		return err
	}
	return decodeResponse(resp, want, out)
}

func decodeResponse(resp *http.Response, want int, out any) error {
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode != want {
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, bytes.TrimSpace(data))
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(data, out)
}

// monitorLayers runs every layer through start, samples and stop. A session
// is exclusive, so layers run one after another. It returns the completed
// results by layer id.
func monitorLayers(ctx context.Context, config *Config, layers []Layer, stats *Stats) (map[int64]Result, error) {
	logger.Get().Info(ctx, "monitoring layers", logger.Int("layers", len(layers)), logger.Int("chunk", config.ChunkSize))

	client := newHTTPClient(config.Timeout)
	results := make(map[int64]Result, len(layers))
	for _, l := range layers {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("context cancelled during monitoring: %w", err)
		}
		res, err := monitorSingleLayer(ctx, client, config, l, stats)
		if err != nil {
			stats.LayersFailed++
			logger.Get().Error(ctx, "layer failed", logger.Int64("layer_id", l.LayerID), logger.Error(err))
			continue
		}
		switch res.Status {
		case "completed":
			stats.LayersCompleted++
			results[l.LayerID] = *res.Result
		case "empty":
			stats.LayersEmpty++
		default:
			stats.LayersFailed++
		}
		if config.Verbose {
			logger.Get().Info(ctx, "layer finished", logger.Int64("layer_id", l.LayerID), logger.String("status", res.Status))
		}
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no layer completed (%d failed, %d empty)", stats.LayersFailed, stats.LayersEmpty)
	}
	return results, nil
}

func monitorSingleLayer(ctx context.Context, client *HTTPClient, config *Config, l Layer, stats *Stats) (StopResponse, error) {
	var status StatusResponse
	start := map[string]any{"layer_id": l.LayerID, "band_start_mm": l.BandStart, "band_end_mm": l.BandEnd}
	if err := client.postJSON(ctx, config.BaseURL+"/monitoring/start", start, http.StatusOK, &status); err != nil {
		return StopResponse{}, fmt.Errorf("start: %w", err)
	}

	chunk := max(config.ChunkSize, 1)
	for from := 0; from < len(l.Samples); from += chunk {
		to := min(from+chunk, len(l.Samples))
		body := map[string][]Sample{"samples": l.Samples[from:to]}
		if err := client.postJSON(ctx, config.BaseURL+"/monitoring/samples", body, http.StatusAccepted, nil); err != nil {
			return StopResponse{}, fmt.Errorf("samples %d-%d: %w", from, to, err)
		}
		stats.SamplesSubmitted += to - from
	}

	var stop StopResponse
	if err := client.postJSON(ctx, config.BaseURL+"/monitoring/stop", struct{}{}, http.StatusOK, &stop); err != nil {
		return StopResponse{}, fmt.Errorf("stop: %w", err)
	}
	if stop.Status == "completed" && stop.Result == nil {
		return StopResponse{}, fmt.Errorf("completed without a result")
	}
	if stop.Result != nil && stop.Result.SessionID != status.SessionID {
		return StopResponse{}, fmt.Errorf("session mismatch: started %s, stopped %s", status.SessionID, stop.Result.SessionID)
	}
	return stop, nil
}
