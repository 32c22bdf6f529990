package testlayers

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"sync"

	"github.com/okian/peelforce/pkg/logger"
)

// retrieveResults re-reads every completed result by session id using a
// worker pool.
func retrieveResults(ctx context.Context, config *Config, completed map[int64]Result, stats *Stats) (map[int64]Result, error) {
	logger.Get().Info(ctx, "retrieving results", logger.Int("count", len(completed)), logger.Int("workers", config.Workers))

	client := newHTTPClient(config.Timeout)
	jobs := make(chan Result, max(config.Workers, 1)*WorkerChannelMultiplier)

	type fetched struct {
		result Result
		err    error
	}
	out := make(chan fetched, len(completed))

	var wg sync.WaitGroup
	for i := 0; i < max(config.Workers, 1); i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for want := range jobs {
				var got Result
				err := client.getJSON(ctx, config.BaseURL+"/sessions/"+url.PathEscape(want.SessionID), http.StatusOK, &got)
				if err != nil {
					err = fmt.Errorf("session %s: %w", want.SessionID, err)
				}
				out <- fetched{result: got, err: err}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for _, r := range completed {
			select {
			case <-ctx.Done():
				return
			case jobs <- r:
			}
		}
	}()

	go func() {
		wg.Wait()
		close(out)
	}()

	results := make(map[int64]Result, len(completed))
	var errs int
	for f := range out {
		if f.err != nil {
			errs++
			logger.Get().Error(ctx, "result retrieval failed", logger.Error(f.err))
			continue
		}
		results[f.result.LayerID] = f.result
	}
	stats.ResultsRetrieved = len(results)

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("context cancelled during retrieval: %w", err)
	}
	if errs > 0 {
		return results, fmt.Errorf("%d of %d results could not be retrieved", errs, len(completed))
	}
	return results, nil
}

// getLatest reads the newest results listing.
func getLatest(ctx context.Context, config *Config, limit int) ([]Result, error) {
	client := newHTTPClient(config.Timeout)
	var latest []Result
	if err := client.getJSON(ctx, fmt.Sprintf("%s/results?limit=%d", config.BaseURL, limit), http.StatusOK, &latest); err != nil {
		return nil, fmt.Errorf("latest results: %w", err)
	}
	return latest, nil
}
