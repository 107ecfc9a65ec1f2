package main

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

// isUpstreamAlive treats any answer below 500 as alive.
func isUpstreamAlive(ctx context.Context, upstream *url.URL) bool {
	ctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, upstream.String(), nil)
	if err != nil {
		return false
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode < 500
}
