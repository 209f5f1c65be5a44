// Package client provides the HTTP client for the cluster API that exposes
// node health and historical data.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mohi-m/postgres-cluster-monitor/internal/config"
	apierrors "github.com/mohi-m/postgres-cluster-monitor/internal/errors"
	"github.com/mohi-m/postgres-cluster-monitor/internal/model"
	"go.uber.org/zap"
)

const (
	// HealthPath is the node health endpoint of the cluster API
	HealthPath = "/health"
	// DataPath is the historical data endpoint of the cluster API
	DataPath = "/data"

	// MinLimit and MaxLimit bound the limit query parameter of DataPath
	MinLimit = 1
	MaxLimit = 10000

	maxResponseBytes = 16 << 20
)

// ClusterClient queries the cluster API over HTTP
type ClusterClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClusterClient creates a client for the configured cluster API.
// The request timeout is the only deadline applied to queries.
func NewClusterClient(cfg config.ClusterConfig, logger *zap.Logger) (*ClusterClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("no cluster base url provided")
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("invalid cluster base url: %w", err)
	}

	return &ClusterClient{
		baseURL: cfg.BaseURL,
		httpClient: &http.Client{
			Timeout: cfg.RequestTimeout,
		},
		logger: logger,
	}, nil
}

// FetchHealth returns the node health list reported by the cluster API
func (c *ClusterClient) FetchHealth(ctx context.Context) ([]model.NodeHealth, error) {
	body, err := c.get(ctx, HealthPath, nil)
	if err != nil {
		return nil, err
	}

	nodes, err := decodeHealth(body)
	if err != nil {
		return nil, apierrors.MalformedPayload(HealthPath, "invalid health payload", err)
	}
	return nodes, nil
}

// FetchData returns up to limit of the most recent records.
// The caller is responsible for clamping limit into [MinLimit, MaxLimit].
func (c *ClusterClient) FetchData(ctx context.Context, limit int) (model.Dataset, error) {
	if limit < MinLimit || limit > MaxLimit {
		return nil, apierrors.InvalidLimit(limit, MinLimit, MaxLimit)
	}

	query := url.Values{}
	query.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, DataPath, query)
	if err != nil {
		return nil, err
	}

	ds, err := decodeData(body, limit)
	if err != nil {
		return nil, apierrors.MalformedPayload(DataPath, "invalid data payload", err)
	}
	return ds, nil
}

// get performs a GET against the cluster API and returns the response body
func (c *ClusterClient) get(ctx context.Context, path string, query url.Values) ([]byte, error) {
	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, apierrors.TransportFailure(path, "failed to build request", err)
	}
	req.Header.Set("Accept", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, apierrors.TransportFailure(path, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// drain so the connection can be reused
		io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseBytes))
		return nil, apierrors.TransportFailure(path, fmt.Sprintf("unexpected status %d", resp.StatusCode), nil)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, apierrors.TransportFailure(path, "failed to read response body", err)
	}
	if len(body) > maxResponseBytes {
		return nil, apierrors.MalformedPayload(path, fmt.Sprintf("response body exceeds %d bytes", maxResponseBytes), nil)
	}

	c.logger.Debug("cluster API request completed",
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Int("bytes", len(body)),
		zap.Duration("duration", time.Since(start)),
	)

	return body, nil
}
