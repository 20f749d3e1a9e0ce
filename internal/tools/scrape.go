package tools

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

// ScrapeClient fetches a page through a reader service that converts it to
// markdown. The target URL is appended to the service base URL.
type ScrapeClient struct {
	baseURL    string
	httpClient *http.Client
	logger     *zap.Logger
}

func NewScrapeClient(baseURL string, timeout time.Duration, logger *zap.Logger) *ScrapeClient {
	return &ScrapeClient{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *ScrapeClient) Scrape(ctx context.Context, pageURL string) (string, error) {
	c.logger.Info("scraping page", zap.String("url", pageURL))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+pageURL, nil)
	if err != nil {
		return "", fmt.Errorf("building scrape request: %w", err)
	}
	req.Header.Set("Accept", "text/markdown")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("scrape request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("scrape request: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading scrape response: %w", err)
	}

	return string(body), nil
}
