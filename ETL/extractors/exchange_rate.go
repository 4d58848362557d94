package extractors

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/LilVoxy/northwind_etl/ETL/utils"
)

// ExchangeRateClient fetches the USD to EUR rate
type ExchangeRateClient struct {
	url      string
	fallback float64
	client   *http.Client
	logger   *utils.ETLLogger
}

// NewExchangeRateClient creates a new ExchangeRateClient
func NewExchangeRateClient(url string, fallback float64, client *http.Client, logger *utils.ETLLogger) *ExchangeRateClient {
	return &ExchangeRateClient{
		url:      url,
		fallback: fallback,
		client:   client,
		logger:   logger,
	}
}

type ratesResponse struct {
	Rates map[string]float64 `json:"rates"`
}

// Rate returns the current rate, or the fallback rate when it cannot be
// fetched. The second result reports whether the fallback was used.
func (c *ExchangeRateClient) Rate(ctx context.Context) (float64, bool) {
	rate, err := c.fetch(ctx)
	if err != nil {
		c.logger.Warn("Error fetching exchange rate, using fallback %.4f: %v", c.fallback, err)
		return c.fallback, true
	}

	c.logger.Info("USD to EUR exchange rate: %.4f", rate)
	return rate, false
}

func (c *ExchangeRateClient) fetch(ctx context.Context) (float64, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return 0, fmt.Errorf("unexpected status %s", resp.Status)
	}

	var body ratesResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&body); err != nil {
		return 0, fmt.Errorf("malformed response: %w", err)
	}

	rate, ok := body.Rates["EUR"]
	if !ok {
		return 0, fmt.Errorf("response has no EUR rate")
	}
	if rate <= 0 {
		return 0, fmt.Errorf("invalid EUR rate %v", rate)
	}

	return rate, nil
}
