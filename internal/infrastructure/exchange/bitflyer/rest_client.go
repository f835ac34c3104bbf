package bitflyer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"btcfee/internal/application/port"

	"golang.org/x/time/rate"
)

// TickerClient bitFlyer 公共 ticker REST 客户端
type TickerClient struct {
	baseURL string
	product string
	client  *http.Client
	limiter *rate.Limiter
}

// NewTickerClient 创建 REST 客户端。公共 API 限流约 500 次/5 分钟，这里保守地限制为 1 次/秒。
func NewTickerClient(baseURL, product string) *TickerClient {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		baseURL = DefaultRestURL
	}
	if product == "" {
		product = DefaultProduct
	}
	return &TickerClient{
		baseURL: baseURL,
		product: product,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(time.Second), 3),
	}
}

// FetchLTP 获取最新成交价
func (c *TickerClient) FetchLTP(ctx context.Context) (float64, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return 0, err
	}

	endpoint := fmt.Sprintf("%s/v1/ticker?product_code=%s", c.baseURL, url.QueryEscape(c.product))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return 0, fmt.Errorf("bitflyer api error: %d %s", resp.StatusCode, string(body))
	}

	var result tickerResp
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("decode ticker: %w", err)
	}
	if result.LTP == nil {
		return 0, errors.New("ticker response missing ltp")
	}
	return *result.LTP, nil
}

var _ port.TickerFetcher = (*TickerClient)(nil)
