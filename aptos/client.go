package aptos

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"
)

const (
	// OctasPerAPT is the number of base units in one APT.
	OctasPerAPT = 100_000_000
	// FaucetAmount is what a single faucet request mints: 1 APT.
	FaucetAmount = OctasPerAPT

	coinStoreResource = "0x1::coin::CoinStore<0x1::aptos_coin::AptosCoin>"

	DefaultNodeURL   = "https://fullnode.testnet.aptoslabs.com"
	DefaultFaucetURL = "https://faucet.testnet.aptoslabs.com"
	DefaultNetwork   = "testnet"
)

// APIError is a non-success response from the node or the faucet.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("aptos: request failed with status %d", e.StatusCode)
	}
	return fmt.Sprintf("aptos: request failed with status %d: %s", e.StatusCode, e.Message)
}

// Observer receives call outcomes, typically for metrics.
type Observer interface {
	ObserveCall(op, outcome string, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObserveCall(string, string, time.Duration) {}

type Config struct {
	NodeURL   string
	FaucetURL string
	Network   string
	Timeout   time.Duration
}

// Client wraps the fullnode REST API and the testnet faucet. Concurrent balance
// lookups for the same address share one upstream request.
type Client struct {
	nodeURL    string
	faucetURL  string
	network    string
	httpClient *http.Client
	logger     *zap.Logger
	observer   Observer
	balances   singleflight.Group
}

func NewClient(cfg Config, logger *zap.Logger) *Client {
	if cfg.NodeURL == "" {
		cfg.NodeURL = DefaultNodeURL
	}
	if cfg.FaucetURL == "" {
		cfg.FaucetURL = DefaultFaucetURL
	}
	if cfg.Network == "" {
		cfg.Network = DefaultNetwork
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		nodeURL:    strings.TrimRight(cfg.NodeURL, "/"),
		faucetURL:  strings.TrimRight(cfg.FaucetURL, "/"),
		network:    cfg.Network,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		logger:     logger,
		observer:   nopObserver{},
	}
}

func (c *Client) WithObserver(o Observer) *Client {
	if o != nil {
		c.observer = o
	}
	return c
}

func (c *Client) Network() string { return c.network }

type coinStore struct {
	Type string `json:"type"`
	Data struct {
		Coin struct {
			Value string `json:"value"`
		} `json:"coin"`
	} `json:"data"`
}

// GetAccountBalance returns the APT balance of addr. An account or coin store that
// does not exist yet has a balance of zero.
func (c *Client) GetAccountBalance(ctx context.Context, addr string) (float64, error) {
	normalized, err := NormalizeAddress(addr)
	if err != nil {
		return 0, err
	}

	start := time.Now()
	v, err, _ := c.balances.Do(normalized, func() (any, error) {
		return c.fetchBalance(ctx, normalized)
	})
	if err != nil {
		c.observer.ObserveCall("balance", "error", time.Since(start))
		c.logger.Error("get balance failed", zap.String("address", normalized), zap.Error(err))
		return 0, err
	}
	c.observer.ObserveCall("balance", "ok", time.Since(start))
	return v.(float64), nil
}

func (c *Client) fetchBalance(ctx context.Context, addr string) (float64, error) {
	endpoint := fmt.Sprintf("%s/v1/accounts/%s/resource/%s", c.nodeURL, addr, url.PathEscape(coinStoreResource))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, fmt.Errorf("aptos: build balance request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("aptos: get balance: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return 0, nil
	}
	if resp.StatusCode != http.StatusOK {
		return 0, readAPIError(resp)
	}

	var store coinStore
	if err := json.NewDecoder(resp.Body).Decode(&store); err != nil {
		return 0, fmt.Errorf("aptos: decode coin store: %w", err)
	}
	octas, err := strconv.ParseUint(store.Data.Coin.Value, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("aptos: parse coin value %q: %w", store.Data.Coin.Value, err)
	}
	return float64(octas) / OctasPerAPT, nil
}

type fundRequest struct {
	Address string `json:"address"`
	Amount  uint64 `json:"amount"`
}

type fundResponse struct {
	TxnHashes []string `json:"txn_hashes"`
}

// FundAccount asks the faucet for 1 APT and returns the submitted transaction hashes.
func (c *Client) FundAccount(ctx context.Context, addr string) ([]string, error) {
	normalized, err := NormalizeAddress(addr)
	if err != nil {
		return nil, err
	}

	start := time.Now()
	hashes, err := c.fund(ctx, normalized)
	if err != nil {
		c.observer.ObserveCall("fund", "error", time.Since(start))
		c.logger.Error("faucet request failed", zap.String("address", normalized), zap.Error(err))
		return nil, err
	}
	c.observer.ObserveCall("fund", "ok", time.Since(start))
	c.logger.Info("account funded", zap.String("address", normalized), zap.Strings("txn_hashes", hashes))
	return hashes, nil
}

func (c *Client) fund(ctx context.Context, addr string) ([]string, error) {
	body, err := json.Marshal(fundRequest{Address: addr, Amount: FaucetAmount})
	if err != nil {
		return nil, fmt.Errorf("aptos: encode fund request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.faucetURL+"/fund", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("aptos: build fund request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("aptos: fund account: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, readAPIError(resp)
	}

	var out fundResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("aptos: decode fund response: %w", err)
	}
	return out.TxnHashes, nil
}

func readAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var body struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &body); err == nil && body.Message != "" {
		apiErr.Message = body.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}
