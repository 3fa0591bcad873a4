package paystack

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://api.paystack.co"

// Transaction statuses reported by the verify endpoint.
const (
	StatusSuccess   = "success"
	StatusFailed    = "failed"
	StatusAbandoned = "abandoned"
	StatusReversed  = "reversed"
	StatusPending   = "pending"
)

var ErrAPI = errors.New("paystack request failed")

// Config holds the Paystack credentials.
type Config struct {
	SecretKey   string
	BaseURL     string
	CallbackURL string
	Timeout     time.Duration
}

// Client talks to the Paystack transaction API.
type Client struct {
	secretKey   string
	baseURL     string
	callbackURL string
	http        *http.Client
}

func NewClient(cfg Config) *Client {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		secretKey:   cfg.SecretKey,
		baseURL:     baseURL,
		callbackURL: cfg.CallbackURL,
		http:        &http.Client{Timeout: timeout},
	}
}

// Initialized is the payment session Paystack opens for a transaction.
type Initialized struct {
	AuthorizationURL string `json:"authorization_url"`
	AccessCode       string `json:"access_code"`
	Reference        string `json:"reference"`
}

// Transaction is the verify view of a transaction. Amount is in minor units.
type Transaction struct {
	Reference       string `json:"reference"`
	Status          string `json:"status"`
	Amount          int64  `json:"amount"`
	GatewayResponse string `json:"gateway_response"`
}

type envelope[T any] struct {
	Status  bool   `json:"status"`
	Message string `json:"message"`
	Data    T      `json:"data"`
}

// Initialize opens a transaction for amount minor units (kobo).
func (c *Client) Initialize(ctx context.Context, email string, amount int64) (*Initialized, error) {
	body := map[string]string{
		"email":  email,
		"amount": fmt.Sprintf("%d", amount),
	}
	if c.callbackURL != "" {
		body["callback_url"] = c.callbackURL
	}

	var out envelope[Initialized]
	if err := c.do(ctx, http.MethodPost, "/transaction/initialize", body, &out); err != nil {
		return nil, fmt.Errorf("paystack initialize: %w", err)
	}
	if out.Data.Reference == "" {
		return nil, fmt.Errorf("paystack initialize: %w: empty reference", ErrAPI)
	}
	return &out.Data, nil
}

// Verify fetches the current state of the transaction with the given reference.
func (c *Client) Verify(ctx context.Context, reference string) (*Transaction, error) {
	var out envelope[Transaction]
	if err := c.do(ctx, http.MethodGet, "/transaction/verify/"+url.PathEscape(reference), nil, &out); err != nil {
		return nil, fmt.Errorf("paystack verify %s: %w", reference, err)
	}
	if out.Data.Reference == "" {
		out.Data.Reference = reference
	}
	return &out.Data, nil
}

func (c *Client) do(ctx context.Context, method, path string, in any, out any) error {
	var reader io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)

	var head envelope[json.RawMessage]
	if err := json.Unmarshal(body, &head); err != nil {
		return fmt.Errorf("%w: status %d, body: %s", ErrAPI, resp.StatusCode, string(body))
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 || !head.Status {
		return fmt.Errorf("%w: status %d: %s", ErrAPI, resp.StatusCode, head.Message)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("unmarshal response: %w", err)
	}
	return nil
}
