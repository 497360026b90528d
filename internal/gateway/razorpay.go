// Package gateway opens payment orders with Razorpay.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const (
	ordersPath        = "/orders"
	maxErrorBodyBytes = 4096
	defaultTimeout    = 10 * time.Second
)

// ErrInvalidClientConfig reports missing credentials or endpoint.
var ErrInvalidClientConfig = errors.New("invalid gateway client config")

// ErrOrderRejected reports a 4xx answer from the gateway.
var ErrOrderRejected = errors.New("order rejected by gateway")

// Config configures a Client.
type Config struct {
	BaseURL   string
	KeyID     string
	KeySecret string
	Timeout   time.Duration
}

// Client is a minimal Razorpay Orders API client.
type Client struct {
	baseURL    string
	keyID      string
	keySecret  string
	httpClient *http.Client
}

// NewClient validates config. A nil httpClient gets a traced client with the configured timeout.
func NewClient(config Config, httpClient *http.Client) (*Client, error) {
	baseURL := strings.TrimRight(strings.TrimSpace(config.BaseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("%w: base url is required", ErrInvalidClientConfig)
	}
	if strings.TrimSpace(config.KeyID) == "" || strings.TrimSpace(config.KeySecret) == "" {
		return nil, fmt.Errorf("%w: key id and secret are required", ErrInvalidClientConfig)
	}
	if httpClient == nil {
		timeout := config.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		httpClient = &http.Client{Timeout: timeout, Transport: otelhttp.NewTransport(http.DefaultTransport)}
	}
	return &Client{baseURL: baseURL, keyID: config.KeyID, keySecret: config.KeySecret, httpClient: httpClient}, nil
}

type orderRequestBody struct {
	Amount   int64             `json:"amount"`
	Currency string            `json:"currency"`
	Receipt  string            `json:"receipt,omitempty"`
	Notes    map[string]string `json:"notes,omitempty"`
}

type orderResponseBody struct {
	ID       string `json:"id"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
	Receipt  string `json:"receipt"`
	Status   string `json:"status"`
}

type errorResponseBody struct {
	Error struct {
		Code        string `json:"code"`
		Description string `json:"description"`
	} `json:"error"`
}

// CreateOrder opens an order for request. Transport failures and 5xx answers
// wrap booking.ErrGatewayUnavailable; 4xx answers wrap ErrOrderRejected.
func (client *Client) CreateOrder(ctx context.Context, request booking.OrderRequest) (booking.Order, error) {
	if request.AmountPaise <= 0 {
		return booking.Order{}, fmt.Errorf("%w: amount must be positive", ErrOrderRejected)
	}
	payload, err := json.Marshal(orderRequestBody{
		Amount:   request.AmountPaise,
		Currency: request.Currency,
		Receipt:  request.Receipt,
		Notes:    request.Notes,
	})
	if err != nil {
		return booking.Order{}, fmt.Errorf("encode order: %w", err)
	}
	httpRequest, err := http.NewRequestWithContext(ctx, http.MethodPost, client.baseURL+ordersPath, bytes.NewReader(payload))
	if err != nil {
		return booking.Order{}, fmt.Errorf("build order request: %w", err)
	}
	httpRequest.SetBasicAuth(client.keyID, client.keySecret)
	httpRequest.Header.Set("Content-Type", "application/json")
	httpRequest.Header.Set("Accept", "application/json")

	response, err := client.httpClient.Do(httpRequest)
	if err != nil {
		return booking.Order{}, fmt.Errorf("%w: %v", booking.ErrGatewayUnavailable, err)
	}
	defer response.Body.Close()

	if response.StatusCode >= http.StatusInternalServerError {
		return booking.Order{}, fmt.Errorf("%w: status %d", booking.ErrGatewayUnavailable, response.StatusCode)
	}
	if response.StatusCode >= http.StatusBadRequest {
		return booking.Order{}, rejection(response)
	}
	var decoded orderResponseBody
	if err := json.NewDecoder(response.Body).Decode(&decoded); err != nil {
		return booking.Order{}, fmt.Errorf("%w: decode order: %v", booking.ErrGatewayUnavailable, err)
	}
	if decoded.ID == "" {
		return booking.Order{}, fmt.Errorf("%w: order without id", booking.ErrGatewayUnavailable)
	}
	return booking.Order{
		ID:          decoded.ID,
		AmountPaise: decoded.Amount,
		Currency:    decoded.Currency,
		Receipt:     decoded.Receipt,
		Status:      decoded.Status,
	}, nil
}

func rejection(response *http.Response) error {
	body, _ := io.ReadAll(io.LimitReader(response.Body, maxErrorBodyBytes))
	var decoded errorResponseBody
	if json.Unmarshal(body, &decoded) == nil && decoded.Error.Description != "" {
		return fmt.Errorf("%w: status %d: %s: %s", ErrOrderRejected, response.StatusCode, decoded.Error.Code, decoded.Error.Description)
	}
	return fmt.Errorf("%w: status %d", ErrOrderRejected, response.StatusCode)
}
