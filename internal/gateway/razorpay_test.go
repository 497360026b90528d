package gateway

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/MarkoPoloResearchLab/turf/pkg/booking"
)

var _ booking.OrderGateway = (*Client)(nil)

func newTestClient(test *testing.T, handler http.HandlerFunc) *Client {
	test.Helper()
	server := httptest.NewServer(handler)
	test.Cleanup(server.Close)
	client, err := NewClient(Config{BaseURL: server.URL + "/v1/", KeyID: "rzp_test_key", KeySecret: "rzp_test_secret"}, server.Client())
	if err != nil {
		test.Fatalf("client: %v", err)
	}
	return client
}

func TestCreateOrder(test *testing.T) {
	test.Parallel()

	client := newTestClient(test, func(writer http.ResponseWriter, request *http.Request) {
		if request.Method != http.MethodPost || request.URL.Path != "/v1/orders" {
			test.Errorf("unexpected request %s %s", request.Method, request.URL.Path)
		}
		keyID, keySecret, ok := request.BasicAuth()
		if !ok || keyID != "rzp_test_key" || keySecret != "rzp_test_secret" {
			test.Errorf("unexpected basic auth %q %q", keyID, keySecret)
		}
		var body orderRequestBody
		if err := json.NewDecoder(request.Body).Decode(&body); err != nil {
			test.Errorf("decode: %v", err)
		}
		if body.Amount != 20472 || body.Currency != "INR" || body.Notes["date"] != "2025-03-13" {
			test.Errorf("unexpected body %+v", body)
		}
		writer.Header().Set("Content-Type", "application/json")
		_, _ = writer.Write([]byte(`{"id":"order_abc","amount":20472,"currency":"INR","receipt":"rcpt_1","status":"created"}`))
	})

	order, err := client.CreateOrder(context.Background(), booking.OrderRequest{
		AmountPaise: 20472,
		Currency:    "INR",
		Receipt:     "rcpt_1",
		Notes:       map[string]string{"date": "2025-03-13"},
	})
	if err != nil {
		test.Fatalf("create order: %v", err)
	}
	if order.ID != "order_abc" || order.AmountPaise != 20472 || order.Status != "created" {
		test.Fatalf("unexpected order %+v", order)
	}
}

func TestCreateOrderFailures(test *testing.T) {
	test.Parallel()

	testCases := []struct {
		name    string
		status  int
		body    string
		request booking.OrderRequest
		err     error
	}{
		{name: "bad request", status: http.StatusBadRequest, body: `{"error":{"code":"BAD_REQUEST_ERROR","description":"amount too small"}}`, request: booking.OrderRequest{AmountPaise: 1, Currency: "INR"}, err: ErrOrderRejected},
		{name: "unauthorized", status: http.StatusUnauthorized, body: `not json`, request: booking.OrderRequest{AmountPaise: 100, Currency: "INR"}, err: ErrOrderRejected},
		{name: "server error", status: http.StatusBadGateway, body: ``, request: booking.OrderRequest{AmountPaise: 100, Currency: "INR"}, err: booking.ErrGatewayUnavailable},
		{name: "missing id", status: http.StatusOK, body: `{"amount":100}`, request: booking.OrderRequest{AmountPaise: 100, Currency: "INR"}, err: booking.ErrGatewayUnavailable},
		{name: "zero amount", status: http.StatusOK, body: `{}`, request: booking.OrderRequest{Currency: "INR"}, err: ErrOrderRejected},
	}
	for _, testCase := range testCases {
		testCase := testCase
		test.Run(testCase.name, func(test *testing.T) {
			test.Parallel()
			client := newTestClient(test, func(writer http.ResponseWriter, _ *http.Request) {
				writer.WriteHeader(testCase.status)
				_, _ = writer.Write([]byte(testCase.body))
			})
			if _, err := client.CreateOrder(context.Background(), testCase.request); !errors.Is(err, testCase.err) {
				test.Fatalf("expected %v, got %v", testCase.err, err)
			}
		})
	}
}

func TestCreateOrderUnreachable(test *testing.T) {
	test.Parallel()

	server := httptest.NewServer(http.NotFoundHandler())
	baseURL := server.URL
	server.Close()
	client, err := NewClient(Config{BaseURL: baseURL, KeyID: "k", KeySecret: "s"}, nil)
	if err != nil {
		test.Fatalf("client: %v", err)
	}
	if _, err := client.CreateOrder(context.Background(), booking.OrderRequest{AmountPaise: 100, Currency: "INR"}); !errors.Is(err, booking.ErrGatewayUnavailable) {
		test.Fatalf("expected ErrGatewayUnavailable, got %v", err)
	}
}

func TestNewClientValidation(test *testing.T) {
	test.Parallel()

	if _, err := NewClient(Config{KeyID: "k", KeySecret: "s"}, nil); !errors.Is(err, ErrInvalidClientConfig) {
		test.Fatalf("expected missing base url to fail, got %v", err)
	}
	if _, err := NewClient(Config{BaseURL: "https://api.razorpay.com/v1", KeyID: "k"}, nil); !errors.Is(err, ErrInvalidClientConfig) {
		test.Fatalf("expected missing secret to fail, got %v", err)
	}
}
