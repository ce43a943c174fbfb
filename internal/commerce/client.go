package commerce

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/angelmondragon/storefront/pkg/config"
	pkgerrors "github.com/angelmondragon/storefront/pkg/errors"
	"github.com/angelmondragon/storefront/pkg/logger"
	"github.com/angelmondragon/storefront/pkg/metrics"
)

const maxResponseBytes = 4 << 20

// operation names a gateway call for logs and metrics and carries the
// description prefixed to every failure message.
type operation struct {
	name   string
	action string
}

var (
	opCreateCart      = operation{"create_cart", "failed to create cart"}
	opFetchCart       = operation{"fetch_cart", "failed to retrieve cart"}
	opSetCustomerInfo = operation{"set_customer_info", "failed to update cart"}
	opAddItems        = operation{"add_items", "failed to add products to cart"}
	opRemoveItems     = operation{"remove_items", "failed to remove products from cart"}
	opSetQuantity     = operation{"set_item_quantity", "failed to update cart item"}
	opSubmitOrder     = operation{"submit_order", "failed to create order"}
	opListProducts    = operation{"list_products", "failed to list products"}
	opGetProduct      = operation{"get_product", "failed to retrieve product"}
	opListCategories  = operation{"list_categories", "failed to list categories"}
	opGetCategory     = operation{"get_category", "failed to retrieve category"}
)

// ClientParams wires the commerce API client.
type ClientParams struct {
	Config     config.CommerceConfig
	HTTPClient *http.Client
	Logger     *logger.Logger
	Metrics    *metrics.GatewayMetrics
}

// Client talks to the remote commerce REST API. It holds no cart state.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	workspaceID string
	storeID     string
	apiKey      string
	currencyID  string
	logg        *logger.Logger
	metrics     *metrics.GatewayMetrics
}

func NewClient(params ClientParams) (*Client, error) {
	cfg := params.Config
	if cfg.APIDomain == "" {
		return nil, fmt.Errorf("api domain required")
	}
	if cfg.WorkspaceID == "" {
		return nil, fmt.Errorf("workspace id required")
	}
	if cfg.StoreID == "" {
		return nil, fmt.Errorf("store id required")
	}
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}

	httpClient := params.HTTPClient
	if httpClient == nil {
		timeout := cfg.RequestTimeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     cfg.BaseURL(),
		workspaceID: cfg.WorkspaceID,
		storeID:     cfg.StoreID,
		apiKey:      cfg.APIKey,
		currencyID:  cfg.CurrencyID,
		logg:        params.Logger,
		metrics:     params.Metrics,
	}, nil
}

// CurrencyID is the currency carts and orders are created in.
func (c *Client) CurrencyID() string {
	return c.currencyID
}

func (c *Client) cartsURL(parts ...string) string {
	return joinURL(c.baseURL+"/carts", parts...)
}

func (c *Client) storeURL(parts ...string) string {
	return joinURL(c.baseURL+"/stores/"+url.PathEscape(c.storeID), parts...)
}

func joinURL(base string, parts ...string) string {
	var b strings.Builder
	b.WriteString(base)
	for _, part := range parts {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(part))
	}
	return b.String()
}

// call runs one request and records duration. Failures are normalized,
// logged and counted before being returned.
func (c *Client) call(ctx context.Context, op operation, method, endpoint string, query url.Values, body any) ([]byte, error) {
	start := time.Now()
	payload, err := c.do(ctx, method, endpoint, query, body)
	c.metrics.ObserveDuration(op.name, time.Since(start))
	if err != nil {
		return nil, c.fail(ctx, op, err)
	}
	return payload, nil
}

func (c *Client) fail(ctx context.Context, op operation, err error) error {
	c.metrics.IncFailure(op.name)
	gwErr := pkgerrors.Gateway(op.action, err)
	c.logg.Error(c.logg.WithOperation(ctx, op.name), "commerce request failed", gwErr)
	return gwErr
}

func (c *Client) newRequest(ctx context.Context, method, endpoint string, query url.Values, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshaling request: %w", err)
		}
		reader = bytes.NewReader(encoded)
	}
	if len(query) > 0 {
		endpoint = endpoint + "?" + query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Authorization", c.apiKey)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Cache-Control", "no-store")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, query url.Values, body any) ([]byte, error) {
	req, err := c.newRequest(ctx, method, endpoint, query, body)
	if err != nil {
		return nil, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseError(resp.StatusCode, payload)
	}
	return payload, nil
}

// StatusError is a non-2xx answer from the commerce API.
type StatusError struct {
	StatusCode int
	Message    string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("request failed with status code %d", e.StatusCode)
	}
	return fmt.Sprintf("request failed with status code %d: %s", e.StatusCode, e.Message)
}

// NotFound reports whether the backend no longer knows the resource.
func (e *StatusError) NotFound() bool {
	return e.StatusCode == http.StatusNotFound || e.StatusCode == http.StatusGone
}

func parseError(status int, body []byte) error {
	var apiErr struct {
		Error   any    `json:"error"`
		Message string `json:"message"`
	}
	_ = json.Unmarshal(body, &apiErr) // best effort
	msg := apiErr.Message
	switch v := apiErr.Error.(type) {
	case string:
		if msg == "" {
			msg = v
		}
	case map[string]any:
		if m, ok := v["message"].(string); ok && msg == "" {
			msg = m
		}
	}
	return &StatusError{StatusCode: status, Message: msg}
}
