package paystack

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

	"go.uber.org/zap"
)

const (
	DefaultBaseURL    = "https://api.paystack.co/"
	DefaultTrackerURL = "https://plugin-tracker.paystackintegrations.com/"

	pluginName     = "pstk-gravityforms"
	requestTimeout = 15 * time.Second
	maxBodyBytes   = 4 << 20
)

// Client signs and sends requests to the Paystack API. It performs no
// business interpretation of the decoded responses.
type Client struct {
	secretKey  string
	publicKey  string
	baseURL    string
	trackerURL string
	headers    map[string]string
	httpClient *http.Client
	logger     *zap.Logger
}

type Option func(*Client)

func WithBaseURL(baseURL string) Option {
	return func(c *Client) { c.baseURL = baseURL }
}

func WithTrackerURL(trackerURL string) Option {
	return func(c *Client) { c.trackerURL = trackerURL }
}

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// WithHeaders adds headers to every request. Authorization cannot be overridden.
func WithHeaders(headers map[string]string) Option {
	return func(c *Client) {
		for k, v := range headers {
			c.headers[k] = v
		}
	}
}

func WithLogger(logger *zap.Logger) Option {
	return func(c *Client) { c.logger = logger }
}

func NewClient(secretKey, publicKey string, opts ...Option) *Client {
	c := &Client{
		secretKey:  secretKey,
		publicKey:  publicKey,
		baseURL:    DefaultBaseURL,
		trackerURL: DefaultTrackerURL,
		headers:    make(map[string]string),
		httpClient: &http.Client{Timeout: requestTimeout},
		logger:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Response is the processor's standard envelope.
type Response struct {
	Status  bool            `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

// Send calls endpoint on the configured API base URL.
func (c *Client) Send(ctx context.Context, method, endpoint string, params any) (*Response, error) {
	return c.SendTo(ctx, c.baseURL, method, endpoint, params)
}

// SendTo calls endpoint under baseURL. GET params go in the query string,
// everything else is sent as a JSON body.
func (c *Client) SendTo(ctx context.Context, baseURL, method, endpoint string, params any) (*Response, error) {
	method = strings.ToUpper(method)
	uri := strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")

	var body io.Reader
	if method == http.MethodGet {
		query, err := toQuery(params)
		if err != nil {
			return nil, fmt.Errorf("failed to encode params: %w", err)
		}
		if query != "" {
			uri += "?" + query
		}
	} else if params != nil {
		jsonData, err := json.Marshal(params)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal params: %w", err)
		}
		body = bytes.NewReader(jsonData)
	}

	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, uri, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	for k, v := range c.headers {
		req.Header.Set(k, v)
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Error("paystack request failed", zap.String("method", method), zap.String("url", uri), zap.Error(err))
		return nil, &ConnectionError{URL: uri, Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, &ConnectionError{URL: uri, Err: err}
	}

	c.logger.Debug("paystack request",
		zap.String("method", method),
		zap.String("url", uri),
		zap.Any("params", params),
		zap.Int("status", resp.StatusCode),
		zap.ByteString("response", raw),
	)

	return decode(uri, resp.StatusCode, raw)
}

func decode(uri string, statusCode int, raw []byte) (*Response, error) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil || fields == nil {
		return nil, &ProtocolError{URL: uri, StatusCode: statusCode, Err: err}
	}

	var result Response
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, &ProtocolError{URL: uri, StatusCode: statusCode, Err: err}
	}

	if _, hasError := fields["error"]; hasError || !result.Status {
		return nil, &APIError{URL: uri, StatusCode: statusCode, Message: result.Message}
	}

	return &result, nil
}

func (c *Client) sendInto(ctx context.Context, method, endpoint string, params any, out any) error {
	resp, err := c.Send(ctx, method, endpoint, params)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(resp.Data, out); err != nil {
		return &ProtocolError{URL: endpoint, StatusCode: http.StatusOK, Err: err}
	}
	return nil
}

func (c *Client) InitializeTransaction(ctx context.Context, params InitializeParams) (*Authorization, error) {
	var out Authorization
	if err := c.sendInto(ctx, http.MethodPost, "transaction/initialize", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyTransaction(ctx context.Context, reference string) (*Transaction, error) {
	var out Transaction
	endpoint := "transaction/verify/" + url.PathEscape(reference)
	if err := c.sendInto(ctx, http.MethodGet, endpoint, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreatePlan(ctx context.Context, params PlanParams) (*Plan, error) {
	var out Plan
	if err := c.sendInto(ctx, http.MethodPost, "plan", params, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetPlan(ctx context.Context, idOrCode string) (*Plan, error) {
	var out Plan
	if err := c.sendInto(ctx, http.MethodGet, "plan/"+url.PathEscape(idOrCode), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetSubscription(ctx context.Context, idOrCode string) (*Subscription, error) {
	var out Subscription
	if err := c.sendInto(ctx, http.MethodGet, "subscription/"+url.PathEscape(idOrCode), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) DisableSubscription(ctx context.Context, code, emailToken string) error {
	params := map[string]string{
		"code":  code,
		"token": emailToken,
	}
	return c.sendInto(ctx, http.MethodPost, "subscription/disable", params, nil)
}

// LogTransactionSuccess reports a successful charge to the analytics
// collector. It returns immediately; failures are logged and dropped.
func (c *Client) LogTransactionSuccess(reference string) {
	params := map[string]string{
		"plugin_name":           pluginName,
		"public_key":            c.publicKey,
		"transaction_reference": reference,
	}

	go func() {
		defer func() {
			if r := recover(); r != nil {
				c.logger.Warn("transaction tracker panicked", zap.Any("panic", r))
			}
		}()

		ctx, cancel := context.WithTimeout(context.Background(), requestTimeout)
		defer cancel()

		if _, err := c.SendTo(ctx, c.trackerURL, http.MethodPost, "log/charge_success", params); err != nil {
			c.logger.Debug("transaction tracker call failed", zap.String("reference", reference), zap.Error(err))
		}
	}()
}

func toQuery(params any) (string, error) {
	switch p := params.(type) {
	case nil:
		return "", nil
	case url.Values:
		return p.Encode(), nil
	case map[string]string:
		values := url.Values{}
		for k, v := range p {
			values.Set(k, v)
		}
		return values.Encode(), nil
	default:
		return "", fmt.Errorf("unsupported query params type %T", params)
	}
}
