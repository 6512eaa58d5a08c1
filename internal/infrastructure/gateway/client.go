package gateway

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/Zhima-Mochi/storefront/internal/domain/payment"
	"github.com/Zhima-Mochi/storefront/internal/observability"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	peerName       = "payment_gateway"
	defaultTimeout = 10 * time.Second
	maxErrorBody   = 4 << 10
)

type Config struct {
	BaseURL      string
	PublicKey    string
	PrivateKey   string
	IntegrityKey string
	Currency     string
	Timeout      time.Duration
}

type Option func(*Client)

// WithHTTPClient replaces the default client. Its timeout is left untouched.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// Client talks to the card payment gateway over its REST API.
type Client struct {
	cfg          Config
	base         string
	http         *http.Client
	tracer       observability.Tracer
	reqCounter   observability.Counter
	durHistogram observability.Histogram
}

var _ payment.Gateway = (*Client)(nil)

func New(cfg Config, tel observability.Observability, opts ...Option) *Client {
	_, tracer, metrics := observability.Resolve(tel)
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	c := &Client{
		cfg:          cfg,
		base:         strings.TrimRight(cfg.BaseURL, "/"),
		http:         &http.Client{Timeout: timeout},
		tracer:       tracer,
		reqCounter:   metrics.Counter(observability.MExternalRequests),
		durHistogram: metrics.Histogram(observability.MExternalRequestDuration),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Client) Currency() string { return c.cfg.Currency }

// Sign returns hex(sha256(paymentID + amount + currency + integrityKey)).
func (c *Client) Sign(paymentID string, amountInCents int64) string {
	sum := sha256.Sum256([]byte(paymentID + strconv.FormatInt(amountInCents, 10) + c.cfg.Currency + c.cfg.IntegrityKey))
	return hex.EncodeToString(sum[:])
}

type idEnvelope struct {
	Data struct {
		ID json.RawMessage `json:"id"`
	} `json:"data"`
}

func (e idEnvelope) id() (string, error) {
	raw := bytes.TrimSpace(e.Data.ID)
	if len(raw) == 0 || string(raw) == "null" {
		return "", errors.New("response missing data.id")
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return "", errors.New("response missing data.id")
		}
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", fmt.Errorf("unexpected data.id %s", raw)
	}
	return n.String(), nil
}

func (c *Client) CreatePaymentSource(ctx context.Context, req payment.SourceRequest) (string, error) {
	body := map[string]any{
		"type":                 payment.MethodCard,
		"token":                req.Token,
		"customer_email":       req.CustomerEmail,
		"acceptance_token":     req.AcceptanceToken,
		"accept_personal_auth": req.PersonalAuthToken,
	}
	var out idEnvelope
	if err := c.do(ctx, "create_payment_source", http.MethodPost, "/payment_sources", true, body, &out); err != nil {
		return "", err
	}
	id, err := out.id()
	if err != nil {
		return "", fmt.Errorf("gateway: create_payment_source: %w", err)
	}
	return id, nil
}

func (c *Client) CreateTransaction(ctx context.Context, req payment.TransactionRequest) (string, error) {
	currency := req.Currency
	if currency == "" {
		currency = c.cfg.Currency
	}
	body := map[string]any{
		"amount_in_cents":   req.AmountInCents,
		"currency":          currency,
		"customer_email":    req.CustomerEmail,
		"reference":         req.Reference,
		"signature":         req.Signature,
		"payment_method":    map[string]any{"installments": 1},
		"payment_source_id": json.RawMessage(sourceIDLiteral(req.SourceID)),
	}
	var out idEnvelope
	if err := c.do(ctx, "create_transaction", http.MethodPost, "/transactions", true, body, &out); err != nil {
		return "", err
	}
	id, err := out.id()
	if err != nil {
		return "", fmt.Errorf("gateway: create_transaction: %w", err)
	}
	return id, nil
}

// sourceIDLiteral keeps numeric source ids numeric on the wire.
func sourceIDLiteral(id string) string {
	if _, err := strconv.ParseInt(id, 10, 64); err == nil {
		return id
	}
	quoted, _ := json.Marshal(id)
	return string(quoted)
}

func (c *Client) TransactionStatus(ctx context.Context, transactionID string) (payment.Status, error) {
	var out struct {
		Data struct {
			Status string `json:"status"`
		} `json:"data"`
	}
	path := "/transactions/" + url.PathEscape(transactionID)
	if err := c.do(ctx, "transaction_status", http.MethodGet, path, false, nil, &out); err != nil {
		return "", err
	}
	if out.Data.Status == "" {
		return "", errors.New("gateway: transaction_status: response missing data.status")
	}
	return payment.Status(strings.ToUpper(out.Data.Status)), nil
}

func (c *Client) AcceptanceTokens(ctx context.Context) (payment.AcceptanceTokens, error) {
	var out struct {
		Data struct {
			PresignedAcceptance struct {
				AcceptanceToken string `json:"acceptance_token"`
				Permalink       string `json:"permalink"`
			} `json:"presigned_acceptance"`
			PresignedPersonalDataAuth struct {
				AcceptanceToken string `json:"acceptance_token"`
				Permalink       string `json:"permalink"`
			} `json:"presigned_personal_data_auth"`
		} `json:"data"`
	}
	path := "/merchants/" + url.PathEscape(c.cfg.PublicKey)
	if err := c.do(ctx, "acceptance_tokens", http.MethodGet, path, false, nil, &out); err != nil {
		return payment.AcceptanceTokens{}, err
	}
	return payment.AcceptanceTokens{
		AcceptanceToken:       out.Data.PresignedAcceptance.AcceptanceToken,
		AcceptancePermalink:   out.Data.PresignedAcceptance.Permalink,
		PersonalAuthToken:     out.Data.PresignedPersonalDataAuth.AcceptanceToken,
		PersonalAuthPermalink: out.Data.PresignedPersonalDataAuth.Permalink,
	}, nil
}

func (c *Client) do(ctx context.Context, op, method, path string, auth bool, in, out any) (err error) {
	ctx, span := c.tracer.Start(ctx, "gateway."+op,
		attribute.String("peer.service", peerName),
		attribute.String("http.request.method", method),
	)
	start := time.Now()
	outcome := "success"
	defer func() {
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			span.RecordError(err)
		} else {
			span.SetStatus(codes.Ok, "OK")
		}
		span.End()
		c.reqCounter.Add(1,
			observability.L("peer", peerName),
			observability.L("endpoint", op),
			observability.L("outcome", outcome),
		)
		c.durHistogram.Observe(time.Since(start).Seconds(),
			observability.L("peer", peerName),
			observability.L("endpoint", op),
		)
	}()

	var body io.Reader
	if in != nil {
		raw, mErr := json.Marshal(in)
		if mErr != nil {
			outcome = "error"
			return fmt.Errorf("gateway: %s: encode request: %w", op, mErr)
		}
		body = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		outcome = "error"
		return &payment.GatewayError{Op: op, Err: err}
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if auth {
		req.Header.Set("Authorization", "Bearer "+c.cfg.PrivateKey)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		outcome = "network_error"
		return &payment.GatewayError{Op: op, Err: err}
	}
	defer resp.Body.Close()
	span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		outcome = "http_" + strconv.Itoa(resp.StatusCode)
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &payment.GatewayError{Op: op, StatusCode: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		outcome = "decode_error"
		return fmt.Errorf("gateway: %s: decode response: %w", op, err)
	}
	return nil
}
