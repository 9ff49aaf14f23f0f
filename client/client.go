package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	apperrors "github.com/kbukum/changefeed/errors"
	"github.com/kbukum/changefeed/feed"
	"github.com/kbukum/changefeed/logger"
)

// Client talks to a feed server. It is a feed.Source over the server's
// change streams and exposes the table admin API.
type Client struct {
	httpClient   *http.Client
	streamClient *http.Client
	config       Config
	log          *logger.Logger
}

var _ feed.Source = (*Client)(nil)

// New creates a client. A nil log discards output.
func New(cfg Config, log *logger.Logger) (*Client, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	transport := http.DefaultTransport.(*http.Transport).Clone()
	return &Client{
		httpClient: &http.Client{Transport: transport, Timeout: cfg.Timeout},
		// Streams have no global timeout; their context ends them.
		streamClient: &http.Client{Transport: transport},
		config:       cfg,
		log:          logger.OrNop(log).WithComponent("client"),
	}, nil
}

// path joins escaped segments under the base URL.
func (c *Client) path(segments ...string) string {
	var b strings.Builder
	b.WriteString(strings.TrimRight(c.config.BaseURL, "/"))
	for _, s := range segments {
		b.WriteByte('/')
		b.WriteString(url.PathEscape(s))
	}
	return b.String()
}

func (c *Client) newRequest(ctx context.Context, method, target string, body any) (*http.Request, error) {
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return nil, apperrors.InvalidInput("body", err.Error())
		}
		reader = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return nil, apperrors.InvalidInput("url", err.Error())
	}
	for k, v := range c.config.Headers {
		req.Header.Set(k, v)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	token, err := c.bearer()
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req, nil
}

func (c *Client) bearer() (string, error) {
	if c.config.Token != "" || c.config.Secret == "" {
		return c.config.Token, nil
	}
	return SignToken(c.config.Secret, c.config.Issuer, "client", c.config.TokenTTL)
}

// do sends a JSON request and decodes the "data" member of the response
// into out, when out is non-nil.
func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	req, err := c.newRequest(ctx, method, target, body)
	if err != nil {
		return err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return apperrors.Transport(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return decodeError(resp)
	}
	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}

	envelope := struct {
		Data any `json:"data"`
	}{Data: out}
	if err := json.NewDecoder(resp.Body).Decode(&envelope); err != nil {
		return apperrors.MalformedPayload(fmt.Errorf("decode %s %s response: %w", method, req.URL.Path, err))
	}
	return nil
}

// decodeError turns an error response into the AppError it carries.
func decodeError(resp *http.Response) error {
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEventSize))
	if err != nil {
		return apperrors.Transport(fmt.Errorf("read error response: %w", err))
	}

	var er apperrors.ErrorResponse
	if err := json.Unmarshal(body, &er); err == nil && er.Error.Code != "" {
		return apperrors.FromBody(er.Error)
	}
	if resp.StatusCode >= 500 {
		return apperrors.Transport(fmt.Errorf("HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}
	return apperrors.New(apperrors.ErrCodeInternal, fmt.Sprintf("unexpected HTTP %d", resp.StatusCode), resp.StatusCode)
}
