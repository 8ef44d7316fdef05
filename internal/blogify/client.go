package blogify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"time"

	"github.com/blackmichael/blogify/internal/domain"
	"github.com/google/uuid"
)

const defaultBaseURL = "http://localhost:5000"

// Client is a Blogify REST API client. Session credentials travel as cookies
// on every call; the jar can be persisted with UseCookieStore.
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	jar        http.CookieJar
	cookies    domain.CookieRepository
	logger     *slog.Logger
}

// NewClient creates a new Blogify API client. If baseURL is empty, it defaults
// to http://localhost:5000.
func NewClient(baseURL string, timeout time.Duration, logger *slog.Logger) (*Client, error) {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base url: %w", err)
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, fmt.Errorf("create cookie jar: %w", err)
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL: u,
		httpClient: &http.Client{
			Timeout: timeout,
			Jar:     jar,
		},
		jar:    jar,
		logger: logger,
	}, nil
}

// Jar returns the cookie jar shared by every call, so that other transports
// (the realtime channel) present the same session.
func (c *Client) Jar() http.CookieJar {
	return c.jar
}

// BaseURL returns the backend base URL.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// UseCookieStore loads persisted cookies into the jar and saves the jar back
// to repo after every call.
func (c *Client) UseCookieStore(ctx context.Context, repo domain.CookieRepository) error {
	cookies, err := repo.LoadCookies(ctx, c.baseURL.Host)
	if err != nil {
		return fmt.Errorf("load cookies: %w", err)
	}
	if len(cookies) > 0 {
		c.jar.SetCookies(c.baseURL, cookies)
	}
	c.cookies = repo
	return nil
}

// envelope is the common part of every backend response.
type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// enveloped is implemented by every response type through the embedded
// envelope, so do can check success uniformly.
type enveloped interface {
	status() envelope
}

func (e envelope) status() envelope { return e }

func (c *Client) get(ctx context.Context, op, path string, query url.Values, result enveloped) error {
	u := c.resolve(path)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	return c.do(op, req, result)
}

func (c *Client) sendJSON(ctx context.Context, op, method, path string, body any, result enveloped) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path).String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.do(op, req, result)
}

type formField struct {
	name, value string
}

// formFile is the optional file part of a multipart request. It is skipped
// when content is empty.
type formFile struct {
	field, name string
	content     []byte
}

func (c *Client) sendMultipart(ctx context.Context, op, method, path string, fields []formField, file formFile, result enveloped) error {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for _, f := range fields {
		if err := w.WriteField(f.name, f.value); err != nil {
			return fmt.Errorf("write %s field: %w", f.name, err)
		}
	}
	if len(file.content) > 0 {
		name := file.name
		if name == "" {
			name = file.field
		}
		part, err := w.CreateFormFile(file.field, name)
		if err != nil {
			return fmt.Errorf("create %s part: %w", file.field, err)
		}
		if _, err := part.Write(file.content); err != nil {
			return fmt.Errorf("write %s part: %w", file.field, err)
		}
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close multipart writer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.resolve(path).String(), &buf)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	return c.do(op, req, result)
}

func (c *Client) do(op string, req *http.Request, result enveloped) error {
	requestID := uuid.NewString()
	req.Header.Set("X-Request-ID", requestID)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.logger.Debug("backend call failed", "op", op, "request_id", requestID, "error", err)
		return &domain.TransportError{Op: op, Err: fmt.Errorf("send request: %w", err)}
	}
	defer resp.Body.Close()

	c.persistCookies(req.Context())

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var env envelope
		_ = json.Unmarshal(respBody, &env)
		c.logger.Debug("backend rejected call",
			"op", op,
			"request_id", requestID,
			"status", resp.StatusCode,
			"message", env.Message,
		)
		return &domain.RejectedError{Op: op, Status: resp.StatusCode, Message: env.Message}
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return &domain.TransportError{Op: op, Err: fmt.Errorf("unmarshal response: %w", err)}
	}

	if env := result.status(); !env.Success {
		return &domain.RejectedError{Op: op, Status: resp.StatusCode, Message: env.Message}
	}
	return nil
}

func (c *Client) persistCookies(ctx context.Context) {
	if c.cookies == nil {
		return
	}
	if err := c.cookies.SaveCookies(ctx, c.baseURL.Host, c.jar.Cookies(c.baseURL)); err != nil {
		c.logger.Warn("failed to persist session cookies", "error", err)
	}
}

func (c *Client) resolve(path string) *url.URL {
	return c.baseURL.JoinPath(path)
}
