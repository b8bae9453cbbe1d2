package upstream

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

	"github.com/pawpal/composite-service/internal/pkg/httpx"
	"github.com/pawpal/composite-service/internal/platform/apierr"
	"github.com/pawpal/composite-service/internal/platform/logger"
)

// Client wraps one upstream resource API (principal or dependent service).
// Every call is a single attempt with a bounded timeout; create/update/
// delete are not idempotent and are never retried.
type Client interface {
	Name() string
	Get(ctx context.Context, id string) (Record, error)
	GetStats(ctx context.Context, id string) (Record, error)
	List(ctx context.Context, filters map[string]string) ([]Record, error)
	ListByOwner(ctx context.Context, ownerID string) ([]Record, error)
	Search(ctx context.Context, query string, filters map[string]string) ([]Record, error)
	Create(ctx context.Context, payload Record) (Record, error)
	Update(ctx context.Context, id string, payload Record) (Record, error)
	Delete(ctx context.Context, id string) (Record, error)
}

type Config struct {
	// Name identifies the upstream in error messages and logs,
	// e.g. "principal" or "dependent".
	Name     string
	BaseURL  string
	Resource string
	Timeout  time.Duration
}

const DefaultTimeout = 5 * time.Second

func New(log *logger.Logger, cfg Config) (Client, error) {
	if log == nil {
		return nil, fmt.Errorf("logger required")
	}
	cfg.Name = strings.TrimSpace(cfg.Name)
	if cfg.Name == "" {
		return nil, fmt.Errorf("upstream: Name required")
	}
	cfg.BaseURL = strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("upstream %s: BaseURL required", cfg.Name)
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, fmt.Errorf("upstream %s: invalid BaseURL: %w", cfg.Name, err)
	}
	cfg.Resource = strings.TrimRight(strings.TrimSpace(cfg.Resource), "/")
	if cfg.Resource == "" {
		return nil, fmt.Errorf("upstream %s: Resource required", cfg.Name)
	}
	if !strings.HasPrefix(cfg.Resource, "/") {
		cfg.Resource = "/" + cfg.Resource
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	return &client{
		log:        log.With("client", cfg.Name+"Upstream"),
		cfg:        cfg,
		httpClient: &http.Client{},
	}, nil
}

type client struct {
	log        *logger.Logger
	cfg        Config
	httpClient *http.Client
}

func (c *client) Name() string { return c.cfg.Name }

func (c *client) Get(ctx context.Context, id string) (Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apierr.Validation("id is required")
	}
	env, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return env.record()
}

func (c *client) GetStats(ctx context.Context, id string) (Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apierr.Validation("id is required")
	}
	env, err := c.do(ctx, http.MethodGet, "/"+url.PathEscape(id)+"/stats", nil, nil)
	if err != nil {
		return nil, err
	}
	return env.record()
}

func (c *client) List(ctx context.Context, filters map[string]string) ([]Record, error) {
	env, err := c.do(ctx, http.MethodGet, "", queryValues(filters), nil)
	if err != nil {
		return nil, err
	}
	return env.records()
}

func (c *client) ListByOwner(ctx context.Context, ownerID string) ([]Record, error) {
	if strings.TrimSpace(ownerID) == "" {
		return nil, apierr.Validation("ownerId is required")
	}
	env, err := c.do(ctx, http.MethodGet, "/owner/"+url.PathEscape(ownerID), nil, nil)
	if err != nil {
		return nil, err
	}
	return env.records()
}

func (c *client) Search(ctx context.Context, query string, filters map[string]string) ([]Record, error) {
	q := queryValues(filters)
	q.Set("q", query)
	env, err := c.do(ctx, http.MethodGet, "/search", q, nil)
	if err != nil {
		return nil, err
	}
	return env.records()
}

func (c *client) Create(ctx context.Context, payload Record) (Record, error) {
	env, err := c.do(ctx, http.MethodPost, "", nil, payload)
	if err != nil {
		return nil, err
	}
	return env.record()
}

func (c *client) Update(ctx context.Context, id string, payload Record) (Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apierr.Validation("id is required")
	}
	env, err := c.do(ctx, http.MethodPut, "/"+url.PathEscape(id), nil, payload)
	if err != nil {
		return nil, err
	}
	return env.record()
}

func (c *client) Delete(ctx context.Context, id string) (Record, error) {
	if strings.TrimSpace(id) == "" {
		return nil, apierr.Validation("id is required")
	}
	env, err := c.do(ctx, http.MethodDelete, "/"+url.PathEscape(id), nil, nil)
	if err != nil {
		return nil, err
	}
	return env.record()
}

// envelope is the upstream wire shape {success, count, message, data}.
// raw keeps the undecoded body so callers fall back to it when the
// upstream did not wrap its payload in a data field.
type envelope struct {
	Success bool            `json:"success"`
	Count   int             `json:"count"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`

	raw []byte
}

func (e *envelope) record() (Record, error) {
	body := []byte(e.Data)
	if len(body) == 0 || string(body) == "null" {
		body = e.raw
	}
	var rec Record
	if err := json.Unmarshal(body, &rec); err != nil {
		return nil, apierr.Internal("malformed upstream payload", err)
	}
	return rec, nil
}

func (e *envelope) records() ([]Record, error) {
	body := []byte(e.Data)
	if len(body) == 0 || string(body) == "null" {
		body = e.raw
	}
	var recs []Record
	if err := json.Unmarshal(body, &recs); err != nil {
		return nil, apierr.Internal("malformed upstream payload", err)
	}
	return recs, nil
}

func (c *client) do(ctx context.Context, method, path string, query url.Values, payload any) (*envelope, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	target := c.cfg.BaseURL + c.cfg.Resource + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}

	var body io.Reader
	if payload != nil {
		buf, err := json.Marshal(payload)
		if err != nil {
			return nil, apierr.Internal("encode request payload", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, apierr.Internal("build upstream request", err)
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Warn("upstream call failed",
			"method", method,
			"url", target,
			"timeout", httpx.IsTimeout(err),
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err,
		)
		return nil, apierr.Unavailable(fmt.Sprintf("%s service unavailable", c.cfg.Name), err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apierr.Unavailable(fmt.Sprintf("%s service unavailable", c.cfg.Name), err)
	}

	// A non-envelope body leaves Data empty; record()/records() then fall
	// back to the whole decoded body.
	env := &envelope{raw: raw}
	_ = json.Unmarshal(raw, env)

	if resp.StatusCode >= http.StatusBadRequest {
		msg := env.Message
		if msg == "" {
			msg = fmt.Sprintf("%s service returned status %d", c.cfg.Name, resp.StatusCode)
		}
		var detail any
		if json.Unmarshal(raw, &detail) != nil {
			detail = string(raw)
		}
		c.log.Warn("upstream error response",
			"method", method,
			"url", target,
			"status", resp.StatusCode,
			"message", msg,
		)
		return nil, apierr.Upstream(resp.StatusCode, msg, detail)
	}
	return env, nil
}

func queryValues(filters map[string]string) url.Values {
	q := url.Values{}
	for k, v := range filters {
		q.Set(k, v)
	}
	return q
}
