package netbox

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"inventory-sync/core/httpclient"
	"inventory-sync/core/reconcile"

	"github.com/gofiber/fiber/v2"
)

// BranchHeader selects the branch a request operates on.
const BranchHeader = "X-NetBox-Branch"

// APIError is a non-2xx response from NetBox.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("netbox %s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// Unwrap maps 404 onto reconcile.ErrNotFound.
func (e *APIError) Unwrap() error {
	if e.StatusCode == fiber.StatusNotFound {
		return reconcile.ErrNotFound
	}
	return nil
}

// Client is a minimal NetBox REST client over fiber's HTTP agent.
type Client struct {
	base     *url.URL
	token    string
	pageSize int
	timeout  time.Duration
	http     *fiber.Client

	mu     sync.RWMutex
	branch string
}

// NewClient creates a client from the configuration.
func NewClient(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, errors.New("netbox url is required")
	}
	if cfg.APIToken == "" {
		return nil, errors.New("netbox api token is required")
	}
	base, err := url.Parse(strings.TrimRight(cfg.URL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid netbox url %q: %w", cfg.URL, err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid netbox url %q: scheme must be http or https", cfg.URL)
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 250
	}
	return &Client{
		base:     base,
		token:    cfg.APIToken,
		pageSize: pageSize,
		timeout:  httpclient.Seconds(cfg.TimeoutSeconds),
		http:     &fiber.Client{UserAgent: "inventory-sync"},
	}, nil
}

// UseBranch sends every following request to the branch with the given
// schema id. An empty id selects the main schema.
func (c *Client) UseBranch(schemaID string) {
	c.mu.Lock()
	c.branch = schemaID
	c.mu.Unlock()
}

// Branch returns the schema id of the selected branch.
func (c *Client) Branch() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.branch
}

// Status returns the NetBox version and installed plugins.
func (c *Client) Status(ctx context.Context) (*Status, error) {
	var s Status
	if err := c.do(ctx, fiber.MethodGet, c.endpoint("/api/status/", nil), nil, &s); err != nil {
		return nil, err
	}
	return &s, nil
}

// endpoint joins an API path and query onto the base URL.
func (c *Client) endpoint(path string, query url.Values) string {
	u := *c.base
	u.Path = c.base.Path + path
	u.RawPath = ""
	u.RawQuery = query.Encode()
	return u.String()
}

// follow turns a "next" link into a URL on the configured base. NetBox
// builds the link from its own view of the request, so the scheme and host
// may differ behind a proxy; the path already carries any base path.
func (c *Client) follow(next string) (string, error) {
	u, err := url.Parse(next)
	if err != nil {
		return "", fmt.Errorf("invalid next page %q: %w", next, err)
	}
	path := u.Path
	if !strings.HasPrefix(path, c.base.Path+"/") {
		path = c.base.Path + path
	}
	out := *c.base
	out.Path = path
	out.RawPath = ""
	out.RawQuery = u.RawQuery
	return out.String(), nil
}

// list walks every page of a list endpoint.
func (c *Client) list(ctx context.Context, path string, query url.Values, fn func(json.RawMessage) error) error {
	if query == nil {
		query = url.Values{}
	}
	query.Set("limit", strconv.Itoa(c.pageSize))
	next := c.endpoint(path, query)

	for next != "" {
		var page listPage
		if err := c.do(ctx, fiber.MethodGet, next, nil, &page); err != nil {
			return err
		}
		for _, raw := range page.Results {
			if err := fn(raw); err != nil {
				return err
			}
		}

		next = ""
		if page.Next != nil && *page.Next != "" {
			var err error
			if next, err = c.follow(*page.Next); err != nil {
				return err
			}
		}
	}
	return nil
}

func (c *Client) create(ctx context.Context, path string, body any) (int64, error) {
	var out created
	if err := c.do(ctx, fiber.MethodPost, c.endpoint(path, nil), body, &out); err != nil {
		return 0, err
	}
	return out.ID, nil
}

func (c *Client) patch(ctx context.Context, path string, id int64, body any) error {
	return c.do(ctx, fiber.MethodPatch, c.endpoint(fmt.Sprintf("%s%d/", path, id), nil), body, nil)
}

func (c *Client) delete(ctx context.Context, path string, id int64) error {
	return c.do(ctx, fiber.MethodDelete, c.endpoint(fmt.Sprintf("%s%d/", path, id), nil), nil, nil)
}

func (c *Client) agent(method, target string) (*fiber.Agent, error) {
	switch method {
	case fiber.MethodGet:
		return c.http.Get(target), nil
	case fiber.MethodPost:
		return c.http.Post(target), nil
	case fiber.MethodPatch:
		return c.http.Patch(target), nil
	case fiber.MethodDelete:
		return c.http.Delete(target), nil
	default:
		return nil, fmt.Errorf("unsupported method %s", method)
	}
}

// requestTimeout bounds one request by the client timeout and the context
// deadline, whichever comes first.
func (c *Client) requestTimeout(ctx context.Context) (time.Duration, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	timeout := c.timeout
	if deadline, ok := ctx.Deadline(); ok {
		left := time.Until(deadline)
		if left <= 0 {
			return 0, context.DeadlineExceeded
		}
		if left < timeout {
			timeout = left
		}
	}
	return timeout, nil
}

func (c *Client) do(ctx context.Context, method, target string, body, out any) error {
	timeout, err := c.requestTimeout(ctx)
	if err != nil {
		return err
	}
	path := target
	if u, err := url.Parse(target); err == nil {
		path = u.RequestURI()
	}

	a, err := c.agent(method, target)
	if err != nil {
		return err
	}
	a.Set(fiber.HeaderAuthorization, "Token "+c.token)
	a.Set(fiber.HeaderAccept, fiber.MIMEApplicationJSON)
	if branch := c.Branch(); branch != "" {
		a.Set(BranchHeader, branch)
	}
	if body != nil {
		a.JSON(body)
	}
	a.Timeout(timeout)

	code, res, errs := a.Bytes()
	if len(errs) > 0 {
		return fmt.Errorf("netbox %s %s: %w", method, path, errors.Join(errs...))
	}

	if code < 200 || code > 299 {
		msg := res
		if len(msg) > 4096 {
			msg = msg[:4096]
		}
		return &APIError{Method: method, Path: path, StatusCode: code, Body: strings.TrimSpace(string(msg))}
	}
	if out == nil || code == fiber.StatusNoContent || len(res) == 0 {
		return nil
	}
	if err := json.Unmarshal(res, out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}

// isStatus reports whether err is an APIError with the given status code.
func isStatus(err error, code int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == code
}
