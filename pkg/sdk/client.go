// Package sdk is a Go client for the catalog admin REST API. Client implements
// authgate.Authenticator, so it can back an authgate.ClientSession.
package sdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"catalog-admin/internal/authgate"
	"catalog-admin/internal/domain"
)

type Client struct {
	base  string
	http  *http.Client
	token string
}

func New(baseURL string, hc *http.Client) *Client {
	if hc == nil {
		hc = &http.Client{Timeout: 30 * time.Second}
	}
	return &Client{base: strings.TrimRight(baseURL, "/"), http: hc}
}

// WithToken returns a copy that sends token as the bearer credential.
func (c *Client) WithToken(token string) *Client {
	cp := *c
	cp.token = token
	return &cp
}

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type fieldData struct {
	Field string `json:"field"`
}

// decodeError rebuilds the domain error a non-zero envelope code stands for.
func decodeError(env envelope) error {
	var kind domain.Kind
	switch env.Code {
	case 400:
		kind = domain.KindValidation
	case 401:
		kind = domain.KindAuth
	case 403:
		kind = domain.KindForbidden
	case 404:
		kind = domain.KindNotFound
	case 409:
		kind = domain.KindConflict
	case 413:
		kind = domain.KindCapExceeded
	default:
		return fmt.Errorf("api error %d: %s", env.Code, env.Msg)
	}
	e := &domain.Error{Kind: kind, Message: env.Msg}
	var fd fieldData
	if json.Unmarshal(env.Data, &fd) == nil && fd.Field != "" {
		e.Field = fd.Field
		e.Message = strings.TrimPrefix(env.Msg, fd.Field+": ")
	}
	return e
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	res, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer res.Body.Close()
	if res.StatusCode != http.StatusOK {
		return fmt.Errorf("%s %s: unexpected status %s", method, path, res.Status)
	}
	var env envelope
	if err := json.NewDecoder(res.Body).Decode(&env); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	if env.Code != 0 {
		return decodeError(env)
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(env.Data, out)
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}
	return c.do(ctx, method, path, body, "application/json", out)
}

func (c *Client) SignIn(ctx context.Context, in authgate.Credentials) (authgate.Session, error) {
	var s authgate.Session
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/sign-in", in, &s)
	return s, err
}

func (c *Client) SignUp(ctx context.Context, in authgate.SignUpInput) (authgate.Session, error) {
	var s authgate.Session
	err := c.doJSON(ctx, http.MethodPost, "/api/v1/auth/sign-up", in, &s)
	return s, err
}

func (c *Client) SignOut(ctx context.Context, token string) error {
	return c.WithToken(token).doJSON(ctx, http.MethodPost, "/api/v1/auth/sign-out", nil, nil)
}

func (c *Client) ForgotPassword(ctx context.Context, email string) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/auth/forgot-password", map[string]string{"email": email}, nil)
}

func (c *Client) ResetPassword(ctx context.Context, in authgate.ResetPasswordInput) error {
	return c.doJSON(ctx, http.MethodPost, "/api/v1/auth/reset-password", in, nil)
}

func (c *Client) Me(ctx context.Context) (domain.User, error) {
	var out struct {
		User domain.User `json:"user"`
	}
	err := c.doJSON(ctx, http.MethodGet, "/api/v1/me", nil, &out)
	return out.User, err
}

type Page[T any] struct {
	Total int `json:"total"`
	Items []T `json:"items"`
}

type ListOptions struct {
	Query  string
	Status domain.Status
	Offset int
	Limit  int
}

func (o ListOptions) values() url.Values {
	v := url.Values{}
	if o.Query != "" {
		v.Set("q", o.Query)
	}
	if o.Status != "" {
		v.Set("status", string(o.Status))
	}
	if o.Offset > 0 {
		v.Set("offset", strconv.Itoa(o.Offset))
	}
	if o.Limit > 0 {
		v.Set("limit", strconv.Itoa(o.Limit))
	}
	return v
}

func (c *Client) ListCategories(ctx context.Context, o ListOptions) (Page[domain.Category], error) {
	var p Page[domain.Category]
	err := c.doJSON(ctx, http.MethodGet, "/admin/v1/categories?"+o.values().Encode(), nil, &p)
	return p, err
}

func (c *Client) ListApps(ctx context.Context, o ListOptions) (Page[domain.App], error) {
	var p Page[domain.App]
	err := c.doJSON(ctx, http.MethodGet, "/admin/v1/apps?"+o.values().Encode(), nil, &p)
	return p, err
}

type ImportResult struct {
	DryRun bool `json:"dryRun"`
	domain.ImportResult
}

// Import uploads doc as a multipart file, the way the dashboard does.
func (c *Client) Import(ctx context.Context, doc []byte, dryRun bool) (ImportResult, error) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "import.json")
	if err != nil {
		return ImportResult{}, err
	}
	if _, err := fw.Write(doc); err != nil {
		return ImportResult{}, err
	}
	if err := mw.Close(); err != nil {
		return ImportResult{}, err
	}
	var out ImportResult
	path := "/admin/v1/imports?dryRun=" + strconv.FormatBool(dryRun)
	err = c.do(ctx, http.MethodPost, path, &buf, mw.FormDataContentType(), &out)
	return out, err
}

// Dashboard returns the raw dashboard document.
func (c *Client) Dashboard(ctx context.Context) (json.RawMessage, error) {
	var out json.RawMessage
	err := c.doJSON(ctx, http.MethodGet, "/admin/v1/dashboard", nil, &out)
	return out, err
}
