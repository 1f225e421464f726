// Package client talks to a quiztab server over HTTP. A *Client serves as
// the session's grading authority, instantiator and attempt store.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	auth "github.com/mind-engage/quiztab/internal/auth/middleware"
	"github.com/mind-engage/quiztab/internal/bank"
	"github.com/mind-engage/quiztab/internal/grading"
	"github.com/mind-engage/quiztab/internal/instance"
	"github.com/mind-engage/quiztab/internal/question"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
}

type Client struct {
	BaseURL string
	HTTP    *http.Client
	Token   string
}

type Option func(*Client)

func WithToken(tok string) Option          { return func(c *Client) { c.Token = tok } }
func WithHTTPClient(h *http.Client) Option { return func(c *Client) { c.HTTP = h } }

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		HTTP:    &http.Client{Timeout: 30 * time.Second},
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, user, password string) (auth.LoginResponse, error) {
	var out auth.LoginResponse
	err := c.do(ctx, http.MethodPost, "/auth/login", map[string]string{"username": user, "password": password}, &out)
	if err != nil {
		return auth.LoginResponse{}, err
	}
	c.Token = out.AccessToken
	return out, nil
}

func (c *Client) Catalog(ctx context.Context) (bank.Catalog, error) {
	var out bank.Catalog
	err := c.do(ctx, http.MethodGet, "/questions", nil, &out)
	return out, err
}

// Instantiate asks the server to realize q with seed.
func (c *Client) Instantiate(ctx context.Context, q question.Question, seed int64) (instance.Instance, error) {
	return c.InstantiateID(ctx, q.ID, bank.InstantiateRequest{Seed: &seed})
}

func (c *Client) InstantiateID(ctx context.Context, id string, req bank.InstantiateRequest) (instance.Instance, error) {
	var out instance.Instance
	err := c.do(ctx, http.MethodPost, "/questions/"+url.PathEscape(id)+"/instantiate", req, &out)
	return out, err
}

func (c *Client) Grade(ctx context.Context, questionID string, req grading.GradeRequest) (grading.GradeResponse, error) {
	var out grading.GradeResponse
	err := c.do(ctx, http.MethodPost, "/questions/"+url.PathEscape(questionID)+"/grade", req, &out)
	return out, err
}

func (c *Client) RecordAttempt(ctx context.Context, a question.Attempt) (question.Attempt, error) {
	var out question.Attempt
	err := c.do(ctx, http.MethodPost, "/attempts", a, &out)
	return out, err
}

// CountAttempts counts the caller's attempts on one question.
func (c *Client) CountAttempts(ctx context.Context, questionID string) (int, error) {
	list, err := c.ListAttempts(ctx, bank.AttemptListOpts{QuestionID: questionID})
	return len(list), err
}

func (c *Client) ListAttempts(ctx context.Context, opts bank.AttemptListOpts) ([]question.Attempt, error) {
	var out []question.Attempt
	err := c.do(ctx, http.MethodGet, "/attempts?"+attemptQuery(opts).Encode(), nil, &out)
	return out, err
}

// AttemptsXLSX streams the attempt spreadsheet into w.
func (c *Client) AttemptsXLSX(ctx context.Context, w io.Writer, opts bank.AttemptListOpts) error {
	resp, err := c.send(ctx, http.MethodGet, "/attempts/export.xlsx?"+attemptQuery(opts).Encode(), nil, "")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, err = io.Copy(w, resp.Body)
	return err
}

// Import uploads a raw pack document. A rejected pack returns its report
// together with the *APIError.
func (c *Client) Import(ctx context.Context, raw []byte, replace bool) (bank.ImportReport, error) {
	path := "/questions/import?replace_duplicates=0"
	if replace {
		path = "/questions/import?replace_duplicates=1"
	}
	req, err := c.request(ctx, http.MethodPost, path, bytes.NewReader(raw), "application/json")
	if err != nil {
		return bank.ImportReport{}, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return bank.ImportReport{}, err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return bank.ImportReport{}, err
	}
	var rep bank.ImportReport
	decodeErr := json.Unmarshal(body, &rep)
	if resp.StatusCode/100 != 2 {
		return rep, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}
	return rep, decodeErr
}

// Export fetches a pack document. path is /questions/export or /packs/export;
// an empty schema takes the server default.
func (c *Client) Export(ctx context.Context, path, schema string) (json.RawMessage, error) {
	if schema != "" {
		path += "?schema=" + url.QueryEscape(schema)
	}
	var out json.RawMessage
	err := c.do(ctx, http.MethodGet, path, nil, &out)
	return out, err
}

func attemptQuery(opts bank.AttemptListOpts) url.Values {
	q := url.Values{}
	if opts.UserID != "" {
		q.Set("user", opts.UserID)
	}
	if opts.QuestionID != "" {
		q.Set("question_id", opts.QuestionID)
	}
	if opts.Limit > 0 {
		q.Set("limit", strconv.Itoa(opts.Limit))
	}
	if opts.Offset > 0 {
		q.Set("offset", strconv.Itoa(opts.Offset))
	}
	return q
}

func (c *Client) request(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	return req, nil
}

// send performs the request and turns non-2xx responses into *APIError.
func (c *Client) send(ctx context.Context, method, path string, body io.Reader, contentType string) (*http.Response, error) {
	req, err := c.request(ctx, method, path, body, contentType)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode/100 != 2 {
		defer resp.Body.Close()
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, &APIError{Status: resp.StatusCode, Message: strings.TrimSpace(string(msg))}
	}
	return resp, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var (
		body io.Reader
		ct   string
	)
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body, ct = bytes.NewReader(b), "application/json"
	}
	resp, err := c.send(ctx, method, path, body, ct)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s %s: %w", method, path, err)
	}
	return nil
}
