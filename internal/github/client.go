package github

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	httpc "github.com/thegaspygames/canciones/internal/http"
)

// DefaultBaseURL is the public GitHub REST endpoint.
const DefaultBaseURL = "https://api.github.com"

const (
	acceptHeader = "application/vnd.github+json"
	apiVersion   = "2022-11-28"
)

// Client reads and writes files of one repository branch through the
// contents API.
type Client struct {
	http    *httpc.Client
	baseURL string
	owner   string
	repo    string
	branch  string
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL points the client at another API host (GitHub Enterprise or a
// test server).
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}

// WithHTTPClient sets the transport client.
func WithHTTPClient(hc *httpc.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// NewClient creates a contents API client for owner/repo@branch.
func NewClient(owner, repo, branch string, opts ...Option) *Client {
	c := &Client{
		http:    httpc.NewClient(),
		baseURL: DefaultBaseURL,
		owner:   owner,
		repo:    repo,
		branch:  branch,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Branch returns the branch all operations target.
func (c *Client) Branch() string {
	return c.branch
}

// ReadFile fetches a file with its blob sha. token may be empty for public
// repositories.
func (c *Client) ReadFile(ctx context.Context, path, token string) (*File, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	var payload contentResponse
	if err := c.do(req, &payload); err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}

	return &File{Path: payload.Path, SHA: payload.SHA, Content: payload.Content}, nil
}

// WriteFile creates path when sha is empty, or updates it when sha holds the
// blob sha previously read. content is raw bytes; it is base64-encoded here.
// A stale sha is rejected by GitHub and surfaces as a *RemoteError whose
// Conflict method returns true.
func (c *Client) WriteFile(ctx context.Context, path string, content []byte, token, message, sha string) (*CommitResult, error) {
	body, err := json.Marshal(putRequest{
		Message: message,
		Content: base64.StdEncoding.EncodeToString(content),
		Branch:  c.branch,
		SHA:     sha,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := c.newRequest(ctx, http.MethodPut, path, token, body)
	if err != nil {
		return nil, err
	}

	var result CommitResult
	if err := c.do(req, &result); err != nil {
		return nil, fmt.Errorf("write %s: %w", path, err)
	}
	return &result, nil
}

// ListDirectory lists a directory. A missing directory is not an error: it
// yields an empty listing.
func (c *Client) ListDirectory(ctx context.Context, path, token string) ([]Entry, error) {
	req, err := c.newRequest(ctx, http.MethodGet, path, token, nil)
	if err != nil {
		return nil, err
	}

	var entries []Entry
	if err := c.do(req, &entries); err != nil {
		if errors.Is(err, ErrNotFound) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("list %s: %w", path, err)
	}
	return entries, nil
}

// ReadJSON reads path, decodes its content as UTF-8 JSON into v and returns
// the blob sha. Malformed content yields a *ParseError.
func (c *Client) ReadJSON(ctx context.Context, path, token string, v any) (string, error) {
	f, err := c.ReadFile(ctx, path, token)
	if err != nil {
		return "", err
	}
	data, err := f.Bytes()
	if err != nil {
		return "", &ParseError{Path: path, Err: err}
	}
	if err := json.Unmarshal(data, v); err != nil {
		return "", &ParseError{Path: path, Err: err}
	}
	return f.SHA, nil
}

func (c *Client) contentsURL(path string) string {
	var b strings.Builder
	b.WriteString(c.baseURL)
	b.WriteString("/repos/")
	b.WriteString(url.PathEscape(c.owner))
	b.WriteByte('/')
	b.WriteString(url.PathEscape(c.repo))
	b.WriteString("/contents")
	for _, seg := range strings.Split(path, "/") {
		if seg == "" {
			continue
		}
		b.WriteByte('/')
		b.WriteString(url.PathEscape(seg))
	}
	return b.String()
}

func (c *Client) newRequest(ctx context.Context, method, path, token string, body []byte) (*http.Request, error) {
	u := c.contentsURL(path)
	if method == http.MethodGet && c.branch != "" {
		u += "?ref=" + url.QueryEscape(c.branch)
	}

	var reader io.Reader = http.NoBody
	if body != nil {
		reader = bytes.NewReader(body)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", acceptHeader)
	req.Header.Set("X-GitHub-Api-Version", apiVersion)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
		var apiErr errorResponse
		_ = json.Unmarshal(body, &apiErr)
		return &RemoteError{StatusCode: resp.StatusCode, Message: apiErr.Message}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
