package remote

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Default endpoints and limits.
const (
	DefaultAPIBaseURL      = "https://api.github.com"
	DefaultRawBaseURL      = "https://raw.githubusercontent.com"
	DefaultUserAgent       = "prolet/dev"
	DefaultAPITimeout      = 30 * time.Second
	DefaultDownloadTimeout = 60 * time.Second

	acceptJSON = "application/vnd.github.v3+json"
)

// ClientConfig configures a Client. Zero fields take defaults.
type ClientConfig struct {
	APIBaseURL      string
	RawBaseURL      string
	Token           string
	UserAgent       string
	APITimeout      time.Duration
	DownloadTimeout time.Duration
	HTTPClient      *http.Client
}

// Client talks to the GitHub REST API and raw content host.
type Client struct {
	apiBase         string
	rawBase         string
	token           string
	userAgent       string
	apiTimeout      time.Duration
	downloadTimeout time.Duration
	http            *http.Client
}

// NewClient creates a Client.
func NewClient(cfg ClientConfig) *Client {
	if cfg.APIBaseURL == "" {
		cfg.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.RawBaseURL == "" {
		cfg.RawBaseURL = DefaultRawBaseURL
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.APITimeout <= 0 {
		cfg.APITimeout = DefaultAPITimeout
	}
	if cfg.DownloadTimeout <= 0 {
		cfg.DownloadTimeout = DefaultDownloadTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{
			Transport: &http.Transport{
				Proxy: http.ProxyFromEnvironment,
				DialContext: (&net.Dialer{
					Timeout:   10 * time.Second,
					KeepAlive: 30 * time.Second,
				}).DialContext,
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 16,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		}
	}

	return &Client{
		apiBase:         strings.TrimSuffix(cfg.APIBaseURL, "/"),
		rawBase:         strings.TrimSuffix(cfg.RawBaseURL, "/"),
		token:           cfg.Token,
		userAgent:       cfg.UserAgent,
		apiTimeout:      cfg.APITimeout,
		downloadTimeout: cfg.DownloadTimeout,
		http:            cfg.HTTPClient,
	}
}

type refResponse struct {
	Object struct {
		SHA string `json:"sha"`
	} `json:"object"`
}

type commitResponse struct {
	Tree struct {
		SHA string `json:"sha"`
	} `json:"tree"`
}

type treeResponse struct {
	SHA       string `json:"sha"`
	Truncated bool   `json:"truncated"`
	Tree      []struct {
		Path string `json:"path"`
		Type string `json:"type"`
		SHA  string `json:"sha"`
		Size int64  `json:"size"`
	} `json:"tree"`
}

// ResolveTree resolves branch to a commit, the commit to its root tree, and
// lists that tree recursively. Only blob entries are returned, in listing
// order. Download URLs are pinned to the resolved commit.
func (c *Client) ResolveTree(ctx context.Context, repo Repo, branch string) (Tree, error) {
	base := fmt.Sprintf("%s/repos/%s/%s/git", c.apiBase, url.PathEscape(repo.Owner), url.PathEscape(repo.Name))

	var ref refResponse
	if err := c.getJSON(ctx, base+"/ref/heads/"+escapePath(branch), &ref); err != nil {
		return Tree{}, &RemoteError{Op: "resolve branch " + branch, Err: err}
	}
	if ref.Object.SHA == "" {
		return Tree{}, &RemoteError{Op: "resolve branch " + branch, Err: fmt.Errorf("empty commit sha")}
	}

	var commit commitResponse
	if err := c.getJSON(ctx, base+"/commits/"+ref.Object.SHA, &commit); err != nil {
		return Tree{}, &RemoteError{Op: "resolve commit " + ref.Object.SHA, Err: err}
	}
	if commit.Tree.SHA == "" {
		return Tree{}, &RemoteError{Op: "resolve commit " + ref.Object.SHA, Err: fmt.Errorf("empty tree sha")}
	}

	var listing treeResponse
	if err := c.getJSON(ctx, base+"/trees/"+commit.Tree.SHA+"?recursive=1", &listing); err != nil {
		return Tree{}, &RemoteError{Op: "list tree " + commit.Tree.SHA, Err: err}
	}
	if listing.Truncated {
		slog.Warn("remote tree listing truncated", "repo", repo.String(), "tree", commit.Tree.SHA)
	}

	tree := Tree{
		Commit:  ref.Object.SHA,
		TreeID:  commit.Tree.SHA,
		Entries: make([]FileEntry, 0, len(listing.Tree)),
	}
	for _, item := range listing.Tree {
		if item.Type != "blob" {
			continue
		}
		entry := NewFileEntry(item.Path, item.SHA, item.Size)
		entry.DownloadURL = c.RawURL(repo, ref.Object.SHA, item.Path)
		tree.Entries = append(tree.Entries, entry)
	}
	return tree, nil
}

// RawURL returns the raw content location of p at rev.
func (c *Client) RawURL(repo Repo, rev, p string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		c.rawBase, url.PathEscape(repo.Owner), url.PathEscape(repo.Name), rev, escapePath(p))
}

// Download opens the content at rawURL. The caller must close the returned
// reader; the per-call timeout covers the whole body read.
func (c *Client) Download(ctx context.Context, rawURL string) (io.ReadCloser, error) {
	ctx, cancel := context.WithTimeout(ctx, c.downloadTimeout)

	req, err := c.newRequest(ctx, rawURL, "")
	if err != nil {
		cancel()
		return nil, err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("download %s: %w", rawURL, err)
	}
	if resp.StatusCode != http.StatusOK {
		drainAndClose(resp.Body)
		cancel()
		return nil, &StatusError{URL: rawURL, StatusCode: resp.StatusCode}
	}
	return &cancelBody{ReadCloser: resp.Body, cancel: cancel}, nil
}

func (c *Client) getJSON(ctx context.Context, u string, v any) error {
	ctx, cancel := context.WithTimeout(ctx, c.apiTimeout)
	defer cancel()

	req, err := c.newRequest(ctx, u, acceptJSON)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", u, err)
	}
	defer drainAndClose(resp.Body)

	if resp.StatusCode != http.StatusOK {
		return &StatusError{URL: u, StatusCode: resp.StatusCode}
	}
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode %s: %w", u, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, u, accept string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request %s: %w", u, err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	return req, nil
}

// escapePath escapes each segment of a slash-separated path.
func escapePath(p string) string {
	segs := strings.Split(p, "/")
	for i, s := range segs {
		segs[i] = url.PathEscape(s)
	}
	return strings.Join(segs, "/")
}

func drainAndClose(body io.ReadCloser) {
	_, _ = io.Copy(io.Discard, io.LimitReader(body, 64<<10))
	_ = body.Close()
}

type cancelBody struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelBody) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}
