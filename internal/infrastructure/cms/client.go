// Package cms talks to the WordPress REST API of the publishing site.
package cms

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout = 30 * time.Second
	maxErrorBody   = 512
)

// ErrUnauthorized is returned when the CMS rejects credentials or a token.
var ErrUnauthorized = errors.New("cms rejected credentials")

// Config holds endpoints and credentials.
type Config struct {
	BaseURL  string
	AuthURL  string
	Username string
	Password string
}

// Client performs single CMS calls. It keeps no token state.
type Client struct {
	baseURL  string
	authURL  string
	username string
	password string
	client   *http.Client
}

// Post is the payload for a new CMS post.
type Post struct {
	Title         string  `json:"title"`
	Content       string  `json:"content"`
	Slug          string  `json:"slug"`
	Excerpt       string  `json:"excerpt"`
	Author        int64   `json:"author,omitempty"`
	Status        string  `json:"status"`
	Categories    []int64 `json:"categories,omitempty"`
	FeaturedMedia int64   `json:"featured_media"`
}

// RemotePost is the part of a CMS post the newsroom pulls back.
type RemotePost struct {
	ID     int64
	Status string
	Raw    string
}

type tokenResponse struct {
	Token string `json:"token"`
	Data  struct {
		Token string `json:"token"`
	} `json:"data"`
}

type idResponse struct {
	ID int64 `json:"id"`
}

type postResponse struct {
	ID      int64  `json:"id"`
	Status  string `json:"status"`
	Content struct {
		Raw      string `json:"raw"`
		Rendered string `json:"rendered"`
	} `json:"content"`
}

// NewClient validates configuration; httpClient may be nil.
func NewClient(cfg Config, httpClient *http.Client) (*Client, error) {
	if cfg.BaseURL == "" {
		return nil, errors.New("cms base url is required")
	}
	if cfg.AuthURL == "" {
		cfg.AuthURL = cfg.BaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: defaultTimeout}
	}
	return &Client{
		baseURL:  strings.TrimSuffix(cfg.BaseURL, "/"),
		authURL:  strings.TrimSuffix(cfg.AuthURL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		client:   httpClient,
	}, nil
}

// Token exchanges the configured credentials for an access token.
func (c *Client) Token(ctx context.Context) (string, error) {
	body, err := json.Marshal(map[string]string{"username": c.username, "password": c.password})
	if err != nil {
		return "", fmt.Errorf("marshal credentials: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/token", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	var out tokenResponse
	if err := c.do(req, &out); err != nil {
		return "", fmt.Errorf("acquire token: %w", err)
	}
	token := out.Data.Token
	if token == "" {
		token = out.Token
	}
	if token == "" {
		return "", errors.New("acquire token: empty token in response")
	}
	return token, nil
}

// Validate asks the CMS whether token is still accepted.
func (c *Client) Validate(ctx context.Context, token string) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+"/token/validate", http.NoBody)
	if err != nil {
		return false, fmt.Errorf("create validate request: %w", err)
	}
	setBearer(req, token)

	err = c.do(req, nil)
	switch {
	case err == nil:
		return true, nil
	case errors.Is(err, ErrUnauthorized):
		return false, nil
	default:
		return false, fmt.Errorf("validate token: %w", err)
	}
}

// UploadMedia stores an image as a draft media object and returns its id.
func (c *Client) UploadMedia(ctx context.Context, token, name string, data []byte) (int64, error) {
	if len(data) == 0 {
		return 0, errors.New("upload media: empty image")
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("file", name)
	if err != nil {
		return 0, fmt.Errorf("create form file: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return 0, fmt.Errorf("write form file: %w", err)
	}
	if err := w.WriteField("status", "draft"); err != nil {
		return 0, fmt.Errorf("write form field: %w", err)
	}
	if err := w.Close(); err != nil {
		return 0, fmt.Errorf("close multipart: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/media", &buf)
	if err != nil {
		return 0, fmt.Errorf("create media request: %w", err)
	}
	req.Header.Set("Content-Type", w.FormDataContentType())
	setBearer(req, token)

	var out idResponse
	if err := c.do(req, &out); err != nil {
		return 0, fmt.Errorf("upload media: %w", err)
	}
	if out.ID == 0 {
		return 0, errors.New("upload media: response without id")
	}
	return out.ID, nil
}

// CreatePost creates a post and returns its remote id.
func (c *Client) CreatePost(ctx context.Context, token string, post Post) (int64, error) {
	body, err := json.Marshal(post)
	if err != nil {
		return 0, fmt.Errorf("marshal post: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/posts", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create post request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	setBearer(req, token)

	var out idResponse
	if err := c.do(req, &out); err != nil {
		return 0, fmt.Errorf("create post: %w", err)
	}
	if out.ID == 0 {
		return 0, errors.New("create post: response without id")
	}
	return out.ID, nil
}

// GetPost fetches the raw content and status of a post.
func (c *Client) GetPost(ctx context.Context, token string, id int64) (RemotePost, error) {
	endpoint := c.baseURL + "/posts/" + strconv.FormatInt(id, 10) + "?context=edit"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, http.NoBody)
	if err != nil {
		return RemotePost{}, fmt.Errorf("create get post request: %w", err)
	}
	setBearer(req, token)

	var out postResponse
	if err := c.do(req, &out); err != nil {
		return RemotePost{}, fmt.Errorf("get post %d: %w", id, err)
	}
	raw := out.Content.Raw
	if raw == "" {
		raw = out.Content.Rendered
	}
	return RemotePost{ID: out.ID, Status: out.Status, Raw: raw}, nil
}

func setBearer(req *http.Request, token string) {
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		_, _ = io.Copy(io.Discard, resp.Body)
		return fmt.Errorf("%w: %s", ErrUnauthorized, resp.Status)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return fmt.Errorf("cms returned %s: %s", resp.Status, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
