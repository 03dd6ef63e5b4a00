package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
)

const defaultTimeout = 30 * time.Second

// TokenSource yields the bearer token for the caller of ctx. An empty token
// means the call goes out anonymously.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Client issues authenticated calls to the chatbot platform REST API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	tokens     TokenSource
	log        *logrus.Entry
}

type Option func(*Client)

func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

func WithTokenSource(tokens TokenSource) Option {
	return func(c *Client) {
		c.tokens = tokens
	}
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) {
		c.log = log
	}
}

func NewClient(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		log:        logrus.NewEntry(logrus.StandardLogger()),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// makeURL joins endpoint onto the base URL and attaches query.
func (c *Client) makeURL(endpoint string, query url.Values) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid backend url: %w", err)
	}
	u.Path = path.Join(u.Path, endpoint)
	if len(query) > 0 {
		u.RawQuery = query.Encode()
	}
	return u.String(), nil
}

// authorize attaches the bearer token when one is available. Token lookup is
// best effort: a failure is logged and the request proceeds anonymously.
func (c *Client) authorize(ctx context.Context, req *http.Request) {
	if c.tokens == nil {
		return
	}
	token, err := c.tokens.Token(ctx)
	if err != nil {
		c.log.WithError(err).Warn("could not retrieve auth token, sending request without it")
		return
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
}

// sendRequest performs a JSON request and returns the raw response body.
// Responses with status >= 400 become *HTTPError.
func (c *Client) sendRequest(ctx context.Context, method, endpoint string, query url.Values, body interface{}, headers map[string]string) ([]byte, error) {
	target, err := c.makeURL(endpoint, query)
	if err != nil {
		return nil, err
	}

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, target, bodyReader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	c.authorize(ctx, req)

	return c.do(req)
}

func (c *Client) do(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode >= 400 {
		return respBody, newHTTPError(resp.StatusCode, respBody)
	}
	return respBody, nil
}

// getJSON issues a request and decodes the normalized payload into out.
func (c *Client) getJSON(ctx context.Context, method, endpoint string, query url.Values, body, out interface{}) error {
	raw, err := c.sendRequest(ctx, method, endpoint, query, body, nil)
	if err != nil {
		return err
	}
	if out == nil {
		return nil
	}
	return Decode(raw, out)
}

// FileUpload is one file sent to POST /v1/api/file/upload.
type FileUpload struct {
	Name        string
	ContentType string
	Data        []byte
	WorkflowID  string
	WebhookURL  string
}

// UploadFile sends a multipart upload and returns the server-side file id.
func (c *Client) UploadFile(ctx context.Context, f FileUpload) (string, error) {
	target, err := c.makeURL("/v1/api/file/upload", nil)
	if err != nil {
		return "", err
	}

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", f.Name)
	if err != nil {
		return "", err
	}
	if _, err := part.Write(f.Data); err != nil {
		return "", err
	}
	if err := writer.WriteField("workflowId", f.WorkflowID); err != nil {
		return "", err
	}
	if err := writer.WriteField("webhookUrl", f.WebhookURL); err != nil {
		return "", err
	}
	if err := writer.Close(); err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, target, body)
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.authorize(ctx, req)

	respBody, err := c.do(req)
	if err != nil {
		return "", err
	}

	var result struct {
		FileID string `json:"fileId"`
	}
	if err := Decode(respBody, &result); err != nil {
		return "", err
	}
	if result.FileID == "" {
		return "", fmt.Errorf("upload of %s returned no fileId", f.Name)
	}
	return result.FileID, nil
}
