// Package graph talks to the Meta Graph API to check channel credentials
// before they are saved.
package graph

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const DefaultBaseURL = "https://graph.facebook.com/v19.0"

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, httpClient *http.Client) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{baseURL: strings.TrimRight(baseURL, "/"), httpClient: httpClient}
}

// APIError is the error object the Graph API returns.
type APIError struct {
	Status  int    `json:"-"`
	Message string `json:"message"`
	Type    string `json:"type"`
	Code    int    `json:"code"`
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("graph API error: status %d", e.Status)
	}
	return e.Message
}

// --- Helper Functions ---

func (c *Client) sendRequest(ctx context.Context, method, node, token string, query url.Values) ([]byte, error) {
	endpoint := c.baseURL + "/" + url.PathEscape(node)
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

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
		var wrapped struct {
			Error APIError `json:"error"`
		}
		_ = json.Unmarshal(respBody, &wrapped)
		wrapped.Error.Status = resp.StatusCode
		return nil, &wrapped.Error
	}

	return respBody, nil
}

// --- Credential checks ---

type PhoneNumber struct {
	ID                 string `json:"id"`
	DisplayPhoneNumber string `json:"display_phone_number"`
	VerifiedName       string `json:"verified_name"`
	QualityRating      string `json:"quality_rating,omitempty"`
}

// PhoneNumber reads a WhatsApp Business phone number with the given token.
func (c *Client) PhoneNumber(ctx context.Context, phoneNumberID, token string) (*PhoneNumber, error) {
	query := url.Values{"fields": {"id,display_phone_number,verified_name,quality_rating"}}
	body, err := c.sendRequest(ctx, http.MethodGet, phoneNumberID, token, query)
	if err != nil {
		return nil, err
	}

	var pn PhoneNumber
	if err := json.Unmarshal(body, &pn); err != nil {
		return nil, fmt.Errorf("failed to decode phone number: %w", err)
	}
	return &pn, nil
}

type Page struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Page reads a Facebook page with the given page access token.
func (c *Client) Page(ctx context.Context, pageID, token string) (*Page, error) {
	body, err := c.sendRequest(ctx, http.MethodGet, pageID, token, url.Values{"fields": {"id,name"}})
	if err != nil {
		return nil, err
	}

	var page Page
	if err := json.Unmarshal(body, &page); err != nil {
		return nil, fmt.Errorf("failed to decode page: %w", err)
	}
	return &page, nil
}
