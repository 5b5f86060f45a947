// Package people looks up BNL directory accounts by employee number.
package people

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrPersonNotFound means the directory answered but had no match.
var ErrPersonNotFound = errors.New("person not found")

// StatusError is returned for any non-success response from the directory.
type StatusError struct {
	StatusCode int
	URL        string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("people api: status %d for %s", e.StatusCode, e.URL)
}

type person struct {
	EmployeeNumber      string `json:"EmployeeNumber"`
	ActiveDirectoryName string `json:"ActiveDirectoryName"`
	FirstName           string `json:"FirstName"`
	LastName            string `json:"LastName"`
}

type Client struct {
	baseURL    string
	httpClient *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// UsernameByID returns the Active Directory account name for a BNL id.
func (c *Client) UsernameByID(ctx context.Context, bnlID string) (string, error) {
	endpoint := c.baseURL + "/api/BNLPeople?employeeNumber=" + url.QueryEscape(bnlID)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("build people request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("people api: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", &StatusError{StatusCode: resp.StatusCode, URL: endpoint}
	}

	var people []person
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<20)).Decode(&people); err != nil {
		return "", fmt.Errorf("decode people response: %w", err)
	}
	for _, p := range people {
		if username := strings.TrimSpace(p.ActiveDirectoryName); username != "" {
			return username, nil
		}
	}
	return "", fmt.Errorf("bnl id %s: %w", bnlID, ErrPersonNotFound)
}
