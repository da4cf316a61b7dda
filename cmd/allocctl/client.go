package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

// envelope mirrors the API's response wrapper.
type envelope struct {
	Code    int             `json:"code"`
	Type    string          `json:"type"`
	Message string          `json:"message"`
	Kind    string          `json:"kind,omitempty"`
	ID      string          `json:"id,omitempty"`
	Result  json.RawMessage `json:"result"`
}

// APIError is a non-2xx answer from the API.
type APIError struct {
	Status  int
	Message string
	Kind    string
	ID      string
}

func (e *APIError) Error() string {
	msg := fmt.Sprintf("HTTP %d", e.Status)
	if e.Kind != "" {
		msg += " " + e.Kind
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	return msg
}

// Client talks to the allocation API.
type Client struct {
	http *resty.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	c := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(timeout).
		SetHeader("Accept", "application/json")
	return &Client{http: c}
}

// Do sends body as JSON and returns the result field of the envelope.
func (c *Client) Do(ctx context.Context, method, path string, query map[string]string, body any) (json.RawMessage, error) {
	var env envelope
	req := c.http.R().
		SetContext(ctx).
		SetResult(&env).
		SetError(&env)
	if query != nil {
		req.SetQueryParams(query)
	}
	if body != nil {
		req.SetHeader("Content-Type", "application/json").SetBody(body)
	}

	resp, err := req.Execute(method, path)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", method, path, err)
	}
	if resp.IsError() {
		apiErr := &APIError{Status: resp.StatusCode(), Message: env.Message, Kind: env.Kind, ID: env.ID}
		if apiErr.Message == "" {
			apiErr.Message = http.StatusText(resp.StatusCode())
		}
		return nil, apiErr
	}
	return env.Result, nil
}

// Download fetches a binary body.
func (c *Client) Download(ctx context.Context, path string) ([]byte, error) {
	var env envelope
	resp, err := c.http.R().
		SetContext(ctx).
		SetError(&env).
		Get(path)
	if err != nil {
		return nil, fmt.Errorf("GET %s: %w", path, err)
	}
	if resp.IsError() {
		return nil, &APIError{Status: resp.StatusCode(), Message: env.Message, Kind: env.Kind, ID: env.ID}
	}
	return resp.Body(), nil
}
