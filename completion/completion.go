// Package completion is the HTTP client for the hosted language-model
// completion endpoint. It only speaks the endpoint's JSON envelope; prompt
// selection and reply interpretation live in the dialogue package.
package completion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"
)

var (
	// ErrNotConfigured means the endpoint URL or key is missing. Checked
	// before any network call.
	ErrNotConfigured = errors.New("completion endpoint not configured")
	// ErrMalformedReply covers non-JSON bodies and replies missing the
	// required reply text. Treated like a transport failure by callers.
	ErrMalformedReply = errors.New("malformed completion reply")
	// ErrUnavailable wraps transport-level failures: recoverable, the
	// caller may retry the same turn.
	ErrUnavailable = errors.New("completion endpoint unavailable")
)

// ProviderError is a structured failure reported by the endpoint itself.
type ProviderError struct {
	Code    string
	Message string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("completion provider error %s: %s", e.Code, e.Message)
}

type HistoryEntry struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request is the outbound envelope.
type Request struct {
	RoleOrAction string                 `json:"role_or_action"`
	Input        Input                  `json:"input"`
	Context      map[string]interface{} `json:"context"`
	History      []HistoryEntry         `json:"conversation_history"`
}

type Input struct {
	Message string `json:"message"`
}

// Result is the interpreted successful reply. The boolean signals come
// strictly from the structured fields: a missing readyToCreate reads as
// false, and askedConfirmation stays nil when the model did not send it.
type Result struct {
	Reply             string
	ReadyToCreate     bool
	AskedConfirmation *bool
}

type envelope struct {
	OK     bool `json:"ok"`
	Result *struct {
		Reply             string `json:"reply"`
		ReadyToCreate     *bool  `json:"readyToCreate"`
		AskedConfirmation *bool  `json:"askedConfirmation"`
	} `json:"result"`
	Error *struct {
		Message string `json:"message"`
		Code    string `json:"code"`
	} `json:"error"`
}

type Client struct {
	URL    string
	APIKey string
	HTTP   *http.Client
}

// NewFromEnv builds a client from COMPLETION_URL / COMPLETION_API_KEY.
func NewFromEnv() (*Client, error) {
	url := os.Getenv("COMPLETION_URL")
	key := os.Getenv("COMPLETION_API_KEY")
	if url == "" || key == "" {
		return nil, ErrNotConfigured
	}
	return &Client{URL: url, APIKey: key, HTTP: &http.Client{Timeout: 60 * time.Second}}, nil
}

// Complete posts one turn to the endpoint and interprets the envelope.
func (c *Client) Complete(ctx context.Context, req Request) (*Result, error) {
	if c.URL == "" || c.APIKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encode completion request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.URL, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build completion request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.APIKey)

	httpClient := c.HTTP
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	var env envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformedReply, err)
	}

	if !env.OK || env.Result == nil {
		if env.Error != nil {
			return nil, &ProviderError{Code: env.Error.Code, Message: env.Error.Message}
		}
		return nil, fmt.Errorf("%w: provider returned not ok with no error detail", ErrMalformedReply)
	}
	if env.Result.Reply == "" {
		return nil, fmt.Errorf("%w: missing reply text", ErrMalformedReply)
	}

	res := &Result{Reply: env.Result.Reply, AskedConfirmation: env.Result.AskedConfirmation}
	if env.Result.ReadyToCreate != nil {
		res.ReadyToCreate = *env.Result.ReadyToCreate
	}
	return res, nil
}
