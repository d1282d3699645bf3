package telephony

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

// ErrNotConfigured is returned when the provider credentials are absent.
var ErrNotConfigured = errors.New("telephony: provider not configured")

// Call describes an initiated outbound call.
type Call struct {
	SID    string `json:"sid"`
	Status string `json:"status"`
	To     string `json:"to"`
	From   string `json:"from"`
}

// CallInitiator starts outbound calls. The REST client implements it; tests
// substitute fakes.
type CallInitiator interface {
	InitiateCall(ctx context.Context, to, webhookURL string) (*Call, error)
}

// Client calls the provider REST API to create outbound calls.
type Client struct {
	accountSID string
	authToken  string
	from       string
	baseURL    string
	http       *http.Client
}

// NewClient constructs a REST client. A nil result means the credentials
// are incomplete and telephony is disabled.
func NewClient(accountSID, authToken, from string) *Client {
	if accountSID == "" || authToken == "" || from == "" {
		return nil
	}
	return &Client{
		accountSID: accountSID,
		authToken:  authToken,
		from:       from,
		baseURL:    "https://api.twilio.com/2010-04-01",
		http:       &http.Client{Timeout: 30 * time.Second},
	}
}

// InitiateCall creates an outbound call to the given E.164 number. The
// provider fetches TwiML from webhookURL when the callee answers.
func (c *Client) InitiateCall(ctx context.Context, to, webhookURL string) (*Call, error) {
	if c == nil {
		return nil, ErrNotConfigured
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", c.from)
	form.Set("Url", webhookURL)
	form.Set("Method", "POST")

	endpoint := fmt.Sprintf("%s/Accounts/%s/Calls.json", c.baseURL, c.accountSID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("build call request: %w", err)
	}
	req.SetBasicAuth(c.accountSID, c.authToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("initiate call: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read call response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("initiate call: provider returned %d: %s", resp.StatusCode, string(raw))
	}

	var call Call
	if err := json.Unmarshal(raw, &call); err != nil {
		return nil, fmt.Errorf("decode call response: %w", err)
	}
	return &call, nil
}
