package sender

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/Tymofiyyy/pocket/internal/domain"
)

// gatewaySender talks to the messaging gateway sidecar that holds the
// actual protocol client for one account. The wire protocol to the end
// user is the gateway's business; this side only speaks HTTP to it.
type gatewaySender struct {
	baseURL string
	client  *http.Client
	account domain.SenderAccount
	session string
}

// NewGatewayFactory returns a Factory whose senders dispatch through the
// messaging gateway at baseURL.
func NewGatewayFactory(baseURL string) Factory {
	client := &http.Client{
		Timeout: 30 * time.Second,
	}
	return func(acc domain.SenderAccount) Sender {
		return &gatewaySender{
			baseURL: baseURL,
			client:  client,
			account: acc,
		}
	}
}

type gatewayConnectRequest struct {
	AccountID     string `json:"account_id"`
	PhoneNumber   string `json:"phone_number"`
	APIID         int    `json:"api_id"`
	APIHash       string `json:"api_hash"`
	SessionString string `json:"session_string,omitempty"`
}

type gatewayConnectResponse struct {
	Authorized    bool   `json:"authorized"`
	SessionString string `json:"session_string,omitempty"`
}

type gatewaySendRequest struct {
	AccountID   string `json:"account_id"`
	Destination int64  `json:"destination"`
	Text        string `json:"text,omitempty"`
	ImageBase64 string `json:"image_base64,omitempty"`
}

// Connect establishes the gateway session for this account. An account
// the gateway reports as unauthorized is a connect failure; the pool
// skips it.
func (g *gatewaySender) Connect(ctx context.Context) error {
	session := ""
	if g.account.SessionString != nil {
		session = *g.account.SessionString
	}

	var resp gatewayConnectResponse
	err := g.post(ctx, "/connect", gatewayConnectRequest{
		AccountID:     g.account.ID,
		PhoneNumber:   g.account.PhoneNumber,
		APIID:         g.account.APIID,
		APIHash:       g.account.APIHash,
		SessionString: session,
	}, &resp)
	if err != nil {
		return err
	}

	if !resp.Authorized {
		return fmt.Errorf("account %s is not authorized", g.account.PhoneNumber)
	}

	g.session = resp.SessionString
	return nil
}

// Send dispatches one message to the destination through the gateway.
func (g *gatewaySender) Send(ctx context.Context, destination int64, msg Message) error {
	req := gatewaySendRequest{
		AccountID:   g.account.ID,
		Destination: destination,
		Text:        msg.Text,
	}
	if len(msg.Image) > 0 {
		req.ImageBase64 = base64.StdEncoding.EncodeToString(msg.Image)
	}

	return g.post(ctx, "/send", req, nil)
}

// Close releases the gateway session for this account.
func (g *gatewaySender) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	return g.post(ctx, "/disconnect", map[string]string{"account_id": g.account.ID}, nil)
}

// ExportSession returns the session credential as refreshed by the last
// successful connect.
func (g *gatewaySender) ExportSession() string {
	return g.session
}

func (g *gatewaySender) post(ctx context.Context, path string, body, out interface{}) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshaling gateway request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("building gateway request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("gateway request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		// Surface the gateway's error text, capped to keep log rows sane.
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("gateway %s returned %d: %s", path, resp.StatusCode, string(msg))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding gateway response: %w", err)
		}
	}

	return nil
}
