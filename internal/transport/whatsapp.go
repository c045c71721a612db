package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/wablast/wablast-backend/internal/model"
)

const defaultGraphURL = "https://graph.facebook.com/v20.0"

// WhatsAppClient sends messages through the WhatsApp Cloud API.
type WhatsAppClient struct {
	token   string
	phoneID string
	baseURL string
	http    *http.Client
}

func NewWhatsAppClient(token, phoneID string, timeout time.Duration) *WhatsAppClient {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &WhatsAppClient{
		token:   strings.TrimSpace(token),
		phoneID: strings.TrimSpace(phoneID),
		baseURL: defaultGraphURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// WithBaseURL overrides the Graph API endpoint. Used by tests.
func (c *WhatsAppClient) WithBaseURL(u string) *WhatsAppClient {
	c.baseURL = strings.TrimRight(u, "/")
	return c
}

// Connected reports whether the client holds usable credentials. The Cloud
// API is token-authenticated per request, so credentials present means a
// session is available.
func (c *WhatsAppClient) Connected() bool {
	return c.token != "" && c.phoneID != ""
}

func (c *WhatsAppClient) SendText(ctx context.Context, phone, text string) (*Receipt, error) {
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "text",
		"text": map[string]any{
			"body": text,
		},
	}
	return c.send(ctx, payload)
}

func (c *WhatsAppClient) SendButtons(ctx context.Context, phone, text string, buttons []model.Button) (*Receipt, error) {
	if len(buttons) == 0 {
		return c.SendText(ctx, phone, text)
	}

	btns := make([]map[string]any, 0, len(buttons))
	for _, b := range buttons {
		btns = append(btns, map[string]any{
			"type": "reply",
			"reply": map[string]string{
				"id":    b.ID,
				"title": b.Label,
			},
		})
	}
	payload := map[string]any{
		"messaging_product": "whatsapp",
		"to":                phone,
		"type":              "interactive",
		"interactive": map[string]any{
			"type": "button",
			"body": map[string]string{"text": text},
			"action": map[string]any{
				"buttons": btns,
			},
		},
	}
	return c.send(ctx, payload)
}

func (c *WhatsAppClient) send(ctx context.Context, payload map[string]any) (*Receipt, error) {
	if !c.Connected() {
		return nil, fmt.Errorf("WHATSAPP_ACCESS_TOKEN or WHATSAPP_PHONE_NUMBER_ID not set")
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneID)
	b, _ := json.Marshal(payload)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("whatsapp api error: status=%d body=%s", resp.StatusCode, string(body))
	}

	var parsed struct {
		Messages []struct {
			ID string `json:"id"`
		} `json:"messages"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, fmt.Errorf("whatsapp api returned malformed payload: %w", err)
	}

	receipt := &Receipt{Timestamp: time.Now()}
	if len(parsed.Messages) > 0 {
		receipt.MessageID = parsed.Messages[0].ID
	}
	return receipt, nil
}

var _ Transport = (*WhatsAppClient)(nil)
