// Package rewrite talks to the message-rewrite service. The service is an
// opaque text transform behind an OpenAI-style chat endpoint; this client
// only cares that a prompt goes in and a non-empty rewrite comes out.
package rewrite

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/sony/gobreaker"

	"github.com/wablast/wablast-backend/internal/model"
)

// Request carries everything the rewrite service needs for one variation.
type Request struct {
	Template      string
	FixedParams   model.Params
	History       []string // previous variation texts, oldest first
	RecipientHint string
}

type Client struct {
	baseURL string
	apiKey  string
	model   string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(baseURL, apiKey, modelName string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if modelName == "" {
		modelName = "gpt-4.1-mini"
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		model:   modelName,
		http:    &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:    "rewrite-service",
			Timeout: 30 * time.Second,
		}),
	}
}

const systemPrompt = "You rewrite marketing messages. Produce one rewrite of the given message " +
	"that keeps the same meaning and every {{placeholder}} token and fixed value exactly as written, " +
	"but differs in structure and wording from the original and from every previous rewrite you are shown. " +
	"Reply with the rewritten message only."

// Rewrite asks for one new variation. A non-2xx status, a malformed payload
// or an empty result all come back as errors; the caller decides fallback.
func (c *Client) Rewrite(ctx context.Context, req Request) (string, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.rewrite(ctx, req)
	})
	if err != nil {
		return "", err
	}
	return out.(string), nil
}

func (c *Client) rewrite(ctx context.Context, req Request) (string, error) {
	var prompt strings.Builder
	prompt.WriteString("Message to rewrite:\n")
	prompt.WriteString(req.Template)
	prompt.WriteString("\n")

	if len(req.FixedParams) > 0 {
		prompt.WriteString("\nFixed values that must appear exactly as written wherever used:\n")
		for _, p := range req.FixedParams {
			fmt.Fprintf(&prompt, "- %s: %s\n", p.Name, p.Value.String())
		}
	}
	if len(req.History) > 0 {
		prompt.WriteString("\nThe rewrite must differ in structure and wording from every one of these previous rewrites:\n")
		for i, h := range req.History {
			fmt.Fprintf(&prompt, "%d. %s\n", i+1, h)
		}
	}
	if req.RecipientHint != "" {
		fmt.Fprintf(&prompt, "\nTone hint for the reader: %s\n", req.RecipientHint)
	}

	body := map[string]any{
		"model": c.model,
		"messages": []map[string]string{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": prompt.String()},
		},
	}
	b, _ := json.Marshal(body)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(b))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		respBody, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("rewrite service error %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return "", fmt.Errorf("rewrite service returned malformed payload: %w", err)
	}

	if len(parsed.Choices) == 0 {
		return "", fmt.Errorf("empty response from model")
	}
	text := strings.TrimSpace(parsed.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from model")
	}
	return text, nil
}
