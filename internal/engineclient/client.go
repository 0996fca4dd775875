// Package engineclient — HTTP‑клиент внешнего движка, который рассчитывает
// прочтение и возвращает текст секций.
package engineclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/magabrotheeeer/reading-entitlements/internal/models"
)

// ErrEngineUnavailable возвращается, когда движок не ответил успешно.
var ErrEngineUnavailable = errors.New("content engine unavailable")

type Client struct {
	apiURL     string
	apiKey     string
	httpClient *http.Client
}

// NewClient создаёт клиент движка. Нулевой timeout заменяется на 30 секунд.
func NewClient(apiURL, apiKey string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		apiURL:     strings.TrimSuffix(apiURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
	}
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return nil, err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, c.apiURL+path, &buf)
	if err != nil {
		return nil, err
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
	req.Header.Set("Content-Type", "application/json")
	return req, nil
}

// ComposeReading просит движок рассчитать прочтение типа readingType.
func (c *Client) ComposeReading(ctx context.Context, userID, readingType string, params map[string]any) (*models.ReadingContent, error) {
	const op = "engineclient.ComposeReading"

	req, err := c.newRequest(ctx, http.MethodPost, "/readings", ComposeRequest{
		UserID:      userID,
		ReadingType: readingType,
		Params:      params,
	})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s: %w: %w", op, ErrEngineUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("%s: %w: unexpected status %s: %s", op, ErrEngineUnavailable, resp.Status, bytes.TrimSpace(msg))
	}

	var composed ComposeResponse
	if err := json.NewDecoder(resp.Body).Decode(&composed); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	if len(composed.Sections) == 0 {
		return nil, fmt.Errorf("%s: %w: empty sections", op, ErrEngineUnavailable)
	}

	content := &models.ReadingContent{
		Interpretable: composed.Interpretable,
		Sections:      make(map[string]models.Section, len(composed.Sections)),
	}
	for _, s := range composed.Sections {
		if s.Key == "" {
			continue
		}
		content.Sections[s.Key] = models.Section{Preview: s.Preview, Full: s.Full}
	}
	return content, nil
}
