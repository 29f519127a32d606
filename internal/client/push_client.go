package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"chat-realtime-service/internal/metrics"

	"go.uber.org/zap"
)

// PushMessage is one multicast to every listed device token.
type PushMessage struct {
	Tokens []string          `json:"tokens"`
	Title  string            `json:"title"`
	Body   string            `json:"body"`
	Data   map[string]string `json:"data,omitempty"`
}

// PushClient sends push notifications through the notification service.
type PushClient interface {
	SendMulticast(ctx context.Context, msg PushMessage) error
}

type pushClient struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.Logger
	metrics    *metrics.Metrics
}

func NewPushClient(baseURL, apiKey string, timeout time.Duration, logger *zap.Logger, m *metrics.Metrics) PushClient {
	return &pushClient{
		baseURL: baseURL,
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: timeout,
		},
		logger:  logger,
		metrics: m,
	}
}

func (c *pushClient) SendMulticast(ctx context.Context, msg PushMessage) error {
	if len(msg.Tokens) == 0 {
		return nil
	}

	url := fmt.Sprintf("%s/api/internal/push/multicast", c.baseURL)

	jsonBody, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal push message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(jsonBody))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Internal-API-Key", c.apiKey)

	startTime := time.Now()
	resp, err := c.httpClient.Do(req)
	duration := time.Since(startTime)

	statusCode := 0
	if resp != nil {
		statusCode = resp.StatusCode
	}
	c.metrics.RecordExternalAPICall(url, http.MethodPost, statusCode, duration, err)

	if err != nil {
		return fmt.Errorf("failed to send push: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("notification service returned status %d", resp.StatusCode)
	}

	c.logger.Debug("Push multicast sent",
		zap.Int("tokens", len(msg.Tokens)),
		zap.Duration("duration", duration),
	)
	return nil
}

// NoOpPushClient is used when push notifications are disabled
type NoOpPushClient struct{}

func NewNoOpPushClient() PushClient {
	return &NoOpPushClient{}
}

func (c *NoOpPushClient) SendMulticast(ctx context.Context, msg PushMessage) error {
	return nil
}
