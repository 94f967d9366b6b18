package config

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"go.uber.org/zap"
)

type AlertTransportConfig struct {
	APIKey string
	APIURL string
	From   string
}

// NewAlertTransportConfig reads the alert transport settings. Missing values
// are configuration errors, fatal at startup.
func NewAlertTransportConfig() *AlertTransportConfig {
	apiKey := os.Getenv("ALERT_API_KEY")
	apiURL := os.Getenv("ALERT_API_URL")
	from := os.Getenv("ALERT_FROM")
	if apiKey == "" || apiURL == "" || from == "" {
		log.Fatal("ALERT_API_KEY, ALERT_API_URL and ALERT_FROM must be set")
	}
	return &AlertTransportConfig{APIKey: apiKey, APIURL: apiURL, From: from}
}

type alertRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Html    string   `json:"html"`
}

// AlertService delivers device-level alerts through the mail API.
type AlertService struct {
	config *AlertTransportConfig
	client *http.Client
	log    *zap.Logger
}

func NewAlertService(config *AlertTransportConfig, logger *zap.Logger) *AlertService {
	return &AlertService{
		config: config,
		client: &http.Client{Timeout: 10 * time.Second},
		log:    logger,
	}
}

// Send pushes one alert to the recipient address. The receipt, when present,
// is forwarded as the Idempotency-Key header so a retried dispatch cannot
// double-deliver.
func (s *AlertService) Send(ctx context.Context, receipt, to, subject, body string) error {
	payload := alertRequest{
		From:    s.config.From,
		To:      []string{to},
		Subject: subject,
		Html:    body,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal alert payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.config.APIURL, bytes.NewBuffer(jsonData))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.config.APIKey)
	req.Header.Set("Content-Type", "application/json")
	if receipt != "" {
		req.Header.Set("Idempotency-Key", receipt)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send alert: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var errorResponse map[string]interface{}
		_ = json.NewDecoder(resp.Body).Decode(&errorResponse)
		return fmt.Errorf("alert rejected, status code: %d, error: %v", resp.StatusCode, errorResponse)
	}

	s.log.Debug("alert sent", zap.String("to", to))
	return nil
}
