package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/logger"
	"github.com/Tribhuwansingh2023/campus-X-sub000/internal/validation"
)

// SMSSender отправляет коды через HTTP API SMS-шлюза (формат Mobizon).
type SMSSender struct {
	apiURL string
	apiKey string
	sender string
	client *http.Client
}

type smsResponse struct {
	Code int `json:"code"`
	Data struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
	Message string `json:"message"`
}

func NewSMSSender(apiURL, apiKey, sender string) *SMSSender {
	return &SMSSender{
		apiURL: apiURL,
		apiKey: apiKey,
		sender: sender,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

func (s *SMSSender) Send(ctx context.Context, destination, code string) error {
	form := url.Values{
		"apiKey":    {s.apiKey},
		"recipient": {validation.NormalizePhone(destination)},
		"text":      {fmt.Sprintf("Код подтверждения: %s", code)},
	}
	if s.sender != "" {
		form.Set("from", s.sender)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("send sms: build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("send sms: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return fmt.Errorf("send sms: read response: %w", err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("send sms: gateway status %d", resp.StatusCode)
	}

	var result smsResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("send sms: parse response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("send sms: gateway error code %d: %s", result.Code, result.Message)
	}

	logger.L().WithFields(logrus.Fields{
		"destination": Mask(destination),
		"message_id":  result.Data.MessageID,
	}).Debug("SMS отправлено")
	return nil
}
