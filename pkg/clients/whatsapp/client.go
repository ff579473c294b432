// Package whatsapp delivers alert notifications through the Meta WhatsApp Cloud API.
package whatsapp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/mamadbah2/farmwatch/internal/config"
)

// ErrEmptyRecipient is returned when a message has no destination number.
var ErrEmptyRecipient = errors.New("recipient phone number is empty")

// Sender sends plain text messages.
type Sender interface {
	SendText(ctx context.Context, to, body string) (string, error)
}

// APIError is an error answer from the Cloud API.
type APIError struct {
	StatusCode int
	Code       int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("whatsapp api error: status=%d, code=%d, message=%s", e.StatusCode, e.Code, e.Message)
}

// APIClient is a resty-backed implementation of Sender.
type APIClient struct {
	httpClient    *resty.Client
	phoneNumberID string
}

// NewClient builds a WhatsApp API client using the provided configuration values.
func NewClient(cfg config.WhatsAppConfig) *APIClient {
	base := strings.TrimSuffix(cfg.BaseURL, "/")

	restyClient := resty.New()
	restyClient.
		SetBaseURL(fmt.Sprintf("%s/%s", base, cfg.APIVersion)).
		SetAuthToken(cfg.AccessToken).
		SetHeader("Content-Type", "application/json").
		SetTimeout(15 * time.Second)

	return &APIClient{
		httpClient:    restyClient,
		phoneNumberID: cfg.PhoneNumberID,
	}
}

type textMessage struct {
	MessagingProduct string `json:"messaging_product"`
	To               string `json:"to"`
	Type             string `json:"type"`
	Text             struct {
		Body       string `json:"body"`
		PreviewURL bool   `json:"preview_url"`
	} `json:"text"`
}

type sendResponse struct {
	Messages []struct {
		ID string `json:"id"`
	} `json:"messages"`
}

type apiError struct {
	Error struct {
		Message   string `json:"message"`
		Type      string `json:"type"`
		Code      int    `json:"code"`
		FBTraceID string `json:"fbtrace_id"`
	} `json:"error"`
}

// SendText sends body to the given number and returns the message id.
func (c *APIClient) SendText(ctx context.Context, to, body string) (string, error) {
	to = strings.TrimPrefix(strings.TrimSpace(to), "+")
	if to == "" {
		return "", ErrEmptyRecipient
	}

	payload := textMessage{MessagingProduct: "whatsapp", To: to, Type: "text"}
	payload.Text.Body = body

	result := new(sendResponse)
	apiErr := new(apiError)

	resp, err := c.httpClient.R().
		SetContext(ctx).
		SetBody(payload).
		SetResult(result).
		SetError(apiErr).
		SetPathParam("phoneNumberID", c.phoneNumberID).
		Post("/{phoneNumberID}/messages")
	if err != nil {
		return "", fmt.Errorf("send whatsapp message: %w", err)
	}

	if resp.StatusCode() >= http.StatusBadRequest {
		return "", &APIError{
			StatusCode: resp.StatusCode(),
			Code:       apiErr.Error.Code,
			Message:    apiErr.Error.Message,
		}
	}

	if len(result.Messages) == 0 {
		return "", nil
	}
	return result.Messages[0].ID, nil
}
