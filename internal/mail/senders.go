// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package mail

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/oops"
)

// LogSender writes messages to the log instead of delivering them.
// It is the development transport.
type LogSender struct {
	logger *slog.Logger
}

// NewLogSender creates a LogSender.
func NewLogSender(logger *slog.Logger) *LogSender {
	return &LogSender{logger: logger}
}

// Send implements Sender.
func (s *LogSender) Send(ctx context.Context, msg Message) error {
	s.logger.InfoContext(ctx, "mail",
		"transport", "log",
		"to", msg.To,
		"subject", msg.Subject,
		"body", msg.Text)
	return nil
}

// DefaultResendEndpoint is the Resend HTTP API base URL.
const DefaultResendEndpoint = "https://api.resend.com"

// ResendSender delivers mail through the Resend HTTP API.
type ResendSender struct {
	client *resty.Client
	from   string
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text,omitempty"`
}

type resendError struct {
	Name    string `json:"name"`
	Message string `json:"message"`
}

// NewResendSender creates a sender for endpoint authenticated with apiKey.
// An empty endpoint uses DefaultResendEndpoint.
func NewResendSender(endpoint, apiKey, from string) (*ResendSender, error) {
	if apiKey == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("resend api key is required")
	}
	if from == "" {
		return nil, oops.Code("MAIL_CONFIG_INVALID").Errorf("from address is required")
	}
	if endpoint == "" {
		endpoint = DefaultResendEndpoint
	}

	client := resty.New().
		SetBaseURL(strings.TrimRight(endpoint, "/")).
		SetAuthToken(apiKey).
		SetHeader("Content-Type", "application/json").
		SetTimeout(10 * time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		AddRetryCondition(func(r *resty.Response, err error) bool {
			return err != nil || r.StatusCode() == http.StatusTooManyRequests || r.StatusCode() >= 500
		})

	return &ResendSender{client: client, from: from}, nil
}

// Send implements Sender.
func (s *ResendSender) Send(ctx context.Context, msg Message) error {
	from := msg.From
	if from == "" {
		from = s.from
	}

	var apiErr resendError
	resp, err := s.client.R().
		SetContext(ctx).
		SetBody(resendRequest{From: from, To: []string{msg.To}, Subject: msg.Subject, HTML: msg.HTML, Text: msg.Text}).
		SetError(&apiErr).
		Post("/emails")
	if err != nil {
		return oops.Code("MAIL_SEND_FAILED").
			With("transport", "resend").
			With("subject", msg.Subject).
			Wrap(err)
	}
	if resp.IsError() {
		return oops.Code("MAIL_SEND_FAILED").
			With("transport", "resend").
			With("status", resp.StatusCode()).
			With("subject", msg.Subject).
			Errorf("resend rejected message: %s", apiErr.Message)
	}
	return nil
}
