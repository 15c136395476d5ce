// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

package mail

import (
	"fmt"
	"strings"
	"time"

	g "maragu.dev/gomponents"
	h "maragu.dev/gomponents/html"
)

// Subjects of the emails this package sends.
const (
	SubjectVerify = "Verify Email Address"
	SubjectReset  = "Reset Password Notification"
)

// VerificationMessage renders the email-verification mail for name at to.
func VerificationMessage(appName, to, name, link string) (Message, error) {
	body := []g.Node{
		h.P(g.Text("Please click the button below to verify your email address.")),
		button(link, "Verify Email Address"),
		h.P(g.Text("If you did not create an account, no further action is required.")),
	}
	text := fmt.Sprintf("Hello %s,\n\nPlease open the link below to verify your email address.\n\n%s\n\nIf you did not create an account, no further action is required.\n", name, link)
	return render(appName, to, SubjectVerify, name, body, text)
}

// ResetMessage renders the password reset mail. expiry is the link lifetime.
func ResetMessage(appName, to, name, link string, expiry time.Duration) (Message, error) {
	minutes := int(expiry.Minutes())
	body := []g.Node{
		h.P(g.Text("You are receiving this email because we received a password reset request for your account.")),
		button(link, "Reset Password"),
		h.P(g.Textf("This password reset link will expire in %d minutes.", minutes)),
		h.P(g.Text("If you did not request a password reset, no further action is required.")),
	}
	text := fmt.Sprintf("Hello %s,\n\nReset your password here:\n\n%s\n\nThis link expires in %d minutes. If you did not request a password reset, no further action is required.\n", name, link, minutes)
	return render(appName, to, SubjectReset, name, body, text)
}

func button(link, label string) g.Node {
	return h.P(
		h.A(h.Href(link),
			h.Style("display:inline-block;padding:8px 18px;background:#2d3748;color:#fff;border-radius:4px;text-decoration:none"),
			g.Text(label),
		),
	)
}

func render(appName, to, subject, name string, body []g.Node, text string) (Message, error) {
	doc := h.Doctype(
		h.HTML(h.Lang("en"),
			h.Head(
				h.Meta(h.Charset("utf-8")),
				h.TitleEl(g.Text(subject)),
			),
			h.Body(
				h.H1(g.Text(appName)),
				h.P(g.Textf("Hello %s,", name)),
				g.Group(body),
				h.P(g.Text("Regards,"), h.Br(), g.Text(appName)),
			),
		),
	)

	var sb strings.Builder
	if err := doc.Render(&sb); err != nil {
		return Message{}, err
	}
	return Message{To: to, Subject: subject, HTML: sb.String(), Text: text}, nil
}
