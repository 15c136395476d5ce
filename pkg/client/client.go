// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 AuthGate Contributors

// Package client is a Go client for the AuthGate JSON API. A Client keeps
// the bearer token and the signed-in user's display fields between calls.
package client

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/samber/oops"
)

const actionVerifyEmail = "verify_email"

// User is the user shape the service returns.
type User struct {
	ID              string     `json:"id"`
	Name            string     `json:"name"`
	Email           string     `json:"email"`
	Avatar          *string    `json:"avatar"`
	EmailVerifiedAt *time.Time `json:"email_verified_at"`
}

// UserState is the display data kept for the signed-in user.
type UserState struct {
	Name   string
	Email  string
	Avatar string
}

// RegisterRequest is the body of POST /register.
type RegisterRequest struct {
	Name                 string `json:"name"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

// ResetPasswordRequest is the body of POST /password/reset.
type ResetPasswordRequest struct {
	Token                string `json:"token"`
	Email                string `json:"email"`
	Password             string `json:"password"`
	PasswordConfirmation string `json:"password_confirmation"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	Remember bool   `json:"remember"`
}

type emailRequest struct {
	Email string `json:"email"`
}

type envelope struct {
	OK              bool                `json:"ok"`
	Message         string              `json:"message"`
	Action          string              `json:"action"`
	Errors          map[string][]string `json:"errors"`
	User            *User               `json:"user"`
	Token           string              `json:"token"`
	MustVerifyEmail *bool               `json:"must_verify_email"`
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient sends requests through hc.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.rc = resty.NewWithClient(hc) }
}

// WithToken starts the client with an existing bearer token.
func WithToken(token string) Option {
	return func(c *Client) { c.token = token }
}

// WithUserAgent sets the User-Agent, which the service records as the
// token name on login.
func WithUserAgent(ua string) Option {
	return func(c *Client) { c.userAgent = ua }
}

// Client talks to one AuthGate deployment. It is safe for concurrent use.
type Client struct {
	rc        *resty.Client
	userAgent string

	mu    sync.RWMutex
	token string
	user  UserState
}

// New creates a client for the service at baseURL.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{userAgent: "authgate-go-client"}
	for _, opt := range opts {
		opt(c)
	}
	if c.rc == nil {
		c.rc = resty.New().SetTimeout(30 * time.Second)
	}
	c.rc.SetBaseURL(strings.TrimRight(baseURL, "/")).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", c.userAgent).
		OnAfterResponse(c.dropRejectedSession)
	return c
}

// dropRejectedSession forgets the session when the service rejects the
// token a request carried.
func (c *Client) dropRejectedSession(_ *resty.Client, res *resty.Response) error {
	if res.StatusCode() == http.StatusUnauthorized && res.Request.Token != "" && res.Request.Token == c.Token() {
		c.clear()
	}
	return nil
}

// Token returns the current bearer token, or "".
func (c *Client) Token() string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.token
}

// User returns the signed-in user's display fields. It is zero when signed out.
func (c *Client) User() UserState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.user
}

// SignedIn reports whether the client holds a token.
func (c *Client) SignedIn() bool {
	return c.Token() != ""
}

func (c *Client) setSession(token string, u *User) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if token != "" {
		c.token = token
	}
	if u != nil {
		c.user = stateOf(u)
	}
}

func (c *Client) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token = ""
	c.user = UserState{}
}

func stateOf(u *User) UserState {
	s := UserState{Name: u.Name, Email: u.Email}
	if u.Avatar != nil {
		s.Avatar = *u.Avatar
	}
	return s
}

// Register creates an account. It reports whether the account must verify
// its email before logging in.
func (c *Client) Register(ctx context.Context, req RegisterRequest) (mustVerify bool, err error) {
	env, err := c.do(ctx, http.MethodPost, "/register", req, false)
	if err != nil {
		return false, err
	}
	return env.MustVerifyEmail != nil && *env.MustVerifyEmail, nil
}

// Login signs in and keeps the issued token and user. An unverified
// account yields an error matching ErrVerifyEmail.
func (c *Client) Login(ctx context.Context, email, password string, remember bool) (*User, error) {
	env, err := c.do(ctx, http.MethodPost, "/login", loginRequest{Email: email, Password: password, Remember: remember}, false)
	if err != nil {
		return nil, err
	}
	if env.Token == "" || env.User == nil {
		return nil, oops.Code("CLIENT_BAD_RESPONSE").Errorf("login response carried no session")
	}
	c.setSession(env.Token, env.User)
	return env.User, nil
}

// Logout revokes the current token. Local state is cleared even when the
// service call fails.
func (c *Client) Logout(ctx context.Context) error {
	if !c.SignedIn() {
		return nil
	}
	defer c.clear()
	_, err := c.do(ctx, http.MethodPost, "/logout", nil, true)
	return err
}

// Me fetches the signed-in user and refreshes the kept display fields.
func (c *Client) Me(ctx context.Context) (*User, error) {
	env, err := c.do(ctx, http.MethodGet, "/user", nil, true)
	if err != nil {
		return nil, err
	}
	if env.User == nil {
		return nil, oops.Code("CLIENT_BAD_RESPONSE").Errorf("user response carried no user")
	}
	c.setSession("", env.User)
	return env.User, nil
}

// ForgotPassword asks for a reset link and returns the service's message.
// The message is the same whether or not the email is registered.
func (c *Client) ForgotPassword(ctx context.Context, email string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/password/email", emailRequest{Email: email}, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// ResetPassword sets a new password with a token from a reset link.
func (c *Client) ResetPassword(ctx context.Context, req ResetPasswordRequest) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/password/reset", req, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// Verify confirms an email with the id and signature from a verification link.
func (c *Client) Verify(ctx context.Context, id, signature string) error {
	_, err := c.do(ctx, http.MethodGet, "/verify/"+url.PathEscape(id)+"/"+url.PathEscape(signature), nil, false)
	return err
}

// VerifyLink confirms an email using a full verification link.
func (c *Client) VerifyLink(ctx context.Context, link string) error {
	u, err := url.Parse(link)
	if err != nil {
		return oops.Code("CLIENT_INVALID_LINK").Wrap(err)
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) < 3 || parts[len(parts)-3] != "verify" {
		return oops.Code("CLIENT_INVALID_LINK").With("link", link).Errorf("not a verification link")
	}
	return c.Verify(ctx, parts[len(parts)-2], parts[len(parts)-1])
}

// ResendVerification asks for a new verification link.
func (c *Client) ResendVerification(ctx context.Context, email string) (string, error) {
	env, err := c.do(ctx, http.MethodPost, "/email/verification-notification", emailRequest{Email: email}, false)
	if err != nil {
		return "", err
	}
	return env.Message, nil
}

// do sends one request and decodes the envelope. authed requests carry the
// bearer token. Error statuses and responses with ok=false become *APIError.
func (c *Client) do(ctx context.Context, method, path string, body any, authed bool) (*envelope, error) {
	var env envelope
	req := c.rc.R().SetContext(ctx).SetResult(&env).SetError(&env)
	if authed {
		token := c.Token()
		if token == "" {
			return nil, &APIError{Status: http.StatusUnauthorized, Message: "Unauthenticated."}
		}
		req.SetAuthToken(token)
	}
	if body != nil {
		req.SetBody(body)
	}

	res, err := req.Execute(method, path)
	if err != nil {
		return nil, oops.Code("CLIENT_REQUEST_FAILED").
			With("method", method).
			With("path", path).
			Wrap(err)
	}

	if res.IsError() || !env.OK {
		apiErr := &APIError{
			Status:  res.StatusCode(),
			Message: env.Message,
			Action:  env.Action,
			Errors:  env.Errors,
		}
		if s := res.Header().Get("Retry-After"); s != "" {
			if secs, convErr := strconv.Atoi(s); convErr == nil {
				apiErr.RetryAfter = time.Duration(secs) * time.Second
			}
		}
		return nil, apiErr
	}
	return &env, nil
}
