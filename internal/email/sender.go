package email

import (
	"bytes"
	"context"
	"embed"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

// Metrics はメール送信の成否を記録する。
type Metrics interface {
	RecordEmailSent(template string, success bool)
}

// Invite はチーム招待メールの内容。
type Invite struct {
	Email    string
	TeamName string
	Role     string
	InviteID int64
}

// PasswordReset はパスワード再設定メールの内容。
type PasswordReset struct {
	Email     string
	Token     string
	ExpiresIn time.Duration
}

// Sender はテンプレートからメール本文を組み立ててTransportへ渡す。
type Sender struct {
	transport Transport
	baseURL   string
	templates *template.Template
	metrics   Metrics
}

// NewSender はSenderを生成する。baseURLはリンク生成に使用する（末尾のスラッシュなし）。
func NewSender(transport Transport, baseURL string, metrics Metrics) (*Sender, error) {
	tmpl, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, fmt.Errorf("failed to parse email templates: %w", err)
	}
	return &Sender{
		transport: transport,
		baseURL:   baseURL,
		templates: tmpl,
		metrics:   metrics,
	}, nil
}

// SendInvite はサインアップ用リンク付きの招待メールを送信する。
func (s *Sender) SendInvite(ctx context.Context, inv Invite) error {
	q := url.Values{}
	q.Set("inviteId", strconv.FormatInt(inv.InviteID, 10))
	q.Set("email", inv.Email)

	body, err := s.render("invite.html", map[string]any{
		"TeamName": inv.TeamName,
		"Role":     inv.Role,
		"Link":     s.baseURL + "/sign-up?" + q.Encode(),
	})
	if err != nil {
		return err
	}

	return s.send(ctx, "invite", Message{
		To:      inv.Email,
		Subject: fmt.Sprintf("You're invited to join %s", inv.TeamName),
		HTML:    body,
	})
}

// SendPasswordReset はパスワード再設定リンク付きのメールを送信する。
func (s *Sender) SendPasswordReset(ctx context.Context, pr PasswordReset) error {
	q := url.Values{}
	q.Set("token", pr.Token)

	expires := pr.ExpiresIn
	if expires <= 0 {
		expires = 30 * time.Minute
	}

	body, err := s.render("password_reset.html", map[string]any{
		"Link":             s.baseURL + "/reset-password?" + q.Encode(),
		"ExpiresInMinutes": int(expires.Minutes()),
	})
	if err != nil {
		return err
	}

	return s.send(ctx, "password_reset", Message{
		To:      pr.Email,
		Subject: "Reset your password",
		HTML:    body,
	})
}

func (s *Sender) render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render %s: %w", name, err)
	}
	return buf.String(), nil
}

func (s *Sender) send(ctx context.Context, templateName string, msg Message) error {
	err := s.transport.Send(ctx, msg)
	if s.metrics != nil {
		s.metrics.RecordEmailSent(templateName, err == nil)
	}
	return err
}
