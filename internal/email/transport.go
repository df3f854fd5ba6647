// Package email はチーム招待やパスワード再設定のメール送信を提供する。
package email

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sesv2/types"
)

// Message は送信する1通のメール。
type Message struct {
	To      string
	Subject string
	HTML    string
}

// Transport はメールを実際に配送する。
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// sesAPI はSESTransportが使用するSES v2クライアントのメソッド。
type sesAPI interface {
	SendEmail(ctx context.Context, params *sesv2.SendEmailInput, optFns ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error)
}

// SESTransport はAmazon SES v2でメールを送信する。
type SESTransport struct {
	client sesAPI
	from   string
}

var _ Transport = (*SESTransport)(nil) // compile-time interface check

// NewSESTransport は静的な認証情報からSESTransportを生成する。
func NewSESTransport(ctx context.Context, region, accessKey, secretKey, from string) (*SESTransport, error) {
	if accessKey == "" || secretKey == "" {
		return nil, fmt.Errorf("SES credentials are not configured")
	}

	cred := credentials.NewStaticCredentialsProvider(accessKey, secretKey, "")
	cfg, err := config.LoadDefaultConfig(ctx,
		config.WithCredentialsProvider(cred),
		config.WithRegion(region),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load AWS config: %w", err)
	}

	return &SESTransport{client: sesv2.NewFromConfig(cfg), from: from}, nil
}

// Send はHTML本文のメールを1通送信する。
func (t *SESTransport) Send(ctx context.Context, msg Message) error {
	input := &sesv2.SendEmailInput{
		FromEmailAddress: &t.from,
		Destination: &types.Destination{
			ToAddresses: []string{msg.To},
		},
		Content: &types.EmailContent{
			Simple: &types.Message{
				Subject: &types.Content{Data: &msg.Subject},
				Body: &types.Body{
					Html: &types.Content{Data: &msg.HTML},
				},
			},
		},
	}

	output, err := t.client.SendEmail(ctx, input)
	if err != nil {
		return fmt.Errorf("failed to send email via SES: %w", err)
	}
	if output == nil || output.MessageId == nil {
		return fmt.Errorf("SES returned no message id")
	}
	return nil
}

// LogTransport はメールを送信せずログに出力する。開発環境用。
type LogTransport struct {
	logger *slog.Logger
}

var _ Transport = (*LogTransport)(nil) // compile-time interface check

// NewLogTransport はLogTransportを生成する。
func NewLogTransport(logger *slog.Logger) *LogTransport {
	return &LogTransport{logger: logger}
}

// Send はメールの宛先と件名、本文をINFOレベルで記録する。
func (t *LogTransport) Send(ctx context.Context, msg Message) error {
	t.logger.InfoContext(ctx, "email not sent (log transport)",
		slog.String("to", msg.To),
		slog.String("subject", msg.Subject),
		slog.String("html", msg.HTML),
	)
	return nil
}
