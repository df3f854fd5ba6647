// Package billing はチームのサブスクリプション課金を扱う。
// 課金プロバイダーとのやり取りはCheckoutCreatorの背後に隠す。
package billing

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/stripe/stripe-go/v79"
	"github.com/stripe/stripe-go/v79/checkout/session"

	"github.com/hitoshi/mjeti360/internal/model"
)

// ErrDisabled は課金プロバイダーが設定されていないことを表す。
var ErrDisabled = errors.New("billing: provider is not configured")

// DefaultTrialDays はチェックアウト時に付与する試用期間。
const DefaultTrialDays = 14

// CheckoutRequest はチェックアウトセッション作成の入力。
type CheckoutRequest struct {
	Team    *model.Team
	UserID  int64
	PriceID string
}

// CheckoutCreator は課金プロバイダーのチェックアウトURLを発行する。
type CheckoutCreator interface {
	CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error)
}

// DisabledCheckout はSTRIPE_SECRET_KEY未設定時に使用する。常にErrDisabledを返す。
type DisabledCheckout struct{}

var _ CheckoutCreator = DisabledCheckout{} // compile-time interface check

// CreateCheckoutSession はErrDisabledを返す。
func (DisabledCheckout) CreateCheckoutSession(context.Context, CheckoutRequest) (string, error) {
	return "", ErrDisabled
}

// checkoutSessionAPI はStripeのcheckout sessionクライアントのメソッド。
type checkoutSessionAPI interface {
	New(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error)
}

// StripeCheckout はStripe Checkoutでサブスクリプション購入セッションを作成する。
type StripeCheckout struct {
	sessions  checkoutSessionAPI
	baseURL   string
	trialDays int64
}

var _ CheckoutCreator = (*StripeCheckout)(nil) // compile-time interface check

// StripeConfig はStripeCheckoutの設定。HTTPClientとAPIURLは省略可能。
type StripeConfig struct {
	SecretKey  string
	BaseURL    string
	APIURL     string
	HTTPClient *http.Client
}

// NewStripeCheckout はStripeCheckoutを生成する。
func NewStripeCheckout(cfg StripeConfig) *StripeCheckout {
	backendCfg := &stripe.BackendConfig{HTTPClient: cfg.HTTPClient}
	if cfg.APIURL != "" {
		backendCfg.URL = stripe.String(cfg.APIURL)
	}
	return &StripeCheckout{
		sessions: &session.Client{
			B:   stripe.GetBackendWithConfig(stripe.APIBackend, backendCfg),
			Key: cfg.SecretKey,
		},
		baseURL:   cfg.BaseURL,
		trialDays: DefaultTrialDays,
	}
}

// CreateCheckoutSession はチェックアウトセッションを作成し、遷移先URLを返す。
// チームに顧客IDがあれば再利用する。
func (c *StripeCheckout) CreateCheckoutSession(ctx context.Context, req CheckoutRequest) (string, error) {
	if req.Team == nil {
		return "", fmt.Errorf("billing: checkout requires a team")
	}

	params := &stripe.CheckoutSessionParams{
		Mode: stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(req.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL:          stripe.String(c.baseURL + "/dashboard?checkout=success&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:           stripe.String(c.baseURL + "/pricing"),
		ClientReferenceID:   stripe.String(strconv.FormatInt(req.UserID, 10)),
		AllowPromotionCodes: stripe.Bool(true),
		SubscriptionData: &stripe.CheckoutSessionSubscriptionDataParams{
			TrialPeriodDays: stripe.Int64(c.trialDays),
		},
	}
	if req.Team.StripeCustomerID != nil && *req.Team.StripeCustomerID != "" {
		params.Customer = req.Team.StripeCustomerID
	}
	params.Context = ctx

	s, err := c.sessions.New(params)
	if err != nil {
		return "", fmt.Errorf("failed to create checkout session: %w", err)
	}
	if s.URL == "" {
		return "", fmt.Errorf("checkout session %s has no url", s.ID)
	}
	return s.URL, nil
}
