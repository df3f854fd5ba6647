package billing

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/model"
)

// TeamStore はサブスクリプション反映に必要なチーム操作。
type TeamStore interface {
	FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Team, error)
	UpdateSubscription(ctx context.Context, teamID int64, snapshot model.SubscriptionSnapshot) error
}

// MembershipFinder はユーザーの現在のチーム所属を返す。
type MembershipFinder interface {
	FindMembershipByUserID(ctx context.Context, userID int64) (*model.Membership, error)
}

// Service はチェックアウトとサブスクリプション状態の反映を扱う。
// チームの課金フィールドを書き込むのはApplySubscriptionSnapshotのみ。
type Service struct {
	checkout CheckoutCreator
	teams    TeamStore
	members  MembershipFinder
}

// NewService はServiceを生成する。
func NewService(checkout CheckoutCreator, teams TeamStore, members MembershipFinder) *Service {
	return &Service{checkout: checkout, teams: teams, members: members}
}

// CheckoutURL はチームのチェックアウトURLを発行する。
func (s *Service) CheckoutURL(ctx context.Context, team *model.Team, userID int64, priceID string) (string, error) {
	return s.checkout.CreateCheckoutSession(ctx, CheckoutRequest{
		Team:    team,
		UserID:  userID,
		PriceID: priceID,
	})
}

// CheckoutInput はチェックアウト開始フォーム。
type CheckoutInput struct {
	PriceID string `form:"priceId" validate:"required,max=255"`
}

// Messages は入力エラーのメッセージを返す。
func (CheckoutInput) Messages() map[string]string {
	return map[string]string{"PriceID.required": "Price is required."}
}

// Checkout はログインユーザーのチームでチェックアウトを開始し、プロバイダーのURLへリダイレクトする。
func (s *Service) Checkout(ctx context.Context, input CheckoutInput, _ *action.Request, user *model.User) (action.Result, error) {
	membership, err := s.members.FindMembershipByUserID(ctx, user.ID)
	if err != nil {
		return action.Result{}, fmt.Errorf("failed to load membership: %w", err)
	}
	if membership == nil {
		return action.Fail(action.KindForbidden, "User is not part of a team", nil), nil
	}

	checkoutURL, err := s.CheckoutURL(ctx, &membership.Team, user.ID, input.PriceID)
	if errors.Is(err, ErrDisabled) {
		return action.Fail(action.KindConflict, "Billing is not configured.", nil), nil
	}
	if err != nil {
		return action.Result{}, err
	}
	return action.Redirect(checkoutURL), nil
}

// ApplySubscriptionSnapshot はプロバイダーから受け取ったサブスクリプション状態をチームへ反映する。
// 顧客IDに対応するチームがない場合はログに記録して何もしない。
func (s *Service) ApplySubscriptionSnapshot(ctx context.Context, snapshot model.SubscriptionSnapshot) error {
	if snapshot.CustomerID == "" {
		return fmt.Errorf("billing: snapshot has no customer id")
	}

	team, err := s.teams.FindByStripeCustomerID(ctx, snapshot.CustomerID)
	if err != nil {
		return fmt.Errorf("failed to find team by customer: %w", err)
	}
	if team == nil {
		slog.Warn("subscription snapshot for unknown customer",
			slog.String("customer_id", snapshot.CustomerID),
		)
		return nil
	}

	if err := s.teams.UpdateSubscription(ctx, team.ID, snapshot); err != nil {
		return fmt.Errorf("failed to update team subscription: %w", err)
	}

	slog.Info("team subscription updated",
		slog.Int64("team_id", team.ID),
		slog.String("status", snapshot.Status),
	)
	return nil
}

// CheckoutRedirect はサインイン・サインアップ後のリダイレクト先を決める。
// redirect=checkoutかつpriceIdがある場合はチェックアウトURL、それ以外は/dashboard。
// チェックアウトURLの発行に失敗した場合は/pricingへ戻す。
func (s *Service) CheckoutRedirect(ctx context.Context, form url.Values, team *model.Team, userID int64) string {
	if form.Get("redirect") != "checkout" || form.Get("priceId") == "" || team == nil {
		return "/dashboard"
	}
	checkoutURL, err := s.CheckoutURL(ctx, team, userID, form.Get("priceId"))
	if err != nil {
		if !errors.Is(err, ErrDisabled) {
			slog.Error("failed to create checkout session after sign-in",
				slog.Int64("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
		return "/pricing"
	}
	return checkoutURL
}
