package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/auth"
	"github.com/hitoshi/mjeti360/internal/email"
	"github.com/hitoshi/mjeti360/internal/model"
	"github.com/hitoshi/mjeti360/internal/repository"
)

const (
	resetRequestedMessage  = "If an account exists for that email, a reset link has been sent."
	resetUnavailableMsg    = "Something went wrong. Please try again later."
	resetTokenInvalidMsg   = "Reset token is invalid or expired."
	resetTokenExpiredMsg   = "Reset token has expired."
	resetInvalidDataMsg    = "Invalid or missing data."
	passwordResetSucceeded = "Your password has been reset."
)

// RequestPasswordResetInput はパスワード再設定の依頼フォーム。
type RequestPasswordResetInput struct {
	Email string `form:"email" validate:"required,email,max=255"`
}

// RequestPasswordReset は再設定トークンを発行してメールで送る。
// アカウントの有無を推測されないよう、ユーザーが存在しない場合も同じ成功メッセージを返す。
func (s *Service) RequestPasswordReset(ctx context.Context, in RequestPasswordResetInput, _ *action.Request) (action.Result, error) {
	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return action.Result{}, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return action.Succeed(resetRequestedMessage, nil), nil
	}

	// 1. 既存トークンを無効化
	if err := s.resetTokens.DeleteByUserID(ctx, user.ID); err != nil {
		return action.Result{}, fmt.Errorf("再設定トークンの削除に失敗しました: %w", err)
	}

	// 2. 新しいトークンを保存（平文は保存しない）
	token, hash, err := auth.NewResetToken()
	if err != nil {
		return action.Result{}, err
	}
	now := s.now()
	if err := s.resetTokens.Create(ctx, &model.PasswordResetToken{
		ID:        uuid.NewString(),
		UserID:    user.ID,
		TokenHash: hash,
		ExpiresAt: now.Add(s.resetTTL),
		CreatedAt: now,
	}); err != nil {
		return action.Result{}, fmt.Errorf("再設定トークンの保存に失敗しました: %w", err)
	}

	// 3. メール送信
	if err := s.mailer.SendPasswordReset(ctx, email.PasswordReset{
		Email:     user.Email,
		Token:     token,
		ExpiresIn: s.resetTTL,
	}); err != nil {
		slog.Error("failed to send password reset email",
			slog.Int64("user_id", user.ID),
			slog.String("error", err.Error()),
		)
		return action.Fail(action.KindUnavailable, resetUnavailableMsg, nil), nil
	}

	return action.Succeed(resetRequestedMessage, nil), nil
}

// ResetPasswordInput はパスワード再設定フォーム。
type ResetPasswordInput struct {
	Token    string `form:"token" validate:"required,max=255" action:"secret"`
	Password string `form:"password" validate:"required,min=8,max=100" action:"secret"`
}

// Messages は入力エラーのメッセージを返す。
func (ResetPasswordInput) Messages() map[string]string {
	return map[string]string{
		"Token.required":    resetInvalidDataMsg,
		"Token.max":         resetInvalidDataMsg,
		"Password.required": resetInvalidDataMsg,
		"Password.min":      resetInvalidDataMsg,
		"Password.max":      resetInvalidDataMsg,
	}
}

// ResetPassword は再設定トークンを検証してパスワードを更新する。
// 更新後はユーザーの全トークンを削除する。
func (s *Service) ResetPassword(ctx context.Context, in ResetPasswordInput, req *action.Request) (action.Result, error) {
	stored, err := s.resetTokens.FindByHash(ctx, auth.HashResetToken(in.Token))
	if err != nil {
		return action.Result{}, fmt.Errorf("再設定トークンの取得に失敗しました: %w", err)
	}
	if stored == nil {
		return action.Fail(action.KindConflict, resetTokenInvalidMsg, nil), nil
	}
	if !s.now().Before(stored.ExpiresAt) {
		if err := s.resetTokens.DeleteByID(ctx, stored.ID); err != nil {
			return action.Result{}, fmt.Errorf("再設定トークンの削除に失敗しました: %w", err)
		}
		return action.Fail(action.KindConflict, resetTokenExpiredMsg, nil), nil
	}

	user, err := s.users.FindByID(ctx, stored.UserID)
	if err != nil {
		return action.Result{}, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil {
		return action.Fail(action.KindConflict, resetTokenInvalidMsg, nil), nil
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return action.Result{}, err
	}
	m, err := s.membership(ctx, user.ID)
	if err != nil {
		return action.Result{}, err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return action.Fail(action.KindConflict, resetTokenInvalidMsg, nil), nil
		}
		return action.Result{}, fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}
	s.forgetUser(ctx, user.ID)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.resetTokens.DeleteByUserID(gctx, user.ID)
	})
	g.Go(func() error {
		return s.audit.Record(gctx, teamIDOf(m), user.ID, model.ActivityUpdatePassword, req.IPAddress)
	})
	if err := g.Wait(); err != nil {
		return action.Result{}, fmt.Errorf("パスワード再設定の後処理に失敗しました: %w", err)
	}

	slog.Info("password reset completed", slog.Int64("user_id", user.ID))
	return action.Succeed(passwordResetSucceeded, nil), nil
}
