package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/model"
	"github.com/hitoshi/mjeti360/internal/repository"
)

// Profile は/dashboard/api/userで返すユーザー情報。パスワードハッシュは含めない。
type Profile struct {
	ID        int64     `json:"id"`
	Name      *string   `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewProfile は認証ユーザーからProfileを生成する。
func NewProfile(u *model.User) Profile {
	return Profile{
		ID:        u.ID,
		Name:      u.Name,
		Email:     u.Email,
		Role:      u.Role,
		CreatedAt: u.CreatedAt,
	}
}

// UpdatePasswordInput はパスワード変更フォーム。
type UpdatePasswordInput struct {
	CurrentPassword string `form:"currentPassword" validate:"required,min=8,max=100" action:"secret"`
	NewPassword     string `form:"newPassword" validate:"required,min=8,max=100" action:"secret"`
	ConfirmPassword string `form:"confirmPassword" validate:"required,min=8,max=100" action:"secret"`
}

// UpdatePassword は現在のパスワードを確認してから新しいパスワードに変更する。
func (s *Service) UpdatePassword(ctx context.Context, in UpdatePasswordInput, req *action.Request, user *model.User) (action.Result, error) {
	echo := map[string]string{
		"currentPassword": in.CurrentPassword,
		"newPassword":     in.NewPassword,
		"confirmPassword": in.ConfirmPassword,
	}

	current, err := s.currentUser(ctx, user.ID)
	if err != nil {
		return action.Result{}, err
	}
	if current == nil {
		return action.NotAuthenticated(), nil
	}

	switch {
	case !s.hasher.Compare(current.PasswordHash, in.CurrentPassword):
		return action.Fail(action.KindValidation, "Current password is incorrect.", echo), nil
	case in.CurrentPassword == in.NewPassword:
		return action.Fail(action.KindValidation, "New password must be different from the current password.", echo), nil
	case in.NewPassword != in.ConfirmPassword:
		return action.Fail(action.KindValidation, "New password and confirmation password do not match.", echo), nil
	}

	hash, err := s.hasher.Hash(in.NewPassword)
	if err != nil {
		return action.Result{}, err
	}
	m, err := s.membership(ctx, user.ID)
	if err != nil {
		return action.Result{}, err
	}
	if err := s.users.UpdatePasswordHash(ctx, user.ID, hash); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.forgetUser(ctx, user.ID)
			return action.NotAuthenticated(), nil
		}
		return action.Result{}, fmt.Errorf("パスワードの更新に失敗しました: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.audit.Record(gctx, teamIDOf(m), user.ID, model.ActivityUpdatePassword, req.IPAddress)
	})
	g.Go(func() error {
		s.forgetUser(gctx, user.ID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return action.Result{}, fmt.Errorf("監査ログの記録に失敗しました: %w", err)
	}

	return action.Succeed("Password updated successfully.", nil), nil
}

// DeleteAccountInput は退会フォーム。
type DeleteAccountInput struct {
	Password string `form:"password" validate:"required,min=8,max=100" action:"secret"`
}

// DeleteAccount はパスワードを確認してアカウントを論理削除し、サインイン画面へリダイレクトする。
// 削除順序: 監査ログ → ユーザー論理削除・所属・再設定トークン（並行） → セッション
func (s *Service) DeleteAccount(ctx context.Context, in DeleteAccountInput, req *action.Request, user *model.User) (action.Result, error) {
	current, err := s.currentUser(ctx, user.ID)
	if err != nil {
		return action.Result{}, err
	}
	if current == nil {
		return action.NotAuthenticated(), nil
	}
	if !s.hasher.Compare(current.PasswordHash, in.Password) {
		return action.Fail(action.KindValidation, "Incorrect password. Account deletion failed.", map[string]string{
			"password": in.Password,
		}), nil
	}

	m, err := s.membership(ctx, user.ID)
	if err != nil {
		return action.Result{}, err
	}

	slog.Info("退会処理を開始します", slog.Int64("user_id", user.ID))

	// 1. 所属が残っているうちに監査ログを記録
	if err := s.audit.Record(ctx, teamIDOf(m), user.ID, model.ActivityDeleteAccount, req.IPAddress); err != nil {
		return action.Result{}, fmt.Errorf("監査ログの記録に失敗しました: %w", err)
	}

	// 2. ユーザーと関連データを削除
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.users.SoftDelete(gctx, user.ID); err != nil {
			return fmt.Errorf("ユーザーの削除に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.members.DeleteByUserID(gctx, user.ID); err != nil {
			return fmt.Errorf("チーム所属の削除に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		if err := s.resetTokens.DeleteByUserID(gctx, user.ID); err != nil {
			return fmt.Errorf("再設定トークンの削除に失敗しました: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return action.Result{}, err
	}

	// 3. 他の端末を含むすべてのセッションのキャッシュを破棄
	s.forgetUser(ctx, user.ID)
	req.Session.Clear()

	slog.Info("退会処理が完了しました", slog.Int64("user_id", user.ID))
	return action.Redirect("/sign-in"), nil
}

// UpdateAccountInput はアカウント情報の更新フォーム。
type UpdateAccountInput struct {
	Name  string `form:"name" validate:"required,min=1,max=100"`
	Email string `form:"email" validate:"required,email,max=255"`
}

// Messages は入力エラーのメッセージを返す。
func (UpdateAccountInput) Messages() map[string]string {
	return map[string]string{
		"Name.required": "Name is required",
		"Email.email":   "Invalid email address",
	}
}

// UpdateAccount は名前とメールアドレスを更新する。
func (s *Service) UpdateAccount(ctx context.Context, in UpdateAccountInput, req *action.Request, user *model.User) (action.Result, error) {
	name := in.Name
	if s.sanitizer != nil {
		name = s.sanitizer.Sanitize(name)
	}
	echo := map[string]string{"name": name, "email": in.Email}
	if name == "" {
		return action.Fail(action.KindValidation, "Name is required", echo), nil
	}

	taken, err := s.users.EmailTaken(ctx, in.Email, user.ID)
	if err != nil {
		return action.Result{}, fmt.Errorf("メールアドレスの確認に失敗しました: %w", err)
	}
	if taken {
		return action.Fail(action.KindConflict, "Email is already in use.", echo), nil
	}

	m, err := s.membership(ctx, user.ID)
	if err != nil {
		return action.Result{}, err
	}
	if err := s.users.UpdateAccount(ctx, user.ID, name, in.Email); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return action.Fail(action.KindConflict, "Email is already in use.", echo), nil
		}
		if errors.Is(err, repository.ErrNotFound) {
			s.forgetUser(ctx, user.ID)
			return action.NotAuthenticated(), nil
		}
		return action.Result{}, fmt.Errorf("アカウントの更新に失敗しました: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.audit.Record(gctx, teamIDOf(m), user.ID, model.ActivityUpdateAccount, req.IPAddress)
	})
	g.Go(func() error {
		s.forgetUser(gctx, user.ID)
		return nil
	})
	if err := g.Wait(); err != nil {
		return action.Result{}, fmt.Errorf("監査ログの記録に失敗しました: %w", err)
	}

	return action.Succeed("Account updated successfully.", map[string]string{"name": name}), nil
}
