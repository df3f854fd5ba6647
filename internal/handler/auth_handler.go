package handler

import (
	"context"
	"net/http"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/model"
	"github.com/hitoshi/mjeti360/internal/user"
)

// AuthServiceInterface は認証ハンドラーが必要とするサービスインターフェース。
type AuthServiceInterface interface {
	SignIn(ctx context.Context, in user.SignInInput, req *action.Request) (action.Result, error)
	SignUp(ctx context.Context, in user.SignUpInput, req *action.Request) (action.Result, error)
	// SignOut はprincipalがnilでもセッションCookieを削除する。
	SignOut(ctx context.Context, req *action.Request, principal *model.User) (action.Result, error)
	RequestPasswordReset(ctx context.Context, in user.RequestPasswordResetInput, req *action.Request) (action.Result, error)
	ResetPassword(ctx context.Context, in user.ResetPasswordInput, req *action.Request) (action.Result, error)
}

var _ AuthServiceInterface = (*user.Service)(nil) // compile-time interface check

// AuthHandler はサインイン・サインアップ・サインアウトとパスワード再設定のHTTPハンドラー。
type AuthHandler struct {
	signIn         http.HandlerFunc
	signUp         http.HandlerFunc
	signOut        http.HandlerFunc
	forgotPassword http.HandlerFunc
	resetPassword  http.HandlerFunc
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(service AuthServiceInterface, runner *ActionRunner) *AuthHandler {
	g := runner.gate
	return &AuthHandler{
		signIn:         runner.Serve("sign_in", action.Validated(g, service.SignIn)),
		signUp:         runner.Serve("sign_up", action.Validated(g, service.SignUp)),
		signOut:        runner.Serve("sign_out", principalAction(g, service.SignOut)),
		forgotPassword: runner.Serve("forgot_password", action.Validated(g, service.RequestPasswordReset)),
		resetPassword:  runner.Serve("reset_password", action.Validated(g, service.ResetPassword)),
	}
}

// SignIn はメールアドレスとパスワードでサインインする。
// POST /api/auth/sign-in
func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) { h.signIn(w, r) }

// SignUp はユーザーを作成する。inviteIdがある場合は招待を受諾する。
// POST /api/auth/sign-up
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) { h.signUp(w, r) }

// SignOut はセッションを終了する。
// POST /api/auth/sign-out
func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) { h.signOut(w, r) }

// ForgotPassword はパスワード再設定メールを送信する。
// POST /api/auth/forgot-password
func (h *AuthHandler) ForgotPassword(w http.ResponseWriter, r *http.Request) { h.forgotPassword(w, r) }

// ResetPassword は再設定トークンでパスワードを更新する。
// POST /api/auth/reset-password
func (h *AuthHandler) ResetPassword(w http.ResponseWriter, r *http.Request) { h.resetPassword(w, r) }
