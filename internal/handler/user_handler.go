package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/model"
	"github.com/hitoshi/mjeti360/internal/user"
)

// AccountServiceInterface はアカウントハンドラーが必要とするサービスインターフェース。
type AccountServiceInterface interface {
	UpdateAccount(ctx context.Context, in user.UpdateAccountInput, req *action.Request, principal *model.User) (action.Result, error)
	UpdatePassword(ctx context.Context, in user.UpdatePasswordInput, req *action.Request, principal *model.User) (action.Result, error)
	DeleteAccount(ctx context.Context, in user.DeleteAccountInput, req *action.Request, principal *model.User) (action.Result, error)
}

var _ AccountServiceInterface = (*user.Service)(nil) // compile-time interface check

// UserActivityLister はユーザー自身の監査ログを返す。audit.Loggerが実装する。
type UserActivityLister interface {
	ListForUser(ctx context.Context, userID int64, page, limit int) (*model.ActivityPage, error)
}

// UserHandler は認証ユーザー自身のプロフィール・アカウント操作のHTTPハンドラー。
type UserHandler struct {
	runner   *ActionRunner
	activity UserActivityLister

	updateAccount  http.HandlerFunc
	updatePassword http.HandlerFunc
	deleteAccount  http.HandlerFunc
}

// NewUserHandler はUserHandlerを生成する。
func NewUserHandler(service AccountServiceInterface, activity UserActivityLister, runner *ActionRunner) *UserHandler {
	g := runner.gate
	return &UserHandler{
		runner:         runner,
		activity:       activity,
		updateAccount:  runner.Serve("update_account", action.ValidatedWithUser(g, service.UpdateAccount)),
		updatePassword: runner.Serve("update_password", action.ValidatedWithUser(g, service.UpdatePassword)),
		deleteAccount:  runner.Serve("delete_account", action.ValidatedWithUser(g, service.DeleteAccount)),
	}
}

// CurrentUser は認証ユーザーのプロフィールを返す。
// GET /dashboard/api/user
func (h *UserHandler) CurrentUser(w http.ResponseWriter, r *http.Request) {
	h.runner.withPrincipal(func(w http.ResponseWriter, _ *http.Request, principal *model.User) {
		writeJSON(w, http.StatusOK, user.NewProfile(principal))
	})(w, r)
}

// Activity は認証ユーザーの監査ログを新しい順に返す。
// GET /dashboard/api/activity?page=1&limit=10
func (h *UserHandler) Activity(w http.ResponseWriter, r *http.Request) {
	h.runner.withPrincipal(func(w http.ResponseWriter, r *http.Request, principal *model.User) {
		page, limit := pagingParams(r)
		result, err := h.activity.ListForUser(r.Context(), principal.ID, page, limit)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toActivityPageResponse(result))
	})(w, r)
}

// UpdateAccount は名前とメールアドレスを更新する。
// POST /dashboard/api/account
func (h *UserHandler) UpdateAccount(w http.ResponseWriter, r *http.Request) { h.updateAccount(w, r) }

// UpdatePassword はパスワードを変更する。
// POST /dashboard/api/account/password
func (h *UserHandler) UpdatePassword(w http.ResponseWriter, r *http.Request) { h.updatePassword(w, r) }

// DeleteAccount はアカウントを論理削除する。
// POST /dashboard/api/account/delete
func (h *UserHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) { h.deleteAccount(w, r) }

// activityLogResponse は監査ログ1件のAPIレスポンス。
type activityLogResponse struct {
	ID        int64     `json:"id"`
	Action    string    `json:"action"`
	Timestamp time.Time `json:"timestamp"`
	IPAddress *string   `json:"ipAddress"`
	UserName  *string   `json:"userName"`
	UserEmail *string   `json:"userEmail"`
}

// activityPageResponse は監査ログ一覧のAPIレスポンス。
type activityPageResponse struct {
	Logs       []activityLogResponse `json:"logs"`
	Total      int                   `json:"total"`
	Page       int                   `json:"page"`
	Limit      int                   `json:"limit"`
	TotalPages int                   `json:"totalPages"`
}

func toActivityPageResponse(p *model.ActivityPage) activityPageResponse {
	logs := make([]activityLogResponse, 0, len(p.Logs))
	for _, l := range p.Logs {
		logs = append(logs, activityLogResponse{
			ID:        l.ID,
			Action:    l.Action.String(),
			Timestamp: l.Timestamp,
			IPAddress: l.IPAddress,
			UserName:  l.UserName,
			UserEmail: l.UserEmail,
		})
	}
	return activityPageResponse{
		Logs:       logs,
		Total:      p.Total,
		Page:       p.Page,
		Limit:      p.Limit,
		TotalPages: p.TotalPages,
	}
}
