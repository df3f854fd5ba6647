package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/model"
	"github.com/hitoshi/mjeti360/internal/team"
)

// TeamServiceInterface はチームハンドラーが必要とするサービスインターフェース。
type TeamServiceInterface interface {
	// TeamForUser はユーザーの現在のチームとメンバー一覧を返す。所属がない場合はnil。
	TeamForUser(ctx context.Context, principal *model.User) (*model.TeamWithMembers, error)
	TeamActivity(ctx context.Context, principal *model.User, page, limit int) (*model.ActivityPage, error)
	UpdateTeamName(ctx context.Context, in team.UpdateTeamNameInput, req *action.Request, principal *model.User) (action.Result, error)
	RemoveTeamMember(ctx context.Context, in team.RemoveTeamMemberInput, req *action.Request, principal *model.User) (action.Result, error)
	InviteTeamMember(ctx context.Context, in team.InviteTeamMemberInput, req *action.Request, principal *model.User) (action.Result, error)
}

var _ TeamServiceInterface = (*team.Service)(nil) // compile-time interface check

// TeamHandler はチーム管理のHTTPハンドラー。
type TeamHandler struct {
	runner  *ActionRunner
	service TeamServiceInterface

	updateName   http.HandlerFunc
	removeMember http.HandlerFunc
	invite       http.HandlerFunc
}

// NewTeamHandler はTeamHandlerを生成する。
func NewTeamHandler(service TeamServiceInterface, runner *ActionRunner) *TeamHandler {
	g := runner.gate
	return &TeamHandler{
		runner:       runner,
		service:      service,
		updateName:   runner.Serve("update_team_name", action.ValidatedWithUser(g, service.UpdateTeamName)),
		removeMember: runner.Serve("remove_team_member", action.ValidatedWithUser(g, service.RemoveTeamMember)),
		invite:       runner.Serve("invite_team_member", action.ValidatedWithUser(g, service.InviteTeamMember)),
	}
}

// teamMemberUserResponse はメンバーのユーザー情報。
type teamMemberUserResponse struct {
	ID    int64   `json:"id"`
	Name  *string `json:"name"`
	Email string  `json:"email"`
}

// teamMemberResponse はチームメンバー1件のAPIレスポンス。
type teamMemberResponse struct {
	ID       int64                  `json:"id"`
	Role     string                 `json:"role"`
	JoinedAt time.Time              `json:"joinedAt"`
	User     teamMemberUserResponse `json:"user"`
}

// teamResponse はチーム情報のAPIレスポンス。課金の識別子は含めない。
type teamResponse struct {
	ID                 int64                `json:"id"`
	Name               string               `json:"name"`
	PlanName           *string              `json:"planName"`
	SubscriptionStatus *string              `json:"subscriptionStatus"`
	CreatedAt          time.Time            `json:"createdAt"`
	Members            []teamMemberResponse `json:"teamMembers"`
}

func toTeamResponse(t *model.TeamWithMembers) teamResponse {
	members := make([]teamMemberResponse, 0, len(t.Members))
	for _, m := range t.Members {
		members = append(members, teamMemberResponse{
			ID:       m.ID,
			Role:     string(m.Role),
			JoinedAt: m.JoinedAt,
			User: teamMemberUserResponse{
				ID:    m.UserID,
				Name:  m.UserName,
				Email: m.UserEmail,
			},
		})
	}
	return teamResponse{
		ID:                 t.ID,
		Name:               t.Name,
		PlanName:           t.PlanName,
		SubscriptionStatus: t.SubscriptionStatus,
		CreatedAt:          t.CreatedAt,
		Members:            members,
	}
}

// GetTeam は認証ユーザーのチームとメンバー一覧を返す。
// GET /dashboard/api/team
func (h *TeamHandler) GetTeam(w http.ResponseWriter, r *http.Request) {
	h.runner.withPrincipal(func(w http.ResponseWriter, r *http.Request, principal *model.User) {
		t, err := h.service.TeamForUser(r.Context(), principal)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		if t == nil {
			writeAPIErrorResponse(w, http.StatusNotFound, model.NewTeamNotFoundError())
			return
		}
		writeJSON(w, http.StatusOK, toTeamResponse(t))
	})(w, r)
}

// Activity はチームの監査ログを新しい順に返す。
// GET /dashboard/api/team/activity?page=1&limit=10
func (h *TeamHandler) Activity(w http.ResponseWriter, r *http.Request) {
	h.runner.withPrincipal(func(w http.ResponseWriter, r *http.Request, principal *model.User) {
		page, limit := pagingParams(r)
		result, err := h.service.TeamActivity(r.Context(), principal, page, limit)
		if err != nil {
			handleServiceError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, toActivityPageResponse(result))
	})(w, r)
}

// UpdateName はチーム名を変更する。
// POST /dashboard/api/team/name
func (h *TeamHandler) UpdateName(w http.ResponseWriter, r *http.Request) { h.updateName(w, r) }

// RemoveMember はチームからメンバーを削除する。
// POST /dashboard/api/team/members/remove
func (h *TeamHandler) RemoveMember(w http.ResponseWriter, r *http.Request) { h.removeMember(w, r) }

// Invite はチームへの招待を作成し、招待メールを送信する。
// POST /dashboard/api/team/invitations
func (h *TeamHandler) Invite(w http.ResponseWriter, r *http.Request) { h.invite(w, r) }
