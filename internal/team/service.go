// Package team はチーム管理の業務アクション（チーム名変更・メンバー削除・招待）と
// チーム情報の参照を提供する。
package team

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/audit"
	"github.com/hitoshi/mjeti360/internal/email"
	"github.com/hitoshi/mjeti360/internal/model"
)

const notInTeamMessage = "User is not part of a team"

// TeamStore はチーム名の更新操作。
type TeamStore interface {
	UpdateName(ctx context.Context, id int64, name string) error
}

// MemberStore はチーム所属の操作。
type MemberStore interface {
	FindMembershipByUserID(ctx context.Context, userID int64) (*model.Membership, error)
	ListByTeam(ctx context.Context, teamID int64) ([]model.TeamMemberWithUser, error)
	DeleteFromTeam(ctx context.Context, memberID, teamID int64) (bool, error)
	ExistsByEmail(ctx context.Context, teamID int64, email string) (bool, error)
}

// InvitationStore は招待の作成と検索。
type InvitationStore interface {
	Create(ctx context.Context, inv *model.Invitation) error
	HasPending(ctx context.Context, teamID int64, email string) (bool, error)
}

// AuditLog は監査ログの記録とチーム単位の参照。audit.Loggerが実装する。
type AuditLog interface {
	Record(ctx context.Context, teamID *int64, userID int64, kind model.ActivityType, ip string) error
	ListForTeam(ctx context.Context, teamID int64, page, limit int) (*model.ActivityPage, error)
}

// InviteMailer は招待メールを送信する。
type InviteMailer interface {
	SendInvite(ctx context.Context, inv email.Invite) error
}

// Sanitizer は自由入力テキストを無害化する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Service はチーム管理のサービス層。
type Service struct {
	teams       TeamStore
	members     MemberStore
	invitations InvitationStore
	audit       AuditLog
	mailer      InviteMailer
	sanitizer   Sanitizer
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(
	teams TeamStore,
	members MemberStore,
	invitations InvitationStore,
	audit AuditLog,
	mailer InviteMailer,
	sanitizer Sanitizer,
) *Service {
	return &Service{
		teams:       teams,
		members:     members,
		invitations: invitations,
		audit:       audit,
		mailer:      mailer,
		sanitizer:   sanitizer,
	}
}

// TeamForUser はユーザーの現在のチームと所属メンバー一覧を返す。所属がない場合はnil。
func (s *Service) TeamForUser(ctx context.Context, user *model.User) (*model.TeamWithMembers, error) {
	m, err := s.members.FindMembershipByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	if m == nil {
		return nil, nil
	}

	members, err := s.members.ListByTeam(ctx, m.Team.ID)
	if err != nil {
		return nil, fmt.Errorf("メンバー一覧の取得に失敗しました: %w", err)
	}
	if members == nil {
		members = []model.TeamMemberWithUser{}
	}
	return &model.TeamWithMembers{Team: m.Team, Members: members}, nil
}

// TeamActivity はユーザーが所属するチームの操作ログを返す。所属がない場合は空のページ。
func (s *Service) TeamActivity(ctx context.Context, user *model.User, page, limit int) (*model.ActivityPage, error) {
	m, err := s.members.FindMembershipByUserID(ctx, user.ID)
	if err != nil {
		return nil, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	if m == nil {
		return audit.EmptyPage(page, limit), nil
	}
	return s.audit.ListForTeam(ctx, m.Team.ID, page, limit)
}

// UpdateTeamNameInput はチーム名変更フォーム。
type UpdateTeamNameInput struct {
	TeamID string `form:"teamId" validate:"required,numeric"`
	Name   string `form:"name" validate:"required,min=1,max=100"`
}

// Messages は入力エラーのメッセージを返す。
func (UpdateTeamNameInput) Messages() map[string]string {
	return map[string]string{
		"TeamID.required": "Invalid team ID",
		"TeamID.numeric":  "Invalid team ID",
		"Name.required":   "Team name is required",
		"Name.min":        "Team name is required",
	}
}

// UpdateTeamName は自分が所属するチームの名前を変更する。
func (s *Service) UpdateTeamName(ctx context.Context, in UpdateTeamNameInput, req *action.Request, user *model.User) (action.Result, error) {
	teamID, err := strconv.ParseInt(in.TeamID, 10, 64)
	if err != nil {
		return action.Fail(action.KindValidation, "Invalid team ID", nil), nil
	}
	name := in.Name
	if s.sanitizer != nil {
		name = s.sanitizer.Sanitize(name)
	}
	if name == "" {
		return action.Fail(action.KindValidation, "Team name is required", nil), nil
	}

	m, err := s.members.FindMembershipByUserID(ctx, user.ID)
	if err != nil {
		return action.Result{}, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	if m == nil || m.Team.ID != teamID {
		return action.Fail(action.KindForbidden, "You do not have permission to update this team.", nil), nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := s.teams.UpdateName(gctx, teamID, name); err != nil {
			return fmt.Errorf("チーム名の更新に失敗しました: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		return s.audit.Record(gctx, &teamID, user.ID, model.ActivityUpdateTeam, req.IPAddress)
	})
	if err := g.Wait(); err != nil {
		return action.Result{}, err
	}

	return action.Succeed("Team name updated successfully.", map[string]string{"name": name}), nil
}

// RemoveTeamMemberInput はメンバー削除フォーム。
type RemoveTeamMemberInput struct {
	MemberID int64 `form:"memberId" validate:"required,gt=0"`
}

// Messages は入力エラーのメッセージを返す。
func (RemoveTeamMemberInput) Messages() map[string]string {
	return map[string]string{
		"MemberID.required": "Invalid member ID",
		"MemberID.gt":       "Invalid member ID",
		"MemberID.decode":   "Invalid member ID",
	}
}

// RemoveTeamMember はチームオーナーとして自チームのメンバーを削除する。
// 削除は(memberID, 自チームID)でスコープするため、他チームの所属は削除できない。
func (s *Service) RemoveTeamMember(ctx context.Context, in RemoveTeamMemberInput, req *action.Request, user *model.User) (action.Result, error) {
	m, err := s.members.FindMembershipByUserID(ctx, user.ID)
	if err != nil {
		return action.Result{}, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	if m == nil {
		return action.Fail(action.KindForbidden, notInTeamMessage, nil), nil
	}
	if m.Role != model.TeamRoleOwner {
		return action.Fail(action.KindForbidden, "Only team owners can remove members.", nil), nil
	}

	teamID := m.Team.ID
	removed, err := s.members.DeleteFromTeam(ctx, in.MemberID, teamID)
	if err != nil {
		return action.Result{}, fmt.Errorf("メンバーの削除に失敗しました: %w", err)
	}
	if !removed {
		return action.Fail(action.KindConflict, "Team member not found.", nil), nil
	}

	if err := s.audit.Record(ctx, &teamID, user.ID, model.ActivityRemoveTeamMember, req.IPAddress); err != nil {
		return action.Result{}, fmt.Errorf("監査ログの記録に失敗しました: %w", err)
	}

	slog.Info("team member removed",
		slog.Int64("team_id", teamID),
		slog.Int64("member_id", in.MemberID),
		slog.Int64("removed_by", user.ID),
	)
	return action.Succeed("Team member removed successfully", nil), nil
}

// InviteTeamMemberInput は招待フォーム。
type InviteTeamMemberInput struct {
	Email string `form:"email" validate:"required,email,max=255"`
	Role  string `form:"role" validate:"required,oneof=member owner"`
}

// Messages は入力エラーのメッセージを返す。
func (InviteTeamMemberInput) Messages() map[string]string {
	return map[string]string{"Email.email": "Invalid email address"}
}

// InviteTeamMember はチームオーナーとして招待を作成し、招待メールを送信する。
// 同じメールアドレスへの承諾待ちの招待が既にある場合も新しい招待を作成する。
func (s *Service) InviteTeamMember(ctx context.Context, in InviteTeamMemberInput, req *action.Request, user *model.User) (action.Result, error) {
	m, err := s.members.FindMembershipByUserID(ctx, user.ID)
	if err != nil {
		return action.Result{}, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	if m == nil {
		return action.Fail(action.KindForbidden, notInTeamMessage, nil), nil
	}
	if m.Role != model.TeamRoleOwner {
		return action.Fail(action.KindForbidden, "You must be a team owner to invite new members.", nil), nil
	}

	teamID := m.Team.ID
	exists, err := s.members.ExistsByEmail(ctx, teamID, in.Email)
	if err != nil {
		return action.Result{}, fmt.Errorf("メンバーの確認に失敗しました: %w", err)
	}
	if exists {
		return action.Fail(action.KindConflict, "User is already a member of this team", map[string]string{
			"email": in.Email,
			"role":  in.Role,
		}), nil
	}

	hadPending, err := s.invitations.HasPending(ctx, teamID, in.Email)
	if err != nil {
		return action.Result{}, fmt.Errorf("招待の確認に失敗しました: %w", err)
	}

	inv := &model.Invitation{
		TeamID:    teamID,
		Email:     in.Email,
		Role:      model.TeamRole(in.Role),
		InvitedBy: user.ID,
		Status:    model.InvitationPending,
	}
	if err := s.invitations.Create(ctx, inv); err != nil {
		return action.Result{}, fmt.Errorf("招待の作成に失敗しました: %w", err)
	}

	// 監査ログとメール送信を並行に行う。送信失敗は結果で返す。
	var sendErr error
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.audit.Record(gctx, &teamID, user.ID, model.ActivityInviteTeamMember, req.IPAddress)
	})
	g.Go(func() error {
		sendErr = s.mailer.SendInvite(gctx, email.Invite{
			Email:    inv.Email,
			TeamName: m.Team.Name,
			Role:     in.Role,
			InviteID: inv.ID,
		})
		return nil
	})
	if err := g.Wait(); err != nil {
		return action.Result{}, fmt.Errorf("監査ログの記録に失敗しました: %w", err)
	}
	if sendErr != nil {
		slog.Error("failed to send invitation email",
			slog.Int64("team_id", teamID),
			slog.Int64("invitation_id", inv.ID),
			slog.String("error", sendErr.Error()),
		)
		return action.Fail(action.KindUnavailable, "Failed to send invitation email. Please try again later.", nil), nil
	}

	if hadPending {
		return action.Succeed("A previous invitation was found and a new one has been sent successfully", nil), nil
	}
	return action.Succeed("Invitation sent successfully", nil), nil
}
