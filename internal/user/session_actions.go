package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/model"
	"github.com/hitoshi/mjeti360/internal/repository"
)

const (
	invalidCredentialsMessage = "Invalid email or password. Please try again."
	createUserFailedMessage   = "Failed to create user. Please try again."
	invalidInvitationMessage  = "Invalid or expired invitation."
)

// SignInInput はサインインフォーム。
type SignInInput struct {
	Email    string `form:"email" validate:"required,email,min=3,max=255"`
	Password string `form:"password" validate:"required,min=8,max=100" action:"secret"`
}

// SignIn はメールアドレスとパスワードで認証し、セッションCookieを発行する。
func (s *Service) SignIn(ctx context.Context, in SignInInput, req *action.Request) (action.Result, error) {
	user, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return action.Result{}, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if user == nil || !s.hasher.Compare(user.PasswordHash, in.Password) {
		return action.Fail(action.KindValidation, invalidCredentialsMessage, map[string]string{
			"email":    in.Email,
			"password": in.Password,
		}), nil
	}

	m, err := s.membership(ctx, user.ID)
	if err != nil {
		return action.Result{}, err
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return req.Session.Set(gctx, user)
	})
	g.Go(func() error {
		return s.audit.Record(gctx, teamIDOf(m), user.ID, model.ActivitySignIn, req.IPAddress)
	})
	if err := g.Wait(); err != nil {
		return action.Result{}, fmt.Errorf("サインイン処理に失敗しました: %w", err)
	}

	slog.Info("user signed in", slog.Int64("user_id", user.ID))
	return s.redirectAfterAuth(ctx, req, m, user.ID), nil
}

// SignUpInput はサインアップフォーム。inviteIdがある場合は招待を承諾してそのチームに参加する。
type SignUpInput struct {
	Email    string `form:"email" validate:"required,email,min=3,max=255"`
	Password string `form:"password" validate:"required,min=8,max=100" action:"secret"`
	InviteID string `form:"inviteId" validate:"omitempty,numeric"`
}

// SignUp はユーザーを作成し、新規チームまたは招待元チームへ所属させてサインインする。
func (s *Service) SignUp(ctx context.Context, in SignUpInput, req *action.Request) (action.Result, error) {
	echo := map[string]string{"email": in.Email, "password": in.Password}

	existing, err := s.users.FindByEmail(ctx, in.Email)
	if err != nil {
		return action.Result{}, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if existing != nil {
		return action.Fail(action.KindConflict, createUserFailedMessage, echo), nil
	}

	// 1. 招待の確定。ユーザー作成より先に承諾し、承諾に失敗した場合はユーザー行を作らない
	var team *model.Team
	var invitation *model.Invitation
	if in.InviteID != "" {
		inviteID, err := strconv.ParseInt(in.InviteID, 10, 64)
		if err != nil {
			return action.Fail(action.KindValidation, invalidInvitationMessage, echo), nil
		}
		invitation, err = s.invitations.FindPending(ctx, inviteID, in.Email)
		if err != nil {
			return action.Result{}, fmt.Errorf("招待の取得に失敗しました: %w", err)
		}
		if invitation == nil {
			return action.Fail(action.KindConflict, invalidInvitationMessage, echo), nil
		}
		team, err = s.teams.FindByID(ctx, invitation.TeamID)
		if err != nil {
			return action.Result{}, fmt.Errorf("チームの取得に失敗しました: %w", err)
		}
		if team == nil {
			return action.Fail(action.KindConflict, invalidInvitationMessage, echo), nil
		}
		accepted, err := s.invitations.Accept(ctx, invitation.ID)
		if err != nil {
			return action.Result{}, fmt.Errorf("招待の承諾に失敗しました: %w", err)
		}
		if !accepted {
			return action.Fail(action.KindConflict, invalidInvitationMessage, echo), nil
		}
	}

	// 2. ユーザー作成
	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return action.Result{}, err
	}
	role := model.TeamRoleOwner
	if invitation != nil {
		role = invitation.Role
	}
	user := &model.User{
		Email:        in.Email,
		PasswordHash: hash,
		Role:         string(role),
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrConflict) {
			return action.Fail(action.KindConflict, createUserFailedMessage, echo), nil
		}
		return action.Result{}, fmt.Errorf("ユーザーの作成に失敗しました: %w", err)
	}

	// 3. 招待がない場合は新規チームを作成
	joinKind := model.ActivityAcceptInvitation
	if invitation == nil {
		joinKind = model.ActivityCreateTeam
		team = &model.Team{Name: fmt.Sprintf("%s's Team", in.Email)}
		if err := s.teams.Create(ctx, team); err != nil {
			return action.Result{}, fmt.Errorf("チームの作成に失敗しました: %w", err)
		}
	}

	// 4. 所属・監査ログ・セッションを並行に書き込む
	teamID := team.ID
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.members.Create(gctx, &model.TeamMember{
			UserID: user.ID,
			TeamID: teamID,
			Role:   role,
		})
	})
	g.Go(func() error {
		return s.audit.Record(gctx, &teamID, user.ID, joinKind, req.IPAddress)
	})
	g.Go(func() error {
		return s.audit.Record(gctx, &teamID, user.ID, model.ActivitySignUp, req.IPAddress)
	})
	g.Go(func() error {
		return req.Session.Set(gctx, user)
	})
	if err := g.Wait(); err != nil {
		return action.Result{}, fmt.Errorf("サインアップ処理に失敗しました: %w", err)
	}

	slog.Info("user signed up",
		slog.Int64("user_id", user.ID),
		slog.Int64("team_id", teamID),
		slog.String("role", string(role)),
	)
	return s.redirectAfterAuth(ctx, req, &model.Membership{Team: *team, Role: role}, user.ID), nil
}

// SignOut はセッションを破棄してトップページへリダイレクトする。
// userがnilの場合（セッションが無効）は監査ログを記録しない。
func (s *Service) SignOut(ctx context.Context, req *action.Request, user *model.User) (action.Result, error) {
	if user != nil {
		m, err := s.membership(ctx, user.ID)
		if err != nil {
			return action.Result{}, err
		}
		if err := s.audit.Record(ctx, teamIDOf(m), user.ID, model.ActivitySignOut, req.IPAddress); err != nil {
			return action.Result{}, fmt.Errorf("監査ログの記録に失敗しました: %w", err)
		}
	}

	s.forgetSession(ctx, req)
	if req.Session != nil {
		req.Session.Clear()
	}
	return action.Redirect("/"), nil
}
