// Package user はアカウントに関する業務アクション（サインイン・サインアップ・
// パスワード変更・退会など）を提供する。
package user

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/hitoshi/mjeti360/internal/action"
	"github.com/hitoshi/mjeti360/internal/email"
	"github.com/hitoshi/mjeti360/internal/model"
)

// DefaultResetTokenTTL はパスワード再設定トークンの有効期間。
const DefaultResetTokenTTL = 30 * time.Minute

// UserStore はユーザーの永続化操作。repository.UserRepositoryが実装する。
type UserStore interface {
	FindByID(ctx context.Context, id int64) (*model.User, error)
	FindByEmail(ctx context.Context, email string) (*model.User, error)
	Create(ctx context.Context, user *model.User) error
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error
	UpdateAccount(ctx context.Context, id int64, name, email string) error
	SoftDelete(ctx context.Context, id int64) error
	EmailTaken(ctx context.Context, email string, excludeUserID int64) (bool, error)
}

// TeamStore はサインアップ時のチーム作成・取得操作。
type TeamStore interface {
	Create(ctx context.Context, team *model.Team) error
	FindByID(ctx context.Context, id int64) (*model.Team, error)
}

// MemberStore はチーム所属の操作。
type MemberStore interface {
	Create(ctx context.Context, member *model.TeamMember) error
	FindMembershipByUserID(ctx context.Context, userID int64) (*model.Membership, error)
	DeleteByUserID(ctx context.Context, userID int64) error
}

// InvitationStore は招待の検索と承諾。
type InvitationStore interface {
	FindPending(ctx context.Context, id int64, email string) (*model.Invitation, error)
	Accept(ctx context.Context, id int64) (bool, error)
}

// ResetTokenStore はパスワード再設定トークンの永続化操作。
type ResetTokenStore interface {
	Create(ctx context.Context, token *model.PasswordResetToken) error
	FindByHash(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error)
	DeleteByID(ctx context.Context, id string) error
	DeleteByUserID(ctx context.Context, userID int64) error
}

// AuditRecorder は監査ログを記録する。audit.Loggerが実装する。
type AuditRecorder interface {
	Record(ctx context.Context, teamID *int64, userID int64, kind model.ActivityType, ip string) error
}

// PasswordHasher はパスワードのハッシュ化と照合を行う。
type PasswordHasher interface {
	Hash(password string) (string, error)
	Compare(hash, password string) bool
}

// IdentityForgetter は認証ユーザーキャッシュを破棄する。auth.Resolverが実装する。
type IdentityForgetter interface {
	Forget(ctx context.Context, token string)
	ForgetUser(ctx context.Context, userID int64)
}

// CheckoutRedirector はサインイン・サインアップ後のリダイレクト先を決める。
type CheckoutRedirector interface {
	CheckoutRedirect(ctx context.Context, form url.Values, team *model.Team, userID int64) string
}

// ResetMailer はパスワード再設定メールを送信する。
type ResetMailer interface {
	SendPasswordReset(ctx context.Context, pr email.PasswordReset) error
}

// Sanitizer は自由入力テキストを無害化する。
type Sanitizer interface {
	Sanitize(raw string) string
}

// Dependencies はServiceの依存。CheckoutとNowとResetTTLは省略可能。
type Dependencies struct {
	Users       UserStore
	Teams       TeamStore
	Members     MemberStore
	Invitations InvitationStore
	ResetTokens ResetTokenStore
	Audit       AuditRecorder
	Hasher      PasswordHasher
	Identity    IdentityForgetter
	Checkout    CheckoutRedirector
	Mailer      ResetMailer
	Sanitizer   Sanitizer
	Now         func() time.Time
	ResetTTL    time.Duration
}

// Service はアカウントアクションのサービス層。
// 主たる書き込みを順に行い、独立した副作用（監査ログ・セッション設定など）は並行に実行して
// すべての完了を待ってから結果を返す。
type Service struct {
	users       UserStore
	teams       TeamStore
	members     MemberStore
	invitations InvitationStore
	resetTokens ResetTokenStore
	audit       AuditRecorder
	hasher      PasswordHasher
	identity    IdentityForgetter
	checkout    CheckoutRedirector
	mailer      ResetMailer
	sanitizer   Sanitizer
	now         func() time.Time
	resetTTL    time.Duration
}

// NewService はServiceの新しいインスタンスを生成する。
func NewService(deps Dependencies) *Service {
	s := &Service{
		users:       deps.Users,
		teams:       deps.Teams,
		members:     deps.Members,
		invitations: deps.Invitations,
		resetTokens: deps.ResetTokens,
		audit:       deps.Audit,
		hasher:      deps.Hasher,
		identity:    deps.Identity,
		checkout:    deps.Checkout,
		mailer:      deps.Mailer,
		sanitizer:   deps.Sanitizer,
		now:         deps.Now,
		resetTTL:    deps.ResetTTL,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.resetTTL <= 0 {
		s.resetTTL = DefaultResetTokenTTL
	}
	return s
}

// membership はユーザーの現在のチーム所属を返す。所属がない場合はnil。
func (s *Service) membership(ctx context.Context, userID int64) (*model.Membership, error) {
	m, err := s.members.FindMembershipByUserID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("チーム所属の取得に失敗しました: %w", err)
	}
	return m, nil
}

// redirectAfterAuth はサインイン・サインアップ後のリダイレクト結果を返す。
func (s *Service) redirectAfterAuth(ctx context.Context, req *action.Request, m *model.Membership, userID int64) action.Result {
	if s.checkout == nil {
		return action.Redirect("/dashboard")
	}
	var team *model.Team
	if m != nil {
		team = &m.Team
	}
	return action.Redirect(s.checkout.CheckoutRedirect(ctx, req.Form, team, userID))
}

// forgetSession はリクエストのセッショントークンに紐づくキャッシュを破棄する。
func (s *Service) forgetSession(ctx context.Context, req *action.Request) {
	if s.identity == nil || req.Session == nil {
		return
	}
	if token, ok := req.Session.Token(); ok {
		s.identity.Forget(ctx, token)
	}
}

// forgetUser はユーザーのすべてのセッションのキャッシュを破棄する。
func (s *Service) forgetUser(ctx context.Context, userID int64) {
	if s.identity == nil {
		return
	}
	s.identity.ForgetUser(ctx, userID)
}

// currentUser はパスワード照合のためにユーザーをデータストアから再取得する。
// 認証ユーザーのキャッシュはパスワードハッシュを持たない。
// 論理削除済みの場合はキャッシュを破棄してnilを返す。
func (s *Service) currentUser(ctx context.Context, userID int64) (*model.User, error) {
	u, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("ユーザーの取得に失敗しました: %w", err)
	}
	if u == nil {
		s.forgetUser(ctx, userID)
	}
	return u, nil
}

func teamIDOf(m *model.Membership) *int64 {
	if m == nil {
		return nil
	}
	id := m.Team.ID
	return &id
}
