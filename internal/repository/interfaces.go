// Package repository はデータ永続化のインターフェースとPostgreSQL実装を定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/mjeti360/internal/model"
)

// ErrConflict は一意制約違反（メールアドレス重複など）を表す。
var ErrConflict = errors.New("repository: unique constraint violation")

// ErrNotFound は更新対象の有効な行が存在しないことを表す。
var ErrNotFound = errors.New("repository: record not found")

// UserRepository はユーザーデータの永続化インターフェース。
// 検索系メソッドは論理削除済みユーザーを常に除外する。
type UserRepository interface {
	// FindByID は指定IDの有効なユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.User, error)

	// FindByEmail はメールアドレス（大文字小文字を区別しない）で有効なユーザーを取得する。
	// 見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成し、ID・作成日時を設定する。
	// メールアドレスが有効ユーザーと重複する場合はErrConflictを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdatePasswordHash はパスワードハッシュを更新する。
	// 有効なユーザーが存在しない場合はErrNotFoundを返す。
	UpdatePasswordHash(ctx context.Context, id int64, hash string) error

	// UpdateAccount は名前とメールアドレスを更新する。
	// メールアドレスが他の有効ユーザーと重複する場合はErrConflict、
	// 有効なユーザーが存在しない場合はErrNotFoundを返す。
	UpdateAccount(ctx context.Context, id int64, name, email string) error

	// SoftDelete はユーザーを論理削除し、匿名化フラグを立てる。
	// 有効なユーザーが存在しない場合はErrNotFoundを返す。
	SoftDelete(ctx context.Context, id int64) error

	// EmailTaken は指定ユーザー以外の有効ユーザーがメールアドレスを使用中かを返す。
	EmailTaken(ctx context.Context, email string, excludeUserID int64) (bool, error)
}

// TeamRepository はチームデータの永続化インターフェース。
type TeamRepository interface {
	// Create はチームを作成し、ID・作成日時を設定する。
	Create(ctx context.Context, team *model.Team) error

	// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id int64) (*model.Team, error)

	// FindByStripeCustomerID はStripe顧客IDでチームを取得する。見つからない場合はnilを返す。
	FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Team, error)

	// UpdateName はチーム名を更新する。
	UpdateName(ctx context.Context, id int64, name string) error

	// UpdateSubscription はチームの課金フィールドをスナップショットで上書きする。
	UpdateSubscription(ctx context.Context, teamID int64, snapshot model.SubscriptionSnapshot) error
}

// MemberRepository はチーム所属の永続化インターフェース。
type MemberRepository interface {
	// Create は所属を作成し、ID・参加日時を設定する。
	Create(ctx context.Context, member *model.TeamMember) error

	// FindMembershipByUserID はユーザーの現在のチーム所属を取得する。
	// 複数所属している場合は最も早く参加したチームを返す。所属がない場合はnilを返す。
	FindMembershipByUserID(ctx context.Context, userID int64) (*model.Membership, error)

	// ListByTeam はチームの所属メンバー一覧を返す。論理削除済みユーザーは含めない。
	ListByTeam(ctx context.Context, teamID int64) ([]model.TeamMemberWithUser, error)

	// DeleteFromTeam は指定チームに属する所属を削除する。削除した場合はtrueを返す。
	DeleteFromTeam(ctx context.Context, memberID, teamID int64) (bool, error)

	// DeleteByUserID はユーザーの全所属を削除する。
	DeleteByUserID(ctx context.Context, userID int64) error

	// ExistsByEmail はメールアドレスのユーザーがチームに所属しているかを返す。
	ExistsByEmail(ctx context.Context, teamID int64, email string) (bool, error)
}

// InvitationRepository は招待データの永続化インターフェース。
type InvitationRepository interface {
	// Create は承諾待ちの招待を作成し、ID・招待日時を設定する。
	Create(ctx context.Context, inv *model.Invitation) error

	// FindPending はIDとメールアドレスが一致する承諾待ちの招待を取得する。見つからない場合はnilを返す。
	FindPending(ctx context.Context, id int64, email string) (*model.Invitation, error)

	// HasPending はチームとメールアドレスに対する承諾待ちの招待が存在するかを返す。
	HasPending(ctx context.Context, teamID int64, email string) (bool, error)

	// Accept は承諾待ちの招待を承諾済みにする。
	// 状態がpendingの場合のみ遷移し、遷移した場合はtrueを返す。
	Accept(ctx context.Context, id int64) (bool, error)
}

// ActivityRepository は監査ログの永続化インターフェース。
// 追記のみを提供し、更新・削除は行わない。
type ActivityRepository interface {
	// Insert は監査ログを1件追加する。
	Insert(ctx context.Context, entry *model.ActivityLog) error

	// ListByUser はユーザーの操作ログを新しい順に返す。総件数も返す。
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.ActivityLogView, int, error)

	// ListByTeam はチーム全体の操作ログを新しい順に返す。総件数も返す。
	ListByTeam(ctx context.Context, teamID int64, limit, offset int) ([]model.ActivityLogView, int, error)
}

// PasswordResetRepository はパスワード再設定トークンの永続化インターフェース。
type PasswordResetRepository interface {
	// Create はトークンを保存する。
	Create(ctx context.Context, token *model.PasswordResetToken) error

	// FindByHash はトークンハッシュで検索する。期限切れも含めて返す。見つからない場合はnilを返す。
	FindByHash(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error)

	// DeleteByID はトークンを削除する。
	DeleteByID(ctx context.Context, id string) error

	// DeleteByUserID はユーザーの全トークンを削除する。
	DeleteByUserID(ctx context.Context, userID int64) error

	// DeleteExpired は指定時刻より前に失効したトークンを削除し、削除件数を返す。
	DeleteExpired(ctx context.Context, before time.Time) (int64, error)
}

// VehicleRepository は車両データの永続化インターフェース。
// すべての操作はチームIDでスコープされる。
type VehicleRepository interface {
	// ListByTeam はチームの車両一覧を返す。
	ListByTeam(ctx context.Context, teamID int64) ([]model.Vehicle, error)

	// FindByID はチーム内の車両を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id, teamID int64) (*model.Vehicle, error)

	// Create は車両を登録し、ID・作成日時を設定する。
	Create(ctx context.Context, v *model.Vehicle) error

	// Update はチーム内の車両を更新する。更新した場合はtrueを返す。
	Update(ctx context.Context, v *model.Vehicle) (bool, error)

	// Delete はチーム内の車両を削除する。削除した場合はtrueを返す。
	Delete(ctx context.Context, id, teamID int64) (bool, error)
}
