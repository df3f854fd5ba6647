// Package model はドメインモデルを定義する。
package model

import "time"

// DefaultUserRole はユーザー作成時のグローバルロール。
const DefaultUserRole = "member"

// User はサービス利用ユーザー（プリンシパル）を表す。
// DeletedAtが非nilのユーザーは論理削除済みであり、認証・検索の対象外となる。
type User struct {
	ID           int64      `db:"id"`
	Name         *string    `db:"name"`
	Email        string     `db:"email"`
	PasswordHash string     `db:"password_hash" json:"-"`
	Role         string     `db:"role"`
	CreatedAt    time.Time  `db:"created_at"`
	UpdatedAt    time.Time  `db:"updated_at"`
	DeletedAt    *time.Time `db:"deleted_at"`
	Anonymized   bool       `db:"anonymized"`
}

// DisplayName は表示用の名前を返す。名前未設定の場合はメールアドレスを返す。
func (u *User) DisplayName() string {
	if u.Name != nil && *u.Name != "" {
		return *u.Name
	}
	return u.Email
}

// IsDeleted は論理削除済みかどうかを返す。
func (u *User) IsDeleted() bool {
	return u.DeletedAt != nil
}

// PasswordResetToken はパスワード再設定用トークンを表す。
// トークンの平文は保存せず、SHA-256ハッシュのみを保持する。
type PasswordResetToken struct {
	ID        string    `db:"id"`
	UserID    int64     `db:"user_id"`
	TokenHash string    `db:"token_hash"`
	ExpiresAt time.Time `db:"expires_at"`
	CreatedAt time.Time `db:"created_at"`
}
