package model

import "time"

// TeamRole はチーム内でのロールを表す。
// ユーザーのグローバルロールとは独立している。
type TeamRole string

const (
	// TeamRoleOwner はチームのオーナー。メンバー招待・削除が可能。
	TeamRoleOwner TeamRole = "owner"
	// TeamRoleMember は一般メンバー。
	TeamRoleMember TeamRole = "member"
)

// Team はテナント単位のチームを表す。
// Stripe関連フィールドはサブスクリプション更新処理からのみ書き込まれる。
type Team struct {
	ID                   int64     `db:"id"`
	Name                 string    `db:"name"`
	CreatedAt            time.Time `db:"created_at"`
	UpdatedAt            time.Time `db:"updated_at"`
	StripeCustomerID     *string   `db:"stripe_customer_id"`
	StripeSubscriptionID *string   `db:"stripe_subscription_id"`
	StripeProductID      *string   `db:"stripe_product_id"`
	PlanName             *string   `db:"plan_name"`
	SubscriptionStatus   *string   `db:"subscription_status"`
}

// TeamMember はユーザーとチームの所属関係を表す。
type TeamMember struct {
	ID       int64     `db:"id"`
	UserID   int64     `db:"user_id"`
	TeamID   int64     `db:"team_id"`
	Role     TeamRole  `db:"role"`
	JoinedAt time.Time `db:"joined_at"`
}

// TeamMemberWithUser はメンバー一覧表示用にユーザー情報を結合した所属関係。
type TeamMemberWithUser struct {
	TeamMember
	UserName  *string `db:"user_name"`
	UserEmail string  `db:"user_email"`
}

// TeamWithMembers はチームと所属メンバー一覧。
type TeamWithMembers struct {
	Team
	Members []TeamMemberWithUser
}

// Membership はユーザーの現在のチーム所属を表す。
// 1ユーザーにつき最も早く参加したチームを「現在のチーム」とみなす。
type Membership struct {
	Team Team
	Role TeamRole
}

// SubscriptionSnapshot は課金プロバイダーから受け取るサブスクリプション状態。
// 中身はプロバイダー側で決まるため、そのままチームの課金フィールドへ反映する。
type SubscriptionSnapshot struct {
	CustomerID     string
	SubscriptionID *string
	ProductID      *string
	PlanName       *string
	Status         string
}
