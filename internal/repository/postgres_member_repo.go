package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/mjeti360/internal/model"
)

// PostgresMemberRepo はPostgreSQLを使用したチーム所属リポジトリ。
type PostgresMemberRepo struct {
	db *sqlx.DB
}

// NewPostgresMemberRepo はPostgresMemberRepoを生成する。
func NewPostgresMemberRepo(db *sqlx.DB) *PostgresMemberRepo {
	return &PostgresMemberRepo{db: db}
}

// Create は所属を作成する。
func (r *PostgresMemberRepo) Create(ctx context.Context, m *model.TeamMember) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO team_members (user_id, team_id, role) VALUES ($1, $2, $3) RETURNING id, joined_at`,
		m.UserID, m.TeamID, m.Role,
	).Scan(&m.ID, &m.JoinedAt)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	if err != nil {
		return fmt.Errorf("failed to insert team member: %w", err)
	}
	return nil
}

// membershipRow は所属とチームを結合した行。
type membershipRow struct {
	model.Team
	MemberRole model.TeamRole `db:"member_role"`
}

// FindMembershipByUserID はユーザーの現在のチーム所属を取得する。
// 参加日時が最も古い所属を「現在のチーム」とする。
func (r *PostgresMemberRepo) FindMembershipByUserID(ctx context.Context, userID int64) (*model.Membership, error) {
	var row membershipRow
	err := r.db.GetContext(ctx, &row,
		`SELECT t.id, t.name, t.created_at, t.updated_at, t.stripe_customer_id, t.stripe_subscription_id,
			t.stripe_product_id, t.plan_name, t.subscription_status, tm.role AS member_role
		 FROM team_members tm
		 JOIN teams t ON t.id = tm.team_id
		 WHERE tm.user_id = $1
		 ORDER BY tm.joined_at, tm.id
		 LIMIT 1`,
		userID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find membership: %w", err)
	}
	return &model.Membership{Team: row.Team, Role: row.MemberRole}, nil
}

// ListByTeam はチームの所属メンバー一覧を返す。
func (r *PostgresMemberRepo) ListByTeam(ctx context.Context, teamID int64) ([]model.TeamMemberWithUser, error) {
	members := []model.TeamMemberWithUser{}
	err := r.db.SelectContext(ctx, &members,
		`SELECT tm.id, tm.user_id, tm.team_id, tm.role, tm.joined_at, u.name AS user_name, u.email AS user_email
		 FROM team_members tm
		 JOIN users u ON u.id = tm.user_id
		 WHERE tm.team_id = $1 AND u.deleted_at IS NULL
		 ORDER BY tm.joined_at, tm.id`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list team members: %w", err)
	}
	return members, nil
}

// DeleteFromTeam は指定チームに属する所属を削除する。
func (r *PostgresMemberRepo) DeleteFromTeam(ctx context.Context, memberID, teamID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM team_members WHERE id = $1 AND team_id = $2`,
		memberID, teamID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete team member: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// DeleteByUserID はユーザーの全所属を削除する。
func (r *PostgresMemberRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM team_members WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete memberships: %w", err)
	}
	return nil
}

// ExistsByEmail はメールアドレスのユーザーがチームに所属しているかを返す。
func (r *PostgresMemberRepo) ExistsByEmail(ctx context.Context, teamID int64, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (
			SELECT 1 FROM team_members tm
			JOIN users u ON u.id = tm.user_id
			WHERE tm.team_id = $1 AND lower(u.email) = lower($2) AND u.deleted_at IS NULL
		)`,
		teamID, email,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check team member: %w", err)
	}
	return exists, nil
}

// compile-time interface check
var _ MemberRepository = (*PostgresMemberRepo)(nil)
