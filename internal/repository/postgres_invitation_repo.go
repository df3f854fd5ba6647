package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/mjeti360/internal/model"
)

// PostgresInvitationRepo はPostgreSQLを使用した招待リポジトリ。
type PostgresInvitationRepo struct {
	db *sqlx.DB
}

// NewPostgresInvitationRepo はPostgresInvitationRepoを生成する。
func NewPostgresInvitationRepo(db *sqlx.DB) *PostgresInvitationRepo {
	return &PostgresInvitationRepo{db: db}
}

// Create は承諾待ちの招待を作成する。
func (r *PostgresInvitationRepo) Create(ctx context.Context, inv *model.Invitation) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO invitations (team_id, email, role, invited_by, status)
		 VALUES ($1, $2, $3, $4, 'pending')
		 RETURNING id, invited_at, status`,
		inv.TeamID, inv.Email, inv.Role, inv.InvitedBy,
	).Scan(&inv.ID, &inv.InvitedAt, &inv.Status)
	if err != nil {
		return fmt.Errorf("failed to insert invitation: %w", err)
	}
	return nil
}

// FindPending はIDとメールアドレスが一致する承諾待ちの招待を取得する。
func (r *PostgresInvitationRepo) FindPending(ctx context.Context, id int64, email string) (*model.Invitation, error) {
	inv := &model.Invitation{}
	err := r.db.GetContext(ctx, inv,
		`SELECT id, team_id, email, role, invited_by, invited_at, status
		 FROM invitations
		 WHERE id = $1 AND lower(email) = lower($2) AND status = 'pending'`,
		id, email,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find invitation: %w", err)
	}
	return inv, nil
}

// HasPending はチームとメールアドレスに対する承諾待ちの招待が存在するかを返す。
func (r *PostgresInvitationRepo) HasPending(ctx context.Context, teamID int64, email string) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists,
		`SELECT EXISTS (
			SELECT 1 FROM invitations WHERE team_id = $1 AND lower(email) = lower($2) AND status = 'pending'
		)`,
		teamID, email,
	)
	if err != nil {
		return false, fmt.Errorf("failed to check pending invitation: %w", err)
	}
	return exists, nil
}

// Accept は承諾待ちの招待を承諾済みにする。
// WHERE句で現在の状態を条件にするため、同じ招待を2回承諾しても2回目は遷移しない。
func (r *PostgresInvitationRepo) Accept(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`UPDATE invitations SET status = 'accepted' WHERE id = $1 AND status = 'pending'`,
		id,
	)
	if err != nil {
		return false, fmt.Errorf("failed to accept invitation: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected == 1, nil
}

// compile-time interface check
var _ InvitationRepository = (*PostgresInvitationRepo)(nil)
