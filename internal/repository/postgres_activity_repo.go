package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/mjeti360/internal/model"
)

const activityViewSelect = `SELECT a.id, a.team_id, a.user_id, a.action, a.timestamp, a.ip_address,
	u.name AS user_name, u.email AS user_email
	FROM activity_logs a
	LEFT JOIN users u ON u.id = a.user_id`

// PostgresActivityRepo はPostgreSQLを使用した監査ログリポジトリ。
type PostgresActivityRepo struct {
	db *sqlx.DB
}

// NewPostgresActivityRepo はPostgresActivityRepoを生成する。
func NewPostgresActivityRepo(db *sqlx.DB) *PostgresActivityRepo {
	return &PostgresActivityRepo{db: db}
}

// Insert は監査ログを1件追加する。
func (r *PostgresActivityRepo) Insert(ctx context.Context, entry *model.ActivityLog) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO activity_logs (team_id, user_id, action, ip_address)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, timestamp`,
		entry.TeamID, entry.UserID, entry.Action, entry.IPAddress,
	).Scan(&entry.ID, &entry.Timestamp)
	if err != nil {
		return fmt.Errorf("failed to insert activity log: %w", err)
	}
	return nil
}

// ListByUser はユーザーの操作ログを新しい順に返す。
func (r *PostgresActivityRepo) ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.ActivityLogView, int, error) {
	return r.list(ctx, "a.user_id = $1", userID, limit, offset)
}

// ListByTeam はチーム全体の操作ログを新しい順に返す。
func (r *PostgresActivityRepo) ListByTeam(ctx context.Context, teamID int64, limit, offset int) ([]model.ActivityLogView, int, error) {
	return r.list(ctx, "a.team_id = $1", teamID, limit, offset)
}

func (r *PostgresActivityRepo) list(ctx context.Context, where string, id int64, limit, offset int) ([]model.ActivityLogView, int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total,
		`SELECT count(*) FROM activity_logs a WHERE `+where, id,
	); err != nil {
		return nil, 0, fmt.Errorf("failed to count activity logs: %w", err)
	}

	logs := []model.ActivityLogView{}
	err := r.db.SelectContext(ctx, &logs,
		activityViewSelect+` WHERE `+where+` ORDER BY a.timestamp DESC, a.id DESC LIMIT $2 OFFSET $3`,
		id, limit, offset,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list activity logs: %w", err)
	}
	return logs, total, nil
}

// compile-time interface check
var _ ActivityRepository = (*PostgresActivityRepo)(nil)
