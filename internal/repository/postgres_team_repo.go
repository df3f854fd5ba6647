package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/mjeti360/internal/model"
)

const teamColumns = `id, name, created_at, updated_at, stripe_customer_id, stripe_subscription_id,
	stripe_product_id, plan_name, subscription_status`

// PostgresTeamRepo はPostgreSQLを使用したチームリポジトリ。
type PostgresTeamRepo struct {
	db *sqlx.DB
}

// NewPostgresTeamRepo はPostgresTeamRepoを生成する。
func NewPostgresTeamRepo(db *sqlx.DB) *PostgresTeamRepo {
	return &PostgresTeamRepo{db: db}
}

// Create はチームを作成する。
func (r *PostgresTeamRepo) Create(ctx context.Context, team *model.Team) error {
	err := r.db.QueryRowxContext(ctx,
		`INSERT INTO teams (name) VALUES ($1) RETURNING id, created_at, updated_at`,
		team.Name,
	).Scan(&team.ID, &team.CreatedAt, &team.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to insert team: %w", err)
	}
	return nil
}

// FindByID は指定IDのチームを取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindByID(ctx context.Context, id int64) (*model.Team, error) {
	return r.findOne(ctx, `SELECT `+teamColumns+` FROM teams WHERE id = $1`, id)
}

// FindByStripeCustomerID はStripe顧客IDでチームを取得する。見つからない場合はnilを返す。
func (r *PostgresTeamRepo) FindByStripeCustomerID(ctx context.Context, customerID string) (*model.Team, error) {
	return r.findOne(ctx, `SELECT `+teamColumns+` FROM teams WHERE stripe_customer_id = $1`, customerID)
}

func (r *PostgresTeamRepo) findOne(ctx context.Context, query string, arg any) (*model.Team, error) {
	team := &model.Team{}
	err := r.db.GetContext(ctx, team, query, arg)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find team: %w", err)
	}
	return team, nil
}

// UpdateName はチーム名を更新する。
func (r *PostgresTeamRepo) UpdateName(ctx context.Context, id int64, name string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE teams SET name = $1, updated_at = now() WHERE id = $2`,
		name, id,
	)
	if err != nil {
		return fmt.Errorf("failed to update team name: %w", err)
	}
	return nil
}

// UpdateSubscription はチームの課金フィールドをスナップショットで上書きする。
func (r *PostgresTeamRepo) UpdateSubscription(ctx context.Context, teamID int64, s model.SubscriptionSnapshot) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE teams SET stripe_customer_id = $1, stripe_subscription_id = $2, stripe_product_id = $3,
			plan_name = $4, subscription_status = $5, updated_at = now()
		 WHERE id = $6`,
		s.CustomerID, s.SubscriptionID, s.ProductID, s.PlanName, s.Status, teamID,
	)
	if err != nil {
		return fmt.Errorf("failed to update team subscription: %w", err)
	}
	return nil
}

// compile-time interface check
var _ TeamRepository = (*PostgresTeamRepo)(nil)
