package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/mjeti360/internal/model"
)

// PostgresPasswordResetRepo はPostgreSQLを使用したパスワード再設定トークンリポジトリ。
type PostgresPasswordResetRepo struct {
	db *sqlx.DB
}

// NewPostgresPasswordResetRepo はPostgresPasswordResetRepoを生成する。
func NewPostgresPasswordResetRepo(db *sqlx.DB) *PostgresPasswordResetRepo {
	return &PostgresPasswordResetRepo{db: db}
}

// Create はトークンを保存する。
func (r *PostgresPasswordResetRepo) Create(ctx context.Context, token *model.PasswordResetToken) error {
	_, err := r.db.NamedExecContext(ctx,
		`INSERT INTO password_reset_tokens (id, user_id, token_hash, expires_at)
		 VALUES (:id, :user_id, :token_hash, :expires_at)`,
		token,
	)
	if err != nil {
		return fmt.Errorf("failed to insert password reset token: %w", err)
	}
	return nil
}

// FindByHash はトークンハッシュで検索する。
func (r *PostgresPasswordResetRepo) FindByHash(ctx context.Context, tokenHash string) (*model.PasswordResetToken, error) {
	token := &model.PasswordResetToken{}
	err := r.db.GetContext(ctx, token,
		`SELECT id, user_id, token_hash, expires_at, created_at FROM password_reset_tokens WHERE token_hash = $1`,
		tokenHash,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find password reset token: %w", err)
	}
	return token, nil
}

// DeleteByID はトークンを削除する。
func (r *PostgresPasswordResetRepo) DeleteByID(ctx context.Context, id string) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete password reset token: %w", err)
	}
	return nil
}

// DeleteByUserID はユーザーの全トークンを削除する。
func (r *PostgresPasswordResetRepo) DeleteByUserID(ctx context.Context, userID int64) error {
	_, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE user_id = $1`, userID)
	if err != nil {
		return fmt.Errorf("failed to delete password reset tokens: %w", err)
	}
	return nil
}

// DeleteExpired は指定時刻より前に失効したトークンを削除する。
func (r *PostgresPasswordResetRepo) DeleteExpired(ctx context.Context, before time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM password_reset_tokens WHERE expires_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired tokens: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n, nil
}

// compile-time interface check
var _ PasswordResetRepository = (*PostgresPasswordResetRepo)(nil)
