package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/hitoshi/mjeti360/internal/model"
)

const vehicleColumns = `id, team_id, brand, model, year, kilometers, plate, registration_exp, engine,
	fuel_type, gearbox, seats, notes, created_at, updated_at`

// PostgresVehicleRepo はPostgreSQLを使用した車両リポジトリ。
type PostgresVehicleRepo struct {
	db *sqlx.DB
}

// NewPostgresVehicleRepo はPostgresVehicleRepoを生成する。
func NewPostgresVehicleRepo(db *sqlx.DB) *PostgresVehicleRepo {
	return &PostgresVehicleRepo{db: db}
}

// ListByTeam はチームの車両一覧を登録順に返す。
func (r *PostgresVehicleRepo) ListByTeam(ctx context.Context, teamID int64) ([]model.Vehicle, error) {
	vehicles := []model.Vehicle{}
	err := r.db.SelectContext(ctx, &vehicles,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE team_id = $1 ORDER BY id`,
		teamID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list vehicles: %w", err)
	}
	return vehicles, nil
}

// FindByID はチーム内の車両を取得する。
func (r *PostgresVehicleRepo) FindByID(ctx context.Context, id, teamID int64) (*model.Vehicle, error) {
	v := &model.Vehicle{}
	err := r.db.GetContext(ctx, v,
		`SELECT `+vehicleColumns+` FROM vehicles WHERE id = $1 AND team_id = $2`,
		id, teamID,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find vehicle: %w", err)
	}
	return v, nil
}

// Create は車両を登録する。
func (r *PostgresVehicleRepo) Create(ctx context.Context, v *model.Vehicle) error {
	query, args, err := r.db.BindNamed(
		`INSERT INTO vehicles (team_id, brand, model, year, kilometers, plate, registration_exp, engine,
			fuel_type, gearbox, seats, notes)
		 VALUES (:team_id, :brand, :model, :year, :kilometers, :plate, :registration_exp, :engine,
			:fuel_type, :gearbox, :seats, :notes)
		 RETURNING id, created_at, updated_at`,
		v,
	)
	if err != nil {
		return fmt.Errorf("failed to bind vehicle insert: %w", err)
	}
	if err := r.db.QueryRowxContext(ctx, query, args...).Scan(&v.ID, &v.CreatedAt, &v.UpdatedAt); err != nil {
		return fmt.Errorf("failed to insert vehicle: %w", err)
	}
	return nil
}

// Update はチーム内の車両を更新する。
func (r *PostgresVehicleRepo) Update(ctx context.Context, v *model.Vehicle) (bool, error) {
	result, err := r.db.NamedExecContext(ctx,
		`UPDATE vehicles SET brand = :brand, model = :model, year = :year, kilometers = :kilometers,
			plate = :plate, registration_exp = :registration_exp, engine = :engine, fuel_type = :fuel_type,
			gearbox = :gearbox, seats = :seats, notes = :notes, updated_at = now()
		 WHERE id = :id AND team_id = :team_id`,
		v,
	)
	if err != nil {
		return false, fmt.Errorf("failed to update vehicle: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// Delete はチーム内の車両を削除する。
func (r *PostgresVehicleRepo) Delete(ctx context.Context, id, teamID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM vehicles WHERE id = $1 AND team_id = $2`,
		id, teamID,
	)
	if err != nil {
		return false, fmt.Errorf("failed to delete vehicle: %w", err)
	}
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return rowsAffected > 0, nil
}

// compile-time interface check
var _ VehicleRepository = (*PostgresVehicleRepo)(nil)
