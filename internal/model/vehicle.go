package model

import "time"

// Vehicle はチームが管理する車両を表す。
type Vehicle struct {
	ID              int64      `db:"id"`
	TeamID          int64      `db:"team_id"`
	Brand           string     `db:"brand"`
	Model           string     `db:"model"`
	Year            int        `db:"year"`
	Kilometers      int        `db:"kilometers"`
	Plate           string     `db:"plate"`
	RegistrationExp *time.Time `db:"registration_exp"`
	Engine          *int       `db:"engine"`
	FuelType        *string    `db:"fuel_type"`
	Gearbox         *string    `db:"gearbox"`
	Seats           *int       `db:"seats"`
	Notes           *string    `db:"notes"`
	CreatedAt       time.Time  `db:"created_at"`
	UpdatedAt       time.Time  `db:"updated_at"`
}
