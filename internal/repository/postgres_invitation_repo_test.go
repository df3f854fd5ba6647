package repository

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"

	"github.com/hitoshi/mjeti360/internal/model"
)

func TestPostgresInvitationRepo_Create_Pending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresInvitationRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO invitations")).
		WithArgs(int64(8), "bob@example.com", "member", int64(4)).
		WillReturnRows(sqlmock.NewRows([]string{"id", "invited_at", "status"}).AddRow(20, now, "pending"))

	inv := &model.Invitation{TeamID: 8, Email: "bob@example.com", Role: model.TeamRoleMember, InvitedBy: 4}
	if err := repo.Create(context.Background(), inv); err != nil {
		t.Fatalf("Create() error = %v", err)
	}
	if inv.ID != 20 {
		t.Errorf("ID = %d, want 20", inv.ID)
	}
	if inv.Status != model.InvitationPending {
		t.Errorf("Status = %q, want %q", inv.Status, model.InvitationPending)
	}
}

func TestPostgresInvitationRepo_Accept_OnlyOnce(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresInvitationRepo(db)

	acceptQuery := regexp.QuoteMeta("UPDATE invitations SET status = 'accepted' WHERE id = $1 AND status = 'pending'")
	mock.ExpectExec(acceptQuery).WithArgs(int64(20)).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(acceptQuery).WithArgs(int64(20)).WillReturnResult(sqlmock.NewResult(0, 0))

	first, err := repo.Accept(context.Background(), 20)
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if !first {
		t.Error("first Accept() = false, want true")
	}

	second, err := repo.Accept(context.Background(), 20)
	if err != nil {
		t.Fatalf("Accept() error = %v", err)
	}
	if second {
		t.Error("second Accept() = true, want false")
	}
}

func TestPostgresInvitationRepo_FindPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresInvitationRepo(db)
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta("WHERE id = $1 AND lower(email) = lower($2) AND status = 'pending'")).
		WithArgs(int64(20), "bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"id", "team_id", "email", "role", "invited_by", "invited_at", "status"}).
			AddRow(20, 8, "bob@example.com", "member", 4, now, "pending"))

	inv, err := repo.FindPending(context.Background(), 20, "bob@example.com")
	if err != nil {
		t.Fatalf("FindPending() error = %v", err)
	}
	if inv == nil || inv.TeamID != 8 {
		t.Fatalf("FindPending() = %+v, want team 8", inv)
	}
}

func TestPostgresInvitationRepo_HasPending(t *testing.T) {
	db, mock := newMockDB(t)
	repo := NewPostgresInvitationRepo(db)

	mock.ExpectQuery(regexp.QuoteMeta("FROM invitations WHERE team_id = $1")).
		WithArgs(int64(8), "bob@example.com").
		WillReturnRows(sqlmock.NewRows([]string{"exists"}).AddRow(false))

	has, err := repo.HasPending(context.Background(), 8, "bob@example.com")
	if err != nil {
		t.Fatalf("HasPending() error = %v", err)
	}
	if has {
		t.Error("HasPending() = true, want false")
	}
}
