package model

import "time"

// InvitationStatus は招待の状態を表す。
// pending → accepted の一方向にのみ遷移する。
type InvitationStatus string

const (
	// InvitationPending は承諾待ちの招待。
	InvitationPending InvitationStatus = "pending"
	// InvitationAccepted は承諾済みの招待。
	InvitationAccepted InvitationStatus = "accepted"
)

// Invitation はチームへの招待を表す。
type Invitation struct {
	ID        int64            `db:"id"`
	TeamID    int64            `db:"team_id"`
	Email     string           `db:"email"`
	Role      TeamRole         `db:"role"`
	InvitedBy int64            `db:"invited_by"`
	InvitedAt time.Time        `db:"invited_at"`
	Status    InvitationStatus `db:"status"`
}
