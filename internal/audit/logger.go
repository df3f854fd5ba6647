// Package audit は業務アクションの監査ログの記録と参照を提供する。
package audit

import (
	"context"
	"errors"
	"fmt"

	"github.com/hitoshi/mjeti360/internal/model"
)

const (
	// DefaultPageSize は一覧のデフォルト件数。
	DefaultPageSize = 10
	// MaxPageSize は一覧の最大件数。
	MaxPageSize = 100
)

// ErrInvalidKind はゼロ値の操作種別が渡された場合に返す。呼び出し側のバグを表す。
var ErrInvalidKind = errors.New("audit: invalid activity type")

// Store は監査ログの永続化先。repository.ActivityRepositoryが実装する。
type Store interface {
	Insert(ctx context.Context, entry *model.ActivityLog) error
	ListByUser(ctx context.Context, userID int64, limit, offset int) ([]model.ActivityLogView, int, error)
	ListByTeam(ctx context.Context, teamID int64, limit, offset int) ([]model.ActivityLogView, int, error)
}

// Metrics は記録した操作種別を集計する。
type Metrics interface {
	RecordAuditEntry(kind string)
}

// Logger は監査ログを追記する。
type Logger struct {
	store   Store
	metrics Metrics
}

// NewLogger はLoggerを生成する。metricsはnilでもよい。
func NewLogger(store Store, metrics Metrics) *Logger {
	return &Logger{store: store, metrics: metrics}
}

// Record は監査ログを1件追記する。
// teamIDがnilの場合（ユーザーがチームに所属していない）は何も書かずにnilを返す。
// 書き込み失敗はエラーとして返し、呼び出し側のアクションの失敗として扱う。
func (l *Logger) Record(ctx context.Context, teamID *int64, userID int64, kind model.ActivityType, ip string) error {
	if kind.IsZero() {
		return ErrInvalidKind
	}
	if teamID == nil {
		return nil
	}

	entry := &model.ActivityLog{
		TeamID: *teamID,
		UserID: &userID,
		Action: kind,
	}
	if ip != "" {
		entry.IPAddress = &ip
	}

	if err := l.store.Insert(ctx, entry); err != nil {
		return fmt.Errorf("failed to record %s: %w", kind, err)
	}
	if l.metrics != nil {
		l.metrics.RecordAuditEntry(kind.String())
	}
	return nil
}

// ListForUser はユーザーの操作ログを新しい順にページングして返す。
func (l *Logger) ListForUser(ctx context.Context, userID int64, page, limit int) (*model.ActivityPage, error) {
	page, limit = normalizePaging(page, limit)
	logs, total, err := l.store.ListByUser(ctx, userID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list user activity: %w", err)
	}
	return newPage(logs, total, page, limit), nil
}

// ListForTeam はチーム全体の操作ログを新しい順にページングして返す。
func (l *Logger) ListForTeam(ctx context.Context, teamID int64, page, limit int) (*model.ActivityPage, error) {
	page, limit = normalizePaging(page, limit)
	logs, total, err := l.store.ListByTeam(ctx, teamID, limit, (page-1)*limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list team activity: %w", err)
	}
	return newPage(logs, total, page, limit), nil
}

// EmptyPage は件数0のページを返す。page・limitはListFor系と同じく正規化する。
func EmptyPage(page, limit int) *model.ActivityPage {
	page, limit = normalizePaging(page, limit)
	return newPage(nil, 0, page, limit)
}

func normalizePaging(page, limit int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = DefaultPageSize
	}
	if limit > MaxPageSize {
		limit = MaxPageSize
	}
	return page, limit
}

func newPage(logs []model.ActivityLogView, total, page, limit int) *model.ActivityPage {
	if logs == nil {
		logs = []model.ActivityLogView{}
	}
	return &model.ActivityPage{
		Logs:       logs,
		Total:      total,
		Page:       page,
		Limit:      limit,
		TotalPages: (total + limit - 1) / limit,
	}
}
