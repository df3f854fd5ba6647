// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"net"
	"net/http"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// sessionUserIDContextKey はゲートキーパーが検証したセッションのユーザーIDを格納するキー。
var sessionUserIDContextKey = contextKey("session_user_id")

// SessionUserIDFromContext はゲートキーパーが検証したセッションのユーザーIDを返す。
// ユーザーの存在確認は行っていないため、認可判定には使用しない。
func SessionUserIDFromContext(ctx context.Context) (int64, bool) {
	id, ok := ctx.Value(sessionUserIDContextKey).(int64)
	return id, ok && id != 0
}

// ContextWithSessionUserID はコンテキストにセッションのユーザーIDを注入する。
func ContextWithSessionUserID(ctx context.Context, userID int64) context.Context {
	recordUserID(ctx, userID)
	return context.WithValue(ctx, sessionUserIDContextKey, userID)
}

// ClientIP はリクエスト元のIPアドレスを返す。
// chiのRealIPミドルウェアの後に配置された場合はプロキシヘッダーの値が反映されている。
func ClientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
