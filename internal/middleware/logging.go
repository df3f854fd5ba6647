package middleware

import (
	"context"
	"log/slog"
	"net/http"
	"time"
)

// statusRecorder はhttp.ResponseWriterをラップし、ステータスコードを記録する。
type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

// WriteHeader はステータスコードを記録してから委譲する。
func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.written {
		sr.statusCode = code
		sr.written = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

// Write はデータを書き込む。WriteHeaderが未呼び出しの場合は200を記録する。
func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.written {
		sr.statusCode = http.StatusOK
		sr.written = true
	}
	return sr.ResponseWriter.Write(b)
}

// Unwrap はhttp.ResponseControllerのために元のResponseWriterを返す。
func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// NewLoggingMiddleware はリクエストのJSON構造化ログを出力するミドルウェアを返す。
// ログにはmethod、path、status、duration_ms、user_id（セッションが検証済みの場合）を含む。
// ゲートキーパーより外側に配置するため、ユーザーIDは下流で注入された値を共有の箱から読み取る。
func NewLoggingMiddleware(logger *slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			rec := &statusRecorder{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}
			box := &userIDBox{}
			r = r.WithContext(contextWithUserIDBox(r.Context(), box))

			next.ServeHTTP(rec, r)

			duration := time.Since(start)
			durationMs := float64(duration.Nanoseconds()) / float64(time.Millisecond)

			args := []any{
				slog.String("method", r.Method),
				slog.String("path", r.URL.Path),
				slog.Int("status", rec.statusCode),
				slog.Float64("duration_ms", durationMs),
			}

			if box.userID != 0 {
				args = append(args, slog.Int64("user_id", box.userID))
			} else if userID, ok := SessionUserIDFromContext(r.Context()); ok {
				args = append(args, slog.Int64("user_id", userID))
			}

			level := slog.LevelInfo
			if rec.statusCode >= 500 {
				level = slog.LevelError
			} else if rec.statusCode >= 400 {
				level = slog.LevelWarn
			}

			logger.Log(r.Context(), level, "http_request", args...)
		})
	}
}

// userIDBox は下流のミドルウェアが検証したユーザーIDをロギングミドルウェアへ渡す。
type userIDBox struct {
	userID int64
}

var userIDBoxContextKey = contextKey("user_id_box")

func contextWithUserIDBox(ctx context.Context, box *userIDBox) context.Context {
	return context.WithValue(ctx, userIDBoxContextKey, box)
}

// recordUserID はロギングミドルウェアの箱にユーザーIDを記録する。箱がなければ何もしない。
func recordUserID(ctx context.Context, userID int64) {
	if box, ok := ctx.Value(userIDBoxContextKey).(*userIDBox); ok {
		box.userID = userID
	}
}
