// Package auth はセッショントークンの署名・検証、セッションCookie、認証ユーザーの解決を提供する。
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidSignature はトークンの形式・署名・アルゴリズム・必須クレームのいずれかが不正な場合に返す。
	ErrInvalidSignature = errors.New("auth: invalid session token")
	// ErrExpired はトークンの有効期限が検証時刻以前の場合に返す。
	ErrExpired = errors.New("auth: session token expired")
)

// SessionPayload はセッショントークンに埋め込む内容。
type SessionPayload struct {
	UserID    int64
	SessionID string
	ExpiresAt time.Time
}

// sessionClaims はトークンのJWTクレーム。SessionIDはjtiとして格納する。
type sessionClaims struct {
	UserID int64 `json:"uid"`
	jwt.RegisteredClaims
}

// TokenCodec はHS256でセッショントークンを署名・検証する。
type TokenCodec struct {
	secret []byte
	now    func() time.Time
}

// NewTokenCodec はTokenCodecを生成する。nowがnilの場合はtime.Nowを使用する。
func NewTokenCodec(secret []byte, now func() time.Time) *TokenCodec {
	if now == nil {
		now = time.Now
	}
	return &TokenCodec{secret: secret, now: now}
}

// Sign はペイロードを署名したトークン文字列を返す。
// 有効期限は秒単位に切り捨てられる。
func (c *TokenCodec) Sign(p SessionPayload) (string, error) {
	if p.UserID == 0 || p.SessionID == "" {
		return "", fmt.Errorf("auth: incomplete session payload")
	}
	claims := sessionClaims{
		UserID: p.UserID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        p.SessionID,
			ExpiresAt: jwt.NewNumericDate(p.ExpiresAt),
			IssuedAt:  jwt.NewNumericDate(c.now()),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign session token: %w", err)
	}
	return signed, nil
}

// Verify はトークンを検証しペイロードを返す。
// 有効期限切れはErrExpired、それ以外の不正はErrInvalidSignatureを返す。
func (c *TokenCodec) Verify(token string) (SessionPayload, error) {
	parser := jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	)

	claims := &sessionClaims{}
	_, err := parser.ParseWithClaims(token, claims, func(*jwt.Token) (interface{}, error) {
		return c.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return SessionPayload{}, ErrExpired
		}
		return SessionPayload{}, ErrInvalidSignature
	}
	if claims.UserID == 0 || claims.ID == "" {
		return SessionPayload{}, ErrInvalidSignature
	}

	return SessionPayload{
		UserID:    claims.UserID,
		SessionID: claims.ID,
		ExpiresAt: claims.ExpiresAt.Time,
	}, nil
}

// PeekSessionID は署名を検証せずにトークンのセッションIDを読み出す。
// 認証判定には使わず、キャッシュエントリの照合にのみ使用する。
func (c *TokenCodec) PeekSessionID(token string) (string, bool) {
	claims := &sessionClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return "", false
	}
	return claims.ID, claims.ID != ""
}
