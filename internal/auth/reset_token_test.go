package auth

import "testing"

func TestNewResetToken(t *testing.T) {
	token, hash, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken() error = %v", err)
	}
	if len(token) != 64 {
		t.Errorf("len(token) = %d, want 64", len(token))
	}
	if hash == token {
		t.Error("hash equals plain token")
	}
	if HashResetToken(token) != hash {
		t.Error("HashResetToken(token) does not match returned hash")
	}

	other, _, err := NewResetToken()
	if err != nil {
		t.Fatalf("NewResetToken() error = %v", err)
	}
	if other == token {
		t.Error("two tokens are identical")
	}
}
