package security

import (
	"strings"
	"testing"
)

func TestTextSanitizer_StripsMarkup(t *testing.T) {
	sanitizer := NewTextSanitizer()

	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"プレーンテキストはそのまま", "Oil change due in March", "Oil change due in March"},
		{"前後の空白を除去", "  Acme Logistics \n", "Acme Logistics"},
		{"太字タグを除去", "<b>Fleet</b> A", "Fleet A"},
		{"scriptは中身ごと除去", `Van<script>alert("x")</script>`, "Van"},
		{"styleは中身ごと除去", "<style>body{}</style>Notes", "Notes"},
		{"イベント属性付き要素を除去", `<img src=x onerror="alert(1)">Truck`, "Truck"},
		{"リンクはテキストのみ残す", `<a href="javascript:alert(1)">click</a>`, "click"},
		{"アンパサンドは元の文字に戻す", "Tom & Jerry's", "Tom & Jerry's"},
		{"空文字列", "", ""},
		{"タグのみは空文字列", "<br><hr>", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sanitizer.Sanitize(tt.input); got != tt.want {
				t.Errorf("Sanitize(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

func TestTextSanitizer_XSSPayloads(t *testing.T) {
	sanitizer := NewTextSanitizer()

	payloads := []string{
		`<svg onload=alert(1)>`,
		`<iframe src="https://evil.example.com"></iframe>`,
		`<body onload=alert('XSS')>`,
		`<div style="background:url(javascript:alert(1))">x</div>`,
	}

	for _, p := range payloads {
		got := sanitizer.Sanitize(p)
		lower := strings.ToLower(got)
		for _, bad := range []string{"<svg", "<iframe", "onload", "<div", "javascript:"} {
			if strings.Contains(lower, bad) {
				t.Errorf("Sanitize(%q) = %q, should not contain %q", p, got, bad)
			}
		}
	}
}

func TestTextSanitizer_SanitizePtr(t *testing.T) {
	sanitizer := NewTextSanitizer()

	if got := sanitizer.SanitizePtr(nil); got != nil {
		t.Errorf("SanitizePtr(nil) = %q, want nil", *got)
	}

	empty := "<p> </p>"
	if got := sanitizer.SanitizePtr(&empty); got != nil {
		t.Errorf("SanitizePtr(%q) = %q, want nil", empty, *got)
	}

	note := "<em>Winter tyres</em>"
	got := sanitizer.SanitizePtr(&note)
	if got == nil || *got != "Winter tyres" {
		t.Errorf("SanitizePtr(%q) = %v, want %q", note, got, "Winter tyres")
	}
}
