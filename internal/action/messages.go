package action

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/go-playground/form/v4"
	"github.com/go-playground/validator/v10"
)

// MessageProvider は入力構造体ごとの検証メッセージを提供する。
// キーは "Goのフィールド名.タグ"（例: "Name.required"）。
// 型変換に失敗した場合のタグは "decode"（例: "MemberID.decode"）。
type MessageProvider interface {
	Messages() map[string]string
}

// violationMessage は検証エラーの表示用メッセージを返す。
func violationMessage(input any, fe validator.FieldError) string {
	if mp, ok := input.(MessageProvider); ok {
		if msg, ok := mp.Messages()[fe.StructField()+"."+fe.Tag()]; ok {
			return msg
		}
	}

	field := fe.Field()
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s is required", field)
	case "email":
		return "Invalid email address"
	case "min":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at least %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "max":
		if fe.Kind() == reflect.String {
			return fmt.Sprintf("%s must be at most %s characters", field, fe.Param())
		}
		return fmt.Sprintf("%s must be at most %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "numeric", "number":
		return fmt.Sprintf("%s must be a number", field)
	case "gte":
		return fmt.Sprintf("%s must be greater than or equal to %s", field, fe.Param())
	case "lte":
		return fmt.Sprintf("%s must be less than or equal to %s", field, fe.Param())
	default:
		return fmt.Sprintf("%s is invalid", field)
	}
}

// decodeMessage は型変換エラーの表示用メッセージを返す。
// 複数のフィールドが失敗した場合は構造体の宣言順で最初のフィールドを使う。
func decodeMessage(input any, err error) string {
	var derrs form.DecodeErrors
	if !errors.As(err, &derrs) || len(derrs) == 0 {
		return "Invalid input."
	}

	t := reflect.TypeOf(input)
	for t != nil && t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	if t != nil && t.Kind() == reflect.Struct {
		for i := 0; i < t.NumField(); i++ {
			f := t.Field(i)
			name := formFieldName(f)
			if name == "" {
				name = f.Name
			}
			if _, failed := derrs[name]; !failed {
				continue
			}
			if mp, ok := input.(MessageProvider); ok {
				if msg, ok := mp.Messages()[f.Name+".decode"]; ok {
					return msg
				}
			}
			return fmt.Sprintf("%s is invalid", name)
		}
	}

	names := make([]string, 0, len(derrs))
	for name := range derrs {
		names = append(names, name)
	}
	slices.Sort(names)
	return fmt.Sprintf("%s is invalid", names[0])
}

// formFieldName はformタグの名前を返す。タグがない・"-"の場合は空文字。
func formFieldName(f reflect.StructField) string {
	name := strings.SplitN(f.Tag.Get("form"), ",", 2)[0]
	if name == "-" {
		return ""
	}
	return name
}
