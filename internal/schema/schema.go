// Package schema はドメイン型の形式検証を行う。
// 検証は fail-fast で、違反が1件でもあれば呼び出し元の操作は中断される。
package schema

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ErrInvalid はスキーマ違反を表す。errors.Is で判定する。
var ErrInvalid = errors.New("schema validation failed")

// Issue は1件のスキーマ違反を表す。Path はJSON上のフィールド名。
type Issue struct {
	Path    string `json:"path"`
	Message string `json:"message"`
}

// Error は構造化されたスキーマ違反の一覧を保持する。
type Error struct {
	Issues []Issue
}

// Error はerrorインターフェースを実装する。
func (e *Error) Error() string {
	msgs := make([]string, 0, len(e.Issues))
	for _, is := range e.Issues {
		msgs = append(msgs, is.Message)
	}
	return strings.Join(msgs, ", ")
}

// Is は ErrInvalid との比較を可能にする。
func (e *Error) Is(target error) bool {
	return target == ErrInvalid
}

// HasPath は指定パスの違反を含む場合にtrueを返す。
func (e *Error) HasPath(path string) bool {
	for _, is := range e.Issues {
		if is.Path == path {
			return true
		}
	}
	return false
}

// First は最初の違反のメッセージを返す。
func (e *Error) First() string {
	if len(e.Issues) == 0 {
		return ""
	}
	return e.Issues[0].Message
}

// MaxPasswordBytes はパスワードの最大バイト長。
const MaxPasswordBytes = 72

var (
	validate = newValidator()

	digitPattern = regexp.MustCompile(`\d`)
	lowerPattern = regexp.MustCompile(`[a-z]`)
	upperPattern = regexp.MustCompile(`[A-Z]`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// エラーのフィールド名をJSONタグ名にそろえる
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})

	_ = v.RegisterValidation("password_complex", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		return digitPattern.MatchString(s) && lowerPattern.MatchString(s) && upperPattern.MatchString(s)
	})
	// bcrypt は72バイトを超える入力を扱えない
	_ = v.RegisterValidation("password_bytes", func(fl validator.FieldLevel) bool {
		return len(fl.Field().String()) <= MaxPasswordBytes
	})
	_ = v.RegisterValidation("accepted", func(fl validator.FieldLevel) bool {
		return fl.Field().Kind() == reflect.Bool && fl.Field().Bool()
	})
	return v
}

// check は構造体を検証し、違反をメッセージ表に従って Issue に変換する。
// 表にないタグは field の汎用メッセージにフォールバックする。
func check(payload any, messages map[string]string) error {
	err := validate.Struct(payload)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return &Error{Issues: []Issue{{Path: "", Message: err.Error()}}}
	}

	issues := make([]Issue, 0, len(verrs))
	for _, fe := range verrs {
		path := fe.Namespace()
		if i := strings.Index(path, "."); i >= 0 {
			path = path[i+1:]
		}
		msg, ok := messages[path+"."+fe.Tag()]
		if !ok {
			msg = "Invalid " + path
		}
		issues = append(issues, Issue{Path: path, Message: msg})
	}
	return &Error{Issues: issues}
}
