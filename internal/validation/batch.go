package validation

import "github.com/hitoshi/scalaya/internal/model"

// FieldError はフィールド単位の検証エラーを表す。
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// FieldErrors は宣言順に並んだ検証エラーの一覧。
type FieldErrors []FieldError

// Map はフォーム表示用にフィールド名からメッセージへのマップへ変換する。
func (fe FieldErrors) Map() map[string]string {
	m := make(map[string]string, len(fe))
	for _, e := range fe {
		m[e.Field] = e.Message
	}
	return m
}

// Has は指定フィールドのエラーを含む場合にtrueを返す。
func (fe FieldErrors) Has(field string) bool {
	for _, e := range fe {
		if e.Field == field {
			return true
		}
	}
	return false
}

type fieldRule struct {
	field string
	check func() string
}

// collect は全ルールを実行し、違反したものだけを宣言順に返す。
// 全件妥当な場合は空スライスを返す。
func collect(rules []fieldRule) FieldErrors {
	errs := FieldErrors{}
	for _, r := range rules {
		if msg := r.check(); msg != "" {
			errs = append(errs, FieldError{Field: r.field, Message: msg})
		}
	}
	return errs
}

// ValidateCustomerRegistration は購入者登録フォームの全フィールドを検証する。
// 順序: email, password, firstName, lastName, phone
func ValidateCustomerRegistration(data model.CustomerRegistrationData) FieldErrors {
	return collect([]fieldRule{
		{"email", func() string { return ValidateEmail(data.Email) }},
		{"password", func() string { return ValidatePassword(data.Password) }},
		{"firstName", func() string { return ValidateFirstName(data.FirstName) }},
		{"lastName", func() string { return ValidateLastName(data.LastName) }},
		{"phone", func() string { return ValidatePhone(data.Phone) }},
	})
}

// ValidateSellerRegistration は出品者登録フォームの全フィールドを検証する。
// 順序: email, password, firstName, lastName, businessName, phone
func ValidateSellerRegistration(data model.SellerRegistrationData) FieldErrors {
	return collect([]fieldRule{
		{"email", func() string { return ValidateEmail(data.Email) }},
		{"password", func() string { return ValidatePassword(data.Password) }},
		{"firstName", func() string { return ValidateFirstName(data.FirstName) }},
		{"lastName", func() string { return ValidateLastName(data.LastName) }},
		{"businessName", func() string { return ValidateBusinessName(data.BusinessName) }},
		{"phone", func() string { return ValidatePhone(data.Phone) }},
	})
}
