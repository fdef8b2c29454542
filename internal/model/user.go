// Package model はドメインモデルを定義する。
package model

import "time"

// User はストアフロントの利用者を表す。
// パスワードはこの型に含めない。資格情報は各アダプタが書き込み専用で保持する。
type User struct {
	ID        string     `json:"id"`
	Name      string     `json:"name"`
	Email     string     `json:"email"`
	Image     *string    `json:"image,omitempty"`
	CreatedAt *time.Time `json:"createdAt,omitempty"`
}

// NewUser はユーザー作成時の入力を表す。IDと作成日時はアダプタが付与する。
type NewUser struct {
	Name  string  `json:"name"`
	Email string  `json:"email"`
	Image *string `json:"image,omitempty"`
}

// UserPatch はユーザー更新時の部分入力を表す。nilのフィールドは変更しない。
type UserPatch struct {
	Name  *string `json:"name,omitempty"`
	Email *string `json:"email,omitempty"`
}

// Empty は変更対象のフィールドが1つもない場合にtrueを返す。
func (p UserPatch) Empty() bool {
	return p.Name == nil && p.Email == nil
}

// LoginCredentials はログイン時の資格情報を表す。
type LoginCredentials struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterCredentials はサインアップフォームの入力を表す。
type RegisterCredentials struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
	AcceptTerms     bool   `json:"acceptTerms"`
}

// CustomerRegistrationData は購入者登録フォームの入力を表す。
// Phone は任意で、空文字列は未入力を意味する。
type CustomerRegistrationData struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

// SellerRegistrationData は出品者登録フォームの入力を表す。
type SellerRegistrationData struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	BusinessName string `json:"businessName"`
	Phone        string `json:"phone,omitempty"`
}

// Session はUIへ公開するログインセッションを表す。
// Expires はRFC3339形式の有効期限。AccessToken はリモートバックエンドのベアラートークン。
type Session struct {
	User        User   `json:"user"`
	Expires     string `json:"expires"`
	AccessToken string `json:"accessToken,omitempty"`
}

// AuthResult は認証操作の結果を表す。
type AuthResult struct {
	Success bool   `json:"success"`
	User    *User  `json:"user,omitempty"`
	Error   string `json:"error,omitempty"`
}
