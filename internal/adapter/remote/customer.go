package remote

import (
	"strings"
	"time"

	"github.com/hitoshi/scalaya/internal/apiclient"
	"github.com/hitoshi/scalaya/internal/model"
)

// Customer はバックエンドAPIの顧客リソース。
type Customer struct {
	IRI       string       `json:"@id,omitempty"`
	Type      string       `json:"@type,omitempty"`
	ID        apiclient.ID `json:"id,omitempty"`
	Email     string       `json:"email"`
	Name      string       `json:"name,omitempty"`
	CreatedAt string       `json:"createdAt,omitempty"`
}

// MapCustomerToUser は顧客リソースをドメインのユーザーへ変換する。
// ID は数値IDを優先し、無ければIRIを使う。名前が無い場合はメールアドレスのローカル部を使う。
func MapCustomerToUser(c Customer) model.User {
	id := string(c.ID)
	if id == "" {
		id = c.IRI
	}

	name := c.Name
	if name == "" {
		name, _, _ = strings.Cut(c.Email, "@")
	}

	u := model.User{
		ID:    id,
		Name:  name,
		Email: c.Email,
	}
	if c.CreatedAt != "" {
		if t, err := time.Parse(time.RFC3339, c.CreatedAt); err == nil {
			u.CreatedAt = &t
		}
	}
	return u
}
