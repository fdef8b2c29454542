package apiclient

import "encoding/json"

// Collection はJSON-LDのコレクションレスポンス。
// API Platform 3系の hydra:member 形式と 4系の member 形式の両方を受け付ける。
type Collection[T any] struct {
	Members    []T
	TotalItems int
}

// UnmarshalJSON は json.Unmarshaler を実装する。
func (c *Collection[T]) UnmarshalJSON(data []byte) error {
	var aux struct {
		HydraMember     []T  `json:"hydra:member"`
		Member          []T  `json:"member"`
		HydraTotalItems *int `json:"hydra:totalItems"`
		TotalItems      *int `json:"totalItems"`
	}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	c.Members = aux.HydraMember
	if c.Members == nil {
		c.Members = aux.Member
	}
	switch {
	case aux.HydraTotalItems != nil:
		c.TotalItems = *aux.HydraTotalItems
	case aux.TotalItems != nil:
		c.TotalItems = *aux.TotalItems
	default:
		c.TotalItems = len(c.Members)
	}
	return nil
}

// First は先頭の要素を返す。空の場合は false。
func (c *Collection[T]) First() (T, bool) {
	var zero T
	if len(c.Members) == 0 {
		return zero, false
	}
	return c.Members[0], true
}

// ID は数値・文字列のどちらで送られても受け付ける識別子。
type ID string

// UnmarshalJSON は json.Unmarshaler を実装する。
func (id *ID) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		*id = ""
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		*id = ID(n.String())
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*id = ID(s)
	return nil
}
