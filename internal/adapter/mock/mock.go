// Package mock はインメモリのユーザーストアで port.Backend を実装する。
// 開発やテストでバックエンドAPIなしに認証フローを動かすために使う。
package mock

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/scalaya/internal/model"
	"github.com/hitoshi/scalaya/internal/port"
)

// デモユーザー
const (
	DemoUserID       = "1"
	DemoUserName     = "Demo User"
	DemoUserEmail    = "demo@example.com"
	DemoUserPassword = "Demo1234"
)

// Adapter はメールアドレスをキーとするインメモリのユーザーストア。
// メールアドレスの照合は大文字小文字を区別する。
// 資格情報はユーザーとは別にbcryptハッシュで保持する。
type Adapter struct {
	mu          sync.RWMutex
	users       map[string]*model.User // email -> user
	credentials map[string][]byte      // user id -> bcrypt hash
	hashCost    int
	now         func() time.Time
	newID       func() string
}

var _ port.Backend = (*Adapter)(nil)

// Option は Adapter の設定を変更する。
type Option func(*Adapter)

// WithHashCost はbcryptのコストを設定する。
func WithHashCost(cost int) Option {
	return func(a *Adapter) { a.hashCost = cost }
}

// WithClock は作成日時に使う時刻関数を設定する。
func WithClock(now func() time.Time) Option {
	return func(a *Adapter) { a.now = now }
}

// New はデモユーザーを登録済みの Adapter を生成する。
func New(opts ...Option) (*Adapter, error) {
	a := &Adapter{
		users:       make(map[string]*model.User),
		credentials: make(map[string][]byte),
		hashCost:    bcrypt.MinCost,
		now:         time.Now,
		newID:       func() string { return uuid.New().String() },
	}
	for _, opt := range opts {
		opt(a)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(DemoUserPassword), a.hashCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash demo password: %w", err)
	}
	created := a.now()
	a.users[DemoUserEmail] = &model.User{
		ID:        DemoUserID,
		Name:      DemoUserName,
		Email:     DemoUserEmail,
		CreatedAt: &created,
	}
	a.credentials[DemoUserID] = hash
	return a, nil
}

// Authenticate はメールアドレスとパスワードを照合する。
// 未登録・資格情報なし・パスワード不一致のいずれも nil, nil を返す。
func (a *Adapter) Authenticate(_ context.Context, creds model.LoginCredentials) (*model.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	u, ok := a.users[creds.Email]
	if !ok {
		return nil, nil
	}
	hash, ok := a.credentials[u.ID]
	if !ok {
		return nil, nil
	}
	if err := bcrypt.CompareHashAndPassword(hash, []byte(creds.Password)); err != nil {
		return nil, nil
	}
	return clone(u), nil
}

// Register はユーザーと資格情報を登録する。
func (a *Adapter) Register(_ context.Context, creds model.RegisterCredentials) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), a.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %w", model.ErrRegistrationFailed, err)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.users[creds.Email]; exists {
		return nil, model.ErrEmailAlreadyExists
	}
	u := a.insertLocked(model.NewUser{Name: creds.Name, Email: creds.Email})
	a.credentials[u.ID] = hash
	return clone(u), nil
}

// FindUserByEmail は FindByEmail と同じ。
func (a *Adapter) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return a.FindByEmail(ctx, email)
}

// FindByEmail はメールアドレスでユーザーを検索する。
func (a *Adapter) FindByEmail(_ context.Context, email string) (*model.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if u, ok := a.users[email]; ok {
		return clone(u), nil
	}
	return nil, nil
}

// FindByID はIDでユーザーを検索する。
func (a *Adapter) FindByID(_ context.Context, id string) (*model.User, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if u := a.findByIDLocked(id); u != nil {
		return clone(u), nil
	}
	return nil, nil
}

// Create は資格情報なしでユーザーを作成する。作成されたユーザーはログインできない。
func (a *Adapter) Create(_ context.Context, nu model.NewUser) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.users[nu.Email]; exists {
		return nil, model.ErrEmailAlreadyExists
	}
	return clone(a.insertLocked(nu)), nil
}

// Update は名前とメールアドレスを更新する。
// メールアドレスが変わった場合はストアのキーも付け替える。
func (a *Adapter) Update(_ context.Context, id string, patch model.UserPatch) (*model.User, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	u := a.findByIDLocked(id)
	if u == nil {
		return nil, model.ErrUserNotFound
	}

	if patch.Email != nil && *patch.Email != u.Email {
		if _, taken := a.users[*patch.Email]; taken {
			return nil, model.ErrEmailAlreadyExists
		}
		delete(a.users, u.Email)
		u.Email = *patch.Email
		a.users[u.Email] = u
	}
	if patch.Name != nil {
		u.Name = *patch.Name
	}
	return clone(u), nil
}

func (a *Adapter) insertLocked(nu model.NewUser) *model.User {
	created := a.now()
	u := &model.User{
		ID:        a.newID(),
		Name:      nu.Name,
		Email:     nu.Email,
		Image:     nu.Image,
		CreatedAt: &created,
	}
	a.users[u.Email] = u
	return u
}

func (a *Adapter) findByIDLocked(id string) *model.User {
	for _, u := range a.users {
		if u.ID == id {
			return u
		}
	}
	return nil
}

// clone は呼び出し元がストア内部の値を書き換えないようにコピーを返す。
func clone(u *model.User) *model.User {
	c := *u
	return &c
}
