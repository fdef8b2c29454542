// Package postgres はPostgreSQLに保存する port.Backend の実装を提供する。
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"

	"github.com/hitoshi/scalaya/internal/model"
	"github.com/hitoshi/scalaya/internal/port"
)

// uniqueViolation はPostgreSQLの一意制約違反のエラーコード。
const uniqueViolation = "23505"

// Adapter はPostgreSQLを使用したユーザーストア。状態を持たないため共有してよい。
type Adapter struct {
	db       *sql.DB
	hashCost int
}

var _ port.Backend = (*Adapter)(nil)

// New は Adapter を生成する。
func New(db *sql.DB) *Adapter {
	return &Adapter{db: db, hashCost: bcrypt.DefaultCost}
}

const selectUser = `SELECT id, name, email, image, created_at FROM users`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*model.User, error) {
	var (
		u       model.User
		image   sql.NullString
		created time.Time
	)
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &image, &created); err != nil {
		return nil, err
	}
	if image.Valid {
		u.Image = &image.String
	}
	u.CreatedAt = &created
	return &u, nil
}

// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
func (a *Adapter) FindByID(ctx context.Context, id string) (*model.User, error) {
	// UUID形式でないIDは存在しないものとして扱う
	if _, err := uuid.Parse(id); err != nil {
		return nil, nil
	}

	u, err := scanUser(a.db.QueryRowContext(ctx, selectUser+` WHERE id = $1`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by ID: %w", err)
	}
	return u, nil
}

// FindByEmail はメールアドレスでユーザーを取得する。照合は大文字小文字を区別する。
func (a *Adapter) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	u, err := scanUser(a.db.QueryRowContext(ctx, selectUser+` WHERE email = $1`, email))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find user by email: %w", err)
	}
	return u, nil
}

// FindUserByEmail は FindByEmail と同じ。
func (a *Adapter) FindUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return a.FindByEmail(ctx, email)
}

// Authenticate は保存済みのパスワードハッシュと照合する。
// 資格情報を持たないユーザーやパスワード不一致は nil, nil を返す。
func (a *Adapter) Authenticate(ctx context.Context, creds model.LoginCredentials) (*model.User, error) {
	var (
		u       model.User
		image   sql.NullString
		created time.Time
		hash    string
	)
	err := a.db.QueryRowContext(ctx,
		`SELECT u.id, u.name, u.email, u.image, u.created_at, c.password_hash
		 FROM users u JOIN credentials c ON c.user_id = u.id
		 WHERE u.email = $1`,
		creds.Email,
	).Scan(&u.ID, &u.Name, &u.Email, &image, &created, &hash)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load credentials: %w", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(creds.Password)); err != nil {
		return nil, nil
	}
	if image.Valid {
		u.Image = &image.String
	}
	u.CreatedAt = &created
	return &u, nil
}

// Register はユーザーと資格情報を同一トランザクションで作成する。
func (a *Adapter) Register(ctx context.Context, creds model.RegisterCredentials) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(creds.Password), a.hashCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, fmt.Errorf("%w: %w", model.ErrRegistrationFailed, err)
		}
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	tx, err := a.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	u, err := insertUser(ctx, tx, model.NewUser{Name: creds.Name, Email: creds.Email})
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO credentials (user_id, password_hash) VALUES ($1, $2)`,
		u.ID, string(hash),
	); err != nil {
		return nil, fmt.Errorf("failed to insert credentials: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return u, nil
}

// Create は資格情報なしでユーザーを作成する。
func (a *Adapter) Create(ctx context.Context, nu model.NewUser) (*model.User, error) {
	return insertUser(ctx, a.db, nu)
}

type rowQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func insertUser(ctx context.Context, q rowQuerier, nu model.NewUser) (*model.User, error) {
	u, err := scanUser(q.QueryRowContext(ctx,
		`INSERT INTO users (id, name, email, image)
		 VALUES ($1, $2, $3, $4)
		 RETURNING id, name, email, image, created_at`,
		uuid.New().String(), nu.Name, nu.Email, nu.Image,
	))
	if isUniqueViolation(err) {
		return nil, model.ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert user: %w", err)
	}
	return u, nil
}

// Update は名前・メールアドレスのうち指定されたものだけを更新する。
func (a *Adapter) Update(ctx context.Context, id string, patch model.UserPatch) (*model.User, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, model.ErrUserNotFound
	}

	sets := []string{"updated_at = NOW()"}
	args := []any{id}
	if patch.Name != nil {
		args = append(args, *patch.Name)
		sets = append(sets, fmt.Sprintf("name = $%d", len(args)))
	}
	if patch.Email != nil {
		args = append(args, *patch.Email)
		sets = append(sets, fmt.Sprintf("email = $%d", len(args)))
	}

	u, err := scanUser(a.db.QueryRowContext(ctx,
		`UPDATE users SET `+strings.Join(sets, ", ")+`
		 WHERE id = $1
		 RETURNING id, name, email, image, created_at`,
		args...,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, model.ErrUserNotFound
	}
	if isUniqueViolation(err) {
		return nil, model.ErrEmailAlreadyExists
	}
	if err != nil {
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}
