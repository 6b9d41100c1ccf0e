// Package memory implements the domain repositories in process memory for
// development and testing.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"darim/internal/domain"
)

// state is everything the store holds. Transactions work on a clone and
// swap it in on commit.
type state struct {
	users          map[int64]domain.User
	posts          map[int64]domain.Post
	passwordTokens map[string]domain.PasswordResetToken
	signUpTokens   map[string]domain.SignUpToken

	userIDCounter int64
	postIDCounter int64
}

func newState() *state {
	return &state{
		users:          make(map[int64]domain.User),
		posts:          make(map[int64]domain.Post),
		passwordTokens: make(map[string]domain.PasswordResetToken),
		signUpTokens:   make(map[string]domain.SignUpToken),
	}
}

func (st *state) clone() *state {
	return &state{
		users:          maps.Clone(st.users),
		posts:          maps.Clone(st.posts),
		passwordTokens: maps.Clone(st.passwordTokens),
		signUpTokens:   maps.Clone(st.signUpTokens),
		userIDCounter:  st.userIDCounter,
		postIDCounter:  st.postIDCounter,
	}
}

// DB implements domain.Store in memory.
type DB struct {
	mu sync.Mutex
	st *state
}

// New creates a new in-memory database.
func New() *DB {
	return &DB{st: newState()}
}

// Ensure interfaces are met.
var (
	_ domain.Store                   = (*DB)(nil)
	_ domain.Store                   = (*txStore)(nil)
	_ domain.UserRepository          = userRepo{}
	_ domain.PostRepository          = postRepo{}
	_ domain.PasswordTokenRepository = passwordTokenRepo{}
	_ domain.SignUpTokenRepository   = signUpTokenRepo{}
	_ domain.SessionRepository       = (*SessionRepo)(nil)
)

func (db *DB) Users() domain.UserRepository                   { return userRepo{access{db: db}} }
func (db *DB) Posts() domain.PostRepository                   { return postRepo{access{db: db}} }
func (db *DB) PasswordTokens() domain.PasswordTokenRepository { return passwordTokenRepo{access{db: db}} }
func (db *DB) SignUpTokens() domain.SignUpTokenRepository     { return signUpTokenRepo{access{db: db}} }

// WithinTx runs fn against a private copy of the state and publishes it only
// when fn succeeds and ctx is still live. Transactions are serialized.
func (db *DB) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	work := db.st.clone()
	if err := fn(ctx, &txStore{db: db, st: work}); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return domain.Internal("commit", err)
	}
	db.st = work
	return nil
}

// txStore is the view handed to WithinTx callbacks. The DB lock is held for
// its whole lifetime.
type txStore struct {
	db *DB
	st *state
}

func (t *txStore) Users() domain.UserRepository { return userRepo{access{db: t.db, tx: t.st}} }
func (t *txStore) Posts() domain.PostRepository { return postRepo{access{db: t.db, tx: t.st}} }
func (t *txStore) PasswordTokens() domain.PasswordTokenRepository {
	return passwordTokenRepo{access{db: t.db, tx: t.st}}
}
func (t *txStore) SignUpTokens() domain.SignUpTokenRepository {
	return signUpTokenRepo{access{db: t.db, tx: t.st}}
}

func (t *txStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx domain.Store) error) error {
	return fn(ctx, t)
}

// access runs repository code either inside the surrounding transaction or
// under the DB lock.
type access struct {
	db *DB
	tx *state
}

func (a access) do(fn func(st *state) error) error {
	if a.tx != nil {
		return fn(a.tx)
	}
	a.db.mu.Lock()
	defer a.db.mu.Unlock()
	return fn(a.db.st)
}

// --- UserRepository ---

type userRepo struct{ access }

// GetByID retrieves a user by ID.
func (r userRepo) GetByID(ctx context.Context, id int64) (*domain.User, error) {
	var out *domain.User
	err := r.do(func(st *state) error {
		if u, ok := st.users[id]; ok {
			out = &u
		}
		return nil
	})
	return out, err
}

// GetByEmail retrieves a user by email.
func (r userRepo) GetByEmail(ctx context.Context, email string) (*domain.User, error) {
	var out *domain.User
	err := r.do(func(st *state) error {
		for _, u := range st.users {
			if u.Email == email {
				out = &u
				return nil
			}
		}
		return nil
	})
	return out, err
}

// Create creates a new user.
func (r userRepo) Create(ctx context.Context, u *domain.User) (int64, error) {
	var id int64
	err := r.do(func(st *state) error {
		for _, existing := range st.users {
			if existing.Email == u.Email || existing.PublicKey == u.PublicKey {
				return domain.ErrConflict
			}
		}
		st.userIDCounter++
		id = st.userIDCounter
		nu := *u
		nu.ID = id
		nu.CreatedAt = u.CreatedAt.UTC()
		st.users[id] = nu
		return nil
	})
	return id, err
}

// Update applies the non-nil fields of upd.
func (r userRepo) Update(ctx context.Context, id int64, upd domain.UserUpdate) (bool, error) {
	var ok bool
	err := r.do(func(st *state) error {
		u, found := st.users[id]
		if !found {
			return nil
		}
		if upd.Name != nil {
			u.Name = *upd.Name
		}
		if upd.PasswordHash != nil {
			u.PasswordHash = *upd.PasswordHash
		}
		if upd.AvatarURL != nil {
			avatar := *upd.AvatarURL
			u.AvatarURL = &avatar
		}
		now := time.Now().UTC()
		u.UpdatedAt = &now
		st.users[id] = u
		ok = true
		return nil
	})
	return ok, err
}

// SetPassword replaces the password hash and revokes existing sessions.
func (r userRepo) SetPassword(ctx context.Context, id int64, passwordHash string) error {
	return r.do(func(st *state) error {
		u, found := st.users[id]
		if !found {
			return domain.ErrNotFound
		}
		u.PasswordHash = passwordHash
		u.SessionVersion++
		now := time.Now().UTC()
		u.UpdatedAt = &now
		st.users[id] = u
		return nil
	})
}

// Delete removes the user and their posts.
func (r userRepo) Delete(ctx context.Context, id int64) (bool, error) {
	var ok bool
	err := r.do(func(st *state) error {
		if _, found := st.users[id]; !found {
			return nil
		}
		delete(st.users, id)
		for pid, p := range st.posts {
			if p.OwnerID == id {
				delete(st.posts, pid)
			}
		}
		ok = true
		return nil
	})
	return ok, err
}

// --- PostRepository ---

type postRepo struct{ access }

// Get retrieves a post by ID.
func (r postRepo) Get(ctx context.Context, id int64) (*domain.Post, error) {
	var out *domain.Post
	err := r.do(func(st *state) error {
		if p, ok := st.posts[id]; ok {
			out = &p
		}
		return nil
	})
	return out, err
}

// ListByOwner lists the owner's posts, newest date first.
func (r postRepo) ListByOwner(ctx context.Context, ownerID int64) ([]domain.Post, error) {
	var out []domain.Post
	err := r.do(func(st *state) error {
		for _, p := range st.posts {
			if p.OwnerID == ownerID {
				out = append(out, p)
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date.Equal(out[j].Date) {
			return out[i].ID > out[j].ID
		}
		return out[i].Date.After(out[j].Date)
	})
	return out, err
}

// Create creates a new post.
func (r postRepo) Create(ctx context.Context, p *domain.Post) (int64, error) {
	var id int64
	err := r.do(func(st *state) error {
		if _, ok := st.users[p.OwnerID]; !ok {
			return domain.ErrNotFound
		}
		st.postIDCounter++
		id = st.postIDCounter
		np := *p
		np.ID = id
		st.posts[id] = np
		return nil
	})
	return id, err
}

// Update applies the non-nil fields of upd when the post belongs to ownerID.
func (r postRepo) Update(ctx context.Context, id, ownerID int64, upd domain.PostUpdate, updatedAt time.Time) (bool, error) {
	var ok bool
	err := r.do(func(st *state) error {
		p, found := st.posts[id]
		if !found || p.OwnerID != ownerID {
			return nil
		}
		if upd.Title != nil {
			p.Title = *upd.Title
		}
		if upd.Content != nil {
			p.Content = *upd.Content
		}
		if upd.Date != nil {
			p.Date = *upd.Date
		}
		p.UpdatedAt = &updatedAt
		st.posts[id] = p
		ok = true
		return nil
	})
	return ok, err
}

// Delete removes the post when it belongs to ownerID.
func (r postRepo) Delete(ctx context.Context, id, ownerID int64) (bool, error) {
	var ok bool
	err := r.do(func(st *state) error {
		p, found := st.posts[id]
		if !found || p.OwnerID != ownerID {
			return nil
		}
		delete(st.posts, id)
		ok = true
		return nil
	})
	return ok, err
}

// --- PasswordTokenRepository ---

type passwordTokenRepo struct{ access }

// Create stores a reset token.
func (r passwordTokenRepo) Create(ctx context.Context, t *domain.PasswordResetToken) error {
	return r.do(func(st *state) error {
		if _, exists := st.passwordTokens[t.ID]; exists {
			return domain.ErrConflict
		}
		st.passwordTokens[t.ID] = *t
		return nil
	})
}

// GetForUpdate retrieves a token by email and id. Inside a transaction the
// DB lock already excludes concurrent writers.
func (r passwordTokenRepo) GetForUpdate(ctx context.Context, email, id string) (*domain.PasswordResetToken, error) {
	var out *domain.PasswordResetToken
	err := r.do(func(st *state) error {
		if t, ok := st.passwordTokens[id]; ok && t.Email == email {
			out = &t
		}
		return nil
	})
	return out, err
}

// Update persists attempts and consumption.
func (r passwordTokenRepo) Update(ctx context.Context, t *domain.PasswordResetToken) error {
	return r.do(func(st *state) error {
		cur, ok := st.passwordTokens[t.ID]
		if !ok {
			return domain.ErrNotFound
		}
		cur.Attempts = t.Attempts
		cur.ConsumedAt = t.ConsumedAt
		st.passwordTokens[t.ID] = cur
		return nil
	})
}

// --- SignUpTokenRepository ---

type signUpTokenRepo struct{ access }

// Create stores a sign-up token.
func (r signUpTokenRepo) Create(ctx context.Context, t *domain.SignUpToken) error {
	return r.do(func(st *state) error {
		if _, exists := st.signUpTokens[t.Key]; exists {
			return domain.ErrConflict
		}
		st.signUpTokens[t.Key] = *t
		return nil
	})
}

// GetForUpdate retrieves a sign-up token by key.
func (r signUpTokenRepo) GetForUpdate(ctx context.Context, key string) (*domain.SignUpToken, error) {
	var out *domain.SignUpToken
	err := r.do(func(st *state) error {
		if t, ok := st.signUpTokens[key]; ok {
			out = &t
		}
		return nil
	})
	return out, err
}

// Delete removes a sign-up token.
func (r signUpTokenRepo) Delete(ctx context.Context, key string) error {
	return r.do(func(st *state) error {
		delete(st.signUpTokens, key)
		return nil
	})
}
