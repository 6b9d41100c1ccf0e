package app

import (
	"context"
	"sync"
	"testing"
	"time"

	"darim/internal/adapter/memory"
	"darim/internal/domain"
	"darim/internal/logging"

	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var testSecret = []byte("test-secret-test-secret-test-sec")

// recordingNotifier keeps every notice, including ones it fails to deliver.
type recordingNotifier struct {
	mu       sync.Mutex
	signUps  []domain.SignUpNotice
	resets   []domain.PasswordResetNotice
	failWith error
}

func (n *recordingNotifier) SignUpTokenIssued(_ context.Context, notice domain.SignUpNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signUps = append(n.signUps, notice)
	return n.failWith
}

func (n *recordingNotifier) PasswordTokenIssued(_ context.Context, notice domain.PasswordResetNotice) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.resets = append(n.resets, notice)
	return n.failWith
}

func (n *recordingNotifier) lastReset(t *testing.T) domain.PasswordResetNotice {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.resets)
	return n.resets[len(n.resets)-1]
}

func (n *recordingNotifier) lastSignUp(t *testing.T) domain.SignUpNotice {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	require.NotEmpty(t, n.signUps)
	return n.signUps[len(n.signUps)-1]
}

// fixture wires the services over the in-memory adapters.
type fixture struct {
	db       *memory.DB
	creds    Credentials
	notifier *recordingNotifier
	sessions *SessionManager
	resets   *PasswordResetService
	users    *UserService
	posts    *PostService
	auth     *AuthService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := memory.New()
	creds := Credentials{Cost: bcrypt.MinCost}
	notifier := &recordingNotifier{}
	log := logging.Discard()

	sessions := NewSessionManager(db.Users(), memory.NewSessionRepo(), testSecret, time.Hour)
	resets := NewPasswordResetService(db, sessions, notifier, creds, 15*time.Minute, log)
	return &fixture{
		db:       db,
		creds:    creds,
		notifier: notifier,
		sessions: sessions,
		resets:   resets,
		users:    NewUserService(db, sessions, resets, notifier, creds, time.Hour, log),
		posts:    NewPostService(db.Posts()),
		auth:     NewAuthService(db.Users(), sessions, creds),
	}
}

func (f *fixture) createUser(t *testing.T, email, password string) int64 {
	t.Helper()
	hash, err := f.creds.Hash(password)
	require.NoError(t, err)
	id, err := f.db.Users().Create(context.Background(), &domain.User{
		Name: "user", Email: email, PasswordHash: hash, PublicKey: "pk-" + email, CreatedAt: time.Now(),
	})
	require.NoError(t, err)
	return id
}

// login establishes a session for userID and resolves it.
func (f *fixture) login(t *testing.T, userID int64) (SessionHandle, *UserSession) {
	t.Helper()
	ctx := context.Background()
	u, err := f.db.Users().GetByID(ctx, userID)
	require.NoError(t, err)
	require.NotNil(t, u)
	h, err := f.sessions.Establish(ctx, userID, u.SessionVersion, ClientInfo{UserAgent: "test"})
	require.NoError(t, err)
	s, err := f.sessions.Resolve(ctx, h.Token, ClientInfo{UserAgent: "test"})
	require.NoError(t, err)
	require.NotNil(t, s)
	return h, s
}
