package auth_test

import (
	"context"
	"encoding/base64"
	"strings"
	"sync"

	auth "github.com/goliatone/go-cookie-auth"
	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"
	"golang.org/x/crypto/bcrypt"
)

const testSecret = "test-signing-key-0123456789abcdef"

// MockConfig implements auth.Config
type MockConfig struct {
	mock.Mock
}

func (m *MockConfig) GetSigningKey() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetSigningMethod() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetSigningKeyID() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetRetiredSigningKeys() map[string]string {
	args := m.Called()
	keys, _ := args.Get(0).(map[string]string)
	return keys
}

func (m *MockConfig) GetTokenExpiration() int {
	return m.Called().Int(0)
}

func (m *MockConfig) GetIssuer() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetCookieName() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetAuthScheme() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetCookieSecure() bool {
	return m.Called().Bool(0)
}

func (m *MockConfig) GetCookieSameSite() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetContextKey() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetLoginRoute() string {
	return m.Called().String(0)
}

func (m *MockConfig) GetLoginRedirect() string {
	return m.Called().String(0)
}

type configOverrides struct {
	method        string
	keyID         string
	retired       map[string]string
	expiration    int
	issuer        string
	loginRedirect string
}

// newMockConfig returns a config with every getter answered. Empty string
// values fall back to the package defaults.
func newMockConfig(secret string, overrides ...configOverrides) *MockConfig {
	var o configOverrides
	if len(overrides) > 0 {
		o = overrides[0]
	}

	m := new(MockConfig)
	m.On("GetSigningKey").Return(secret).Maybe()
	m.On("GetSigningMethod").Return(o.method).Maybe()
	m.On("GetSigningKeyID").Return(o.keyID).Maybe()
	m.On("GetRetiredSigningKeys").Return(o.retired).Maybe()
	m.On("GetTokenExpiration").Return(o.expiration).Maybe()
	m.On("GetIssuer").Return(o.issuer).Maybe()
	m.On("GetCookieName").Return("").Maybe()
	m.On("GetAuthScheme").Return("").Maybe()
	m.On("GetCookieSecure").Return(false).Maybe()
	m.On("GetCookieSameSite").Return("").Maybe()
	m.On("GetContextKey").Return("").Maybe()
	m.On("GetLoginRoute").Return("").Maybe()
	m.On("GetLoginRedirect").Return(o.loginRedirect).Maybe()
	return m
}

// MockUserFinder implements auth.UserFinder
type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) FindUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	args := m.Called(ctx, email)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

func (m *MockUserFinder) FindUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	args := m.Called(ctx, id)
	user, _ := args.Get(0).(*auth.User)
	return user, args.Error(1)
}

// memUsers is an in memory auth.UserFinder keyed by email
type memUsers struct {
	mu      sync.Mutex
	records map[string]*auth.User
	lookups int
}

func newMemUsers() *memUsers {
	return &memUsers{records: map[string]*auth.User{}}
}

func (m *memUsers) add(email, password string) *auth.User {
	hash, err := fastHasher().HashPassword(password)
	if err != nil {
		panic(err)
	}

	user := &auth.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		Role:         auth.RoleMember,
	}

	m.mu.Lock()
	m.records[email] = user
	m.mu.Unlock()

	return user
}

func (m *memUsers) remove(email string) {
	m.mu.Lock()
	delete(m.records, email)
	m.mu.Unlock()
}

func (m *memUsers) FindUserByEmail(_ context.Context, email string) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lookups++
	if user, ok := m.records[email]; ok {
		return user, nil
	}
	return nil, auth.ErrIdentityNotFound
}

func (m *memUsers) FindUserByID(_ context.Context, id uuid.UUID) (*auth.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lookups++
	for _, user := range m.records {
		if user.ID == id {
			return user, nil
		}
	}
	return nil, auth.ErrIdentityNotFound
}

func (m *memUsers) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// recordingSink keeps every activity event
type recordingSink struct {
	mu     sync.Mutex
	events []auth.ActivityEvent
}

func (r *recordingSink) Record(_ context.Context, event auth.ActivityEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func (r *recordingSink) last() auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.events) == 0 {
		return auth.ActivityEvent{}
	}
	return r.events[len(r.events)-1]
}

func (r *recordingSink) byType(t auth.ActivityEventType) []auth.ActivityEvent {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := []auth.ActivityEvent{}
	for _, e := range r.events {
		if e.EventType == t {
			out = append(out, e)
		}
	}
	return out
}

func fastHasher() auth.BcryptHasher {
	return auth.NewBcryptHasher(bcrypt.MinCost)
}

func newTestAuthenticator(users auth.UserFinder, cfg auth.Config) *auth.Auther {
	auther, err := auth.NewAuthenticator(users, cfg)
	if err != nil {
		panic(err)
	}
	return auther.WithPasswordHasher(fastHasher())
}

// tamper swaps the token payload keeping the original signature
func tamper(token string) string {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return token
	}
	parts[1] = base64.RawURLEncoding.EncodeToString([]byte(`{"sub":"mallory@example.com"}`))
	return strings.Join(parts, ".")
}
