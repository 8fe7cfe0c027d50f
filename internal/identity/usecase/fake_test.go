package usecase

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shandysiswandi/otpgate/internal/identity/entity"
	"github.com/shandysiswandi/otpgate/internal/pkg/config"
	"github.com/shandysiswandi/otpgate/internal/pkg/goerror"
	"github.com/shandysiswandi/otpgate/internal/pkg/goroutine"
	"github.com/shandysiswandi/otpgate/internal/pkg/hash"
	"github.com/shandysiswandi/otpgate/internal/pkg/instrument"
	"github.com/shandysiswandi/otpgate/internal/pkg/jwt"
	"github.com/shandysiswandi/otpgate/internal/pkg/uid"
	"github.com/shandysiswandi/otpgate/internal/pkg/validator"
)

const testConfig = `
modules:
  identity:
    otp:
      ttl_minutes: 5
      max_attempts: 3
      rate_limit_window_minutes: 60
      rate_limit_max: 3
    dispatch:
      sync: true
      timeout_seconds: 2
`

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type seqOTP struct {
	mu    sync.Mutex
	codes []string
	next  int
}

func (g *seqOTP) Generate() string {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.codes) == 0 {
		return "123456"
	}
	c := g.codes[g.next%len(g.codes)]
	g.next++
	return c
}

type seqID struct {
	mu sync.Mutex
	n  int64
}

func (s *seqID) Generate() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	return 1000 + s.n
}

type published struct {
	dispatch   entity.Dispatch
	deliveryID string
}

// fakeStore keeps every repository in memory with the same semantics as the
// postgres and redis implementations.
type fakeStore struct {
	mu sync.Mutex

	challenges map[string]entity.Challenge
	exhausted  map[string][]time.Time
	users      map[int64]*entity.User
	admins     map[int64]*entity.Admin
	nextNumber int64
	sessions   map[string]*entity.LoginSession
	phoneIndex map[string]string
	sent       []published

	publishErr error
	dbErr      error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		challenges: map[string]entity.Challenge{},
		exhausted:  map[string][]time.Time{},
		users:      map[int64]*entity.User{},
		admins:     map[int64]*entity.Admin{},
		nextNumber: 1,
		sessions:   map[string]*entity.LoginSession{},
		phoneIndex: map[string]string{},
	}
}

func (f *fakeStore) UpsertChallenge(_ context.Context, c entity.Challenge, pruneBefore time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dbErr != nil {
		return f.dbErr
	}

	kept := f.exhausted[c.Identifier][:0]
	for _, at := range f.exhausted[c.Identifier] {
		if at.After(pruneBefore) {
			kept = append(kept, at)
		}
	}
	f.exhausted[c.Identifier] = kept

	c.Attempts = 0
	f.challenges[c.Identifier] = c
	return nil
}

func (f *fakeStore) GetChallenge(_ context.Context, identifier string) (*entity.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dbErr != nil {
		return nil, f.dbErr
	}

	c, ok := f.challenges[identifier]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	return &c, nil
}

func (f *fakeStore) ReserveChallengeAttempt(_ context.Context, identifier string, maxAttempts int, at time.Time) (*entity.Challenge, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dbErr != nil {
		return nil, f.dbErr
	}

	c, ok := f.challenges[identifier]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	seen := c

	if !c.IsExpired(at) && c.Attempts < maxAttempts {
		c.Attempts++
		if c.Attempts >= maxAttempts {
			f.exhausted[identifier] = append(f.exhausted[identifier], at)
		}
		f.challenges[identifier] = c
	}
	return &seen, nil
}

func (f *fakeStore) ReleaseChallengeAttempt(_ context.Context, c entity.Challenge, maxAttempts int) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cur, ok := f.challenges[c.Identifier]
	if !ok || !cur.CreatedAt.Equal(c.CreatedAt) || cur.Attempts == 0 {
		return nil
	}
	if cur.Attempts >= maxAttempts {
		hist := f.exhausted[c.Identifier]
		f.exhausted[c.Identifier] = hist[:len(hist)-1]
	}
	cur.Attempts--
	f.challenges[c.Identifier] = cur
	return nil
}

func (f *fakeStore) CountExhaustedChallenges(_ context.Context, identifier string, since time.Time) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.dbErr != nil {
		return 0, f.dbErr
	}

	n := 0
	for _, at := range f.exhausted[identifier] {
		if at.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeStore) attempts(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.challenges[identifier].Attempts
}

func (f *fakeStore) exhaustions(identifier string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.exhausted[identifier])
}

func (f *fakeStore) GetUserByID(_ context.Context, id int64) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (f *fakeStore) GetUserByIdentifier(_ context.Context, identifier string) (*entity.User, error) {
	return f.GetUserByEmailOrPhone(context.Background(), identifier, identifier)
}

func (f *fakeStore) GetUserByEmailOrPhone(_ context.Context, email, phone string) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == email || u.Phone == phone {
			cp := *u
			return &cp, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (f *fakeStore) GetPublicProfile(_ context.Context, userNumber int64) (*entity.PublicProfile, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.UserNumber == userNumber {
			return &entity.PublicProfile{UserNumber: u.UserNumber, Name: u.Name, CreatedAt: u.CreatedAt}, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (f *fakeStore) GetAdminByEmail(_ context.Context, email string) (*entity.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, a := range f.admins {
		if a.Email == email {
			cp := *a
			return &cp, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (f *fakeStore) GetAdminByID(_ context.Context, id int64) (*entity.Admin, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	a, ok := f.admins[id]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeStore) NewUser(_ context.Context, nu entity.NewUser) (*entity.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, u := range f.users {
		if u.Email == nu.Email || u.Phone == nu.Phone {
			return nil, goerror.ErrConflict
		}
	}

	u := &entity.User{
		ID:          nu.ID,
		UserNumber:  f.nextNumber,
		Email:       nu.Email,
		Phone:       nu.Phone,
		Name:        nu.Name,
		DateOfBirth: nu.DateOfBirth,
		LoginMethod: nu.LoginMethod,
	}
	f.nextNumber++
	f.users[u.ID] = u

	cp := *u
	return &cp, nil
}

func (f *fakeStore) UpdateUserProfile(_ context.Context, id int64, name string, dob time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	u, ok := f.users[id]
	if !ok {
		return goerror.ErrNotFound
	}
	u.Name = name
	u.DateOfBirth = dob
	return nil
}

func (f *fakeStore) ResetUserPassword(_ context.Context, userID int64, identifier, newHash string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.challenges[identifier]; !ok {
		return goerror.ErrConflict
	}
	delete(f.challenges, identifier)

	u, ok := f.users[userID]
	if !ok {
		return goerror.ErrNotFound
	}
	u.PasswordHash = newHash
	return nil
}

func (f *fakeStore) SaveLoginSession(_ context.Context, s entity.LoginSession, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	cp := s
	f.sessions[s.Email] = &cp
	f.phoneIndex[s.Phone] = s.Email
	return nil
}

func (f *fakeStore) FindLoginSession(_ context.Context, ch entity.Channel, identifier string) (*entity.LoginSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	email := identifier
	if ch == entity.ChannelPhone {
		var ok bool
		if email, ok = f.phoneIndex[identifier]; !ok {
			return nil, goerror.ErrNotFound
		}
	}

	s, ok := f.sessions[email]
	if !ok || !s.Tracks(ch, identifier) {
		return nil, goerror.ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) MarkLoginChannelVerified(_ context.Context, email string, ch entity.Channel) (*entity.LoginSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[email]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	switch ch {
	case entity.ChannelEmail:
		s.EmailVerified = true
	case entity.ChannelPhone:
		s.PhoneVerified = true
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) ConsumeLoginSession(_ context.Context, email string) (*entity.LoginSession, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, ok := f.sessions[email]
	if !ok {
		return nil, goerror.ErrNotFound
	}
	if !s.EmailVerified || !s.PhoneVerified {
		return nil, entity.ErrLoginNotVerified
	}
	delete(f.sessions, email)
	if f.phoneIndex[s.Phone] == email {
		delete(f.phoneIndex, s.Phone)
	}
	cp := *s
	return &cp, nil
}

func (f *fakeStore) PublishOTPDispatch(_ context.Context, d entity.Dispatch, deliveryID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.publishErr != nil {
		return f.publishErr
	}
	f.sent = append(f.sent, published{dispatch: d, deliveryID: deliveryID})
	return nil
}

func (f *fakeStore) lastCode(identifier string) string {
	f.mu.Lock()
	defer f.mu.Unlock()

	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].dispatch.Identifier == identifier {
			return f.sent[i].dispatch.Code
		}
	}
	return ""
}

type harness struct {
	uc     *Usecase
	store  *fakeStore
	clock  *fakeClock
	jwt    *jwt.Symmetric
	bcrypt *hash.Bcrypt
}

func newHarness(t *testing.T, codes ...string) *harness {
	t.Helper()

	cfg, err := config.NewViperFromBytes("yaml", []byte(testConfig))
	if err != nil {
		t.Fatalf("config: %v", err)
	}

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	clk := &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}

	j, err := jwt.NewHS512(jwt.Config{
		Secret:    []byte(strings.Repeat("s", 64)),
		Issuer:    "otpgate",
		Audiences: []string{"otpgate-api"},
		TTL:       24 * time.Hour,
		Clock:     clk,
		UUID:      uid.NewUUID(),
	})
	if err != nil {
		t.Fatalf("jwt: %v", err)
	}

	store := newFakeStore()
	bc := hash.NewBcrypt(4, "")

	uc := New(Dependency{
		RepoDB:        store,
		RepoCache:     store,
		RepoMessaging: store,
		Validator:     v,
		Config:        cfg,
		Bcrypt:        bc,
		UID:           &seqID{},
		UUID:          uid.NewUUID(),
		OTP:           &seqOTP{codes: codes},
		Clock:         clk,
		JWT:           j,
		Instrument:    instrument.NewNoop(),
		Goroutine:     goroutine.NewManager(4),
	})

	return &harness{uc: uc, store: store, clock: clk, jwt: j, bcrypt: bc}
}

func (h *harness) addUser(u entity.User) *entity.User {
	h.store.mu.Lock()
	defer h.store.mu.Unlock()

	if u.UserNumber == 0 {
		u.UserNumber = h.store.nextNumber
		h.store.nextNumber++
	}
	h.store.users[u.ID] = &u
	return &u
}

func (h *harness) authAs(t *testing.T, p jwt.Principal) context.Context {
	t.Helper()

	token, err := h.jwt.Generate(p)
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}
	clm, err := h.jwt.Verify(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	return jwt.SetAuth(context.Background(), clm)
}

func assertCode(t *testing.T, err error, want goerror.Code) {
	t.Helper()

	var gerr *goerror.Error
	if !errors.As(err, &gerr) {
		t.Fatalf("expected goerror with code %s, got %v", want, err)
	}
	if gerr.Code() != want {
		t.Fatalf("error code = %s (%q), want %s", gerr.Code(), gerr.Msg(), want)
	}
}

func newAsyncConfig() (*config.Viper, error) {
	return config.NewViperFromBytes("yaml", []byte(`
modules:
  identity:
    dispatch:
      sync: false
      timeout_seconds: 2
`))
}
