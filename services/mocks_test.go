package services

import (
	"context"
	"errors"
	"sync"

	"github.com/stretchr/testify/mock"

	"go.pilab.hu/feelscape/domain"
)

// --- Mock Implementations ---

type MockIdentityService struct {
	mock.Mock

	mu        sync.Mutex
	current   domain.IdentityUser
	listeners []domain.SessionListener
}

func (m *MockIdentityService) SignInWithEmailAndPassword(ctx context.Context, email, password string) (domain.IdentityUser, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	u := args.Get(0).(domain.IdentityUser)
	m.setCurrent(u)
	return u, args.Error(1)
}

func (m *MockIdentityService) CreateUserWithEmailAndPassword(ctx context.Context, email, password string) (domain.IdentityUser, error) {
	args := m.Called(ctx, email, password)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	u := args.Get(0).(domain.IdentityUser)
	m.setCurrent(u)
	return u, args.Error(1)
}

func (m *MockIdentityService) CurrentUser() domain.IdentityUser {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

func (m *MockIdentityService) AddSessionListener(fn domain.SessionListener) func() {
	m.mu.Lock()
	m.listeners = append(m.listeners, fn)
	cur := m.current
	m.mu.Unlock()

	fn(cur)
	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.listeners = nil
	}
}

func (m *MockIdentityService) SignOut(ctx context.Context) error {
	args := m.Called(ctx)
	m.emit(nil)
	return args.Error(0)
}

func (m *MockIdentityService) setCurrent(u domain.IdentityUser) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.current = u
}

// emit switches the current user and notifies listeners.
func (m *MockIdentityService) emit(u domain.IdentityUser) {
	m.mu.Lock()
	m.current = u
	listeners := append([]domain.SessionListener(nil), m.listeners...)
	m.mu.Unlock()

	for _, fn := range listeners {
		fn(u)
	}
}

type MockIdentityUser struct {
	mock.Mock

	uid   string
	email string

	mu          sync.Mutex
	displayName string
}

func newMockUser(uid, email, displayName string) *MockIdentityUser {
	return &MockIdentityUser{uid: uid, email: email, displayName: displayName}
}

func (m *MockIdentityUser) UID() string   { return m.uid }
func (m *MockIdentityUser) Email() string { return m.email }

func (m *MockIdentityUser) DisplayName() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.displayName
}

func (m *MockIdentityUser) UpdateProfile(ctx context.Context, displayName string) error {
	args := m.Called(ctx, displayName)
	if err := args.Error(0); err != nil {
		return err
	}
	m.mu.Lock()
	m.displayName = displayName
	m.mu.Unlock()
	return nil
}

func (m *MockIdentityUser) Reload(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockProfileRepository struct {
	mock.Mock
}

func (m *MockProfileRepository) GetProfile(ctx context.Context, uid string) (*domain.ProfileDocument, error) {
	args := m.Called(ctx, uid)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.ProfileDocument), args.Error(1)
}

func (m *MockProfileRepository) PutProfile(ctx context.Context, doc *domain.ProfileDocument) error {
	args := m.Called(ctx, doc)
	return args.Error(0)
}

func (m *MockProfileRepository) MergeProfile(ctx context.Context, uid string, update domain.ProfileUpdate) error {
	args := m.Called(ctx, uid, update)
	return args.Error(0)
}

// memProfiles is an in-memory ProfileRepository for flows that need the
// written document to be read back.
type memProfiles struct {
	mu   sync.Mutex
	docs map[string]domain.ProfileDocument
}

func newMemProfiles() *memProfiles {
	return &memProfiles{docs: make(map[string]domain.ProfileDocument)}
}

func (p *memProfiles) GetProfile(_ context.Context, uid string) (*domain.ProfileDocument, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, ok := p.docs[uid]
	if !ok {
		return nil, domain.ErrProfileNotFound
	}
	return &doc, nil
}

func (p *memProfiles) PutProfile(_ context.Context, doc *domain.ProfileDocument) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.docs[doc.UID] = *doc
	return nil
}

func (p *memProfiles) MergeProfile(_ context.Context, uid string, update domain.ProfileUpdate) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	doc, ok := p.docs[uid]
	if !ok {
		return errors.New("merge into missing document")
	}
	doc.DisplayName = update.DisplayName
	p.docs[uid] = doc
	return nil
}

type recordingMetrics struct {
	mu          sync.Mutex
	signIn      []string
	signUp      []string
	saves       []string
	attempts    map[string]int
	divergences int
}

func newRecordingMetrics() *recordingMetrics {
	return &recordingMetrics{attempts: make(map[string]int)}
}

func (r *recordingMetrics) SignIn(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signIn = append(r.signIn, result)
}

func (r *recordingMetrics) SignUp(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.signUp = append(r.signUp, result)
}

func (r *recordingMetrics) ProfileSave(result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saves = append(r.saves, result)
}

func (r *recordingMetrics) RemoteAttempt(step string, _ int, _ error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts[step]++
}

func (r *recordingMetrics) MirrorDivergence() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.divergences++
}
