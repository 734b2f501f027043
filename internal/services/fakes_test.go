package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"lumen_backend/internal/config"
	"lumen_backend/internal/models"
	"lumen_backend/internal/repositories"
)

// fakeAuthRepo is an in-memory AuthRepository with the same sentinel and
// conditional-delete semantics as the gorm implementation.
type fakeAuthRepo struct {
	mu               sync.Mutex
	usersByID        map[string]*models.User
	settingsByUser   map[string]*models.UserSettings
	verifByUser      map[string]*models.VerificationToken
	resetByUser      map[string]*models.ResetPasswordToken
	twoFactorByEmail map[string]*models.TwoFactorToken
	confirmByUser    map[string]*models.TwoFactorConfirmation
}

func newFakeAuthRepo() *fakeAuthRepo {
	return &fakeAuthRepo{
		usersByID:        map[string]*models.User{},
		settingsByUser:   map[string]*models.UserSettings{},
		verifByUser:      map[string]*models.VerificationToken{},
		resetByUser:      map[string]*models.ResetPasswordToken{},
		twoFactorByEmail: map[string]*models.TwoFactorToken{},
		confirmByUser:    map[string]*models.TwoFactorConfirmation{},
	}
}

func (r *fakeAuthRepo) WithTx(ctx context.Context, fn func(repositories.AuthRepository) error) error {
	return fn(r)
}

func (r *fakeAuthRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.usersByID {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repositories.ErrUserNotFound
}

func (r *fakeAuthRepo) GetUserByID(ctx context.Context, id string) (*models.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usersByID[id]
	if !ok {
		return nil, repositories.ErrUserNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *fakeAuthRepo) CreateUser(ctx context.Context, user *models.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.usersByID {
		if u.Email == user.Email {
			return repositories.ErrUserAlreadyExists
		}
	}
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	cp := *user
	r.usersByID[user.ID] = &cp
	return nil
}

func (r *fakeAuthRepo) UpdateUserPassword(ctx context.Context, userID, passwordHash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usersByID[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.PasswordHash = &passwordHash
	return nil
}

func (r *fakeAuthRepo) MarkEmailVerified(ctx context.Context, userID string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.usersByID[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	u.EmailVerified = &at
	return nil
}

func (r *fakeAuthRepo) CreateUserSettings(ctx context.Context, settings *models.UserSettings) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if settings.ID == "" {
		settings.ID = uuid.NewString()
	}
	cp := *settings
	r.settingsByUser[settings.UserID] = &cp
	return nil
}

func (r *fakeAuthRepo) GetUserSettingsByUserID(ctx context.Context, userID string) (*models.UserSettings, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settingsByUser[userID]
	if !ok {
		return nil, nil
	}
	cp := *s
	return &cp, nil
}

func (r *fakeAuthRepo) UpdateUserSettings(ctx context.Context, userID string, updates map[string]interface{}) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.settingsByUser[userID]
	if !ok {
		return repositories.ErrUserNotFound
	}
	if theme, ok := updates["theme"]; ok {
		s.Theme = models.Theme(theme.(string))
	}
	if enabled, ok := updates["is_two_factor_enabled"]; ok {
		s.IsTwoFactorEnabled = enabled.(bool)
	}
	return nil
}

func (r *fakeAuthRepo) UpsertVerificationToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.verifByUser[userID] = &models.VerificationToken{
		BaseModel: models.BaseModel{ID: uuid.NewString()},
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (r *fakeAuthRepo) GetVerificationTokenByUserID(ctx context.Context, userID string) (*models.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.verifByUser[userID]
	if !ok {
		return nil, repositories.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeAuthRepo) GetVerificationTokenByToken(ctx context.Context, token string) (*models.VerificationToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.verifByUser {
		if t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrTokenNotFound
}

func (r *fakeAuthRepo) DeleteVerificationTokenByToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, t := range r.verifByUser {
		if t.Token == token {
			delete(r.verifByUser, userID)
			return nil
		}
	}
	return repositories.ErrTokenNotFound
}

func (r *fakeAuthRepo) UpsertResetPasswordToken(ctx context.Context, userID, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.resetByUser[userID] = &models.ResetPasswordToken{
		BaseModel: models.BaseModel{ID: uuid.NewString()},
		UserID:    userID,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (r *fakeAuthRepo) GetResetPasswordTokenByToken(ctx context.Context, token string) (*models.ResetPasswordToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, t := range r.resetByUser {
		if t.Token == token {
			cp := *t
			return &cp, nil
		}
	}
	return nil, repositories.ErrTokenNotFound
}

func (r *fakeAuthRepo) DeleteResetPasswordTokenByToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, t := range r.resetByUser {
		if t.Token == token {
			delete(r.resetByUser, userID)
			return nil
		}
	}
	return repositories.ErrTokenNotFound
}

func (r *fakeAuthRepo) UpsertTwoFactorToken(ctx context.Context, email, token string, expiresAt time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.twoFactorByEmail[email] = &models.TwoFactorToken{
		BaseModel: models.BaseModel{ID: uuid.NewString()},
		Email:     email,
		Token:     token,
		ExpiresAt: expiresAt,
	}
	return nil
}

func (r *fakeAuthRepo) GetTwoFactorTokenByEmail(ctx context.Context, email string) (*models.TwoFactorToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	t, ok := r.twoFactorByEmail[email]
	if !ok {
		return nil, repositories.ErrTokenNotFound
	}
	cp := *t
	return &cp, nil
}

func (r *fakeAuthRepo) DeleteTwoFactorTokenByToken(ctx context.Context, token string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for email, t := range r.twoFactorByEmail {
		if t.Token == token {
			delete(r.twoFactorByEmail, email)
			return nil
		}
	}
	return repositories.ErrTokenNotFound
}

func (r *fakeAuthRepo) CreateTwoFactorConfirmation(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.confirmByUser[userID] = &models.TwoFactorConfirmation{
		BaseModel: models.BaseModel{ID: uuid.NewString()},
		UserID:    userID,
	}
	return nil
}

func (r *fakeAuthRepo) GetTwoFactorConfirmationByUserID(ctx context.Context, userID string) (*models.TwoFactorConfirmation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.confirmByUser[userID]
	if !ok {
		return nil, repositories.ErrConfirmationNotFound
	}
	cp := *c
	return &cp, nil
}

func (r *fakeAuthRepo) DeleteTwoFactorConfirmation(ctx context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for userID, c := range r.confirmByUser {
		if c.ID == id {
			delete(r.confirmByUser, userID)
			return nil
		}
	}
	return repositories.ErrConfirmationNotFound
}

type sentMail struct {
	To    string
	Token string
}

// fakeMailer records outbound mail per kind.
type fakeMailer struct {
	mu            sync.Mutex
	verifications []sentMail
	resets        []sentMail
	codes         []sentMail
}

func (m *fakeMailer) SendVerification(to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.verifications = append(m.verifications, sentMail{To: to, Token: token})
	return nil
}

func (m *fakeMailer) SendPasswordReset(to, name, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets = append(m.resets, sentMail{To: to, Token: token})
	return nil
}

func (m *fakeMailer) SendTwoFactorCode(to, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes = append(m.codes, sentMail{To: to, Token: code})
	return nil
}

func (m *fakeMailer) lastVerification() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.verifications) == 0 {
		return sentMail{}, false
	}
	return m.verifications[len(m.verifications)-1], true
}

func (m *fakeMailer) lastReset() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.resets) == 0 {
		return sentMail{}, false
	}
	return m.resets[len(m.resets)-1], true
}

func (m *fakeMailer) lastCode() (sentMail, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.codes) == 0 {
		return sentMail{}, false
	}
	return m.codes[len(m.codes)-1], true
}

// fakeRevocationList is an in-memory session denylist. containsErr simulates
// an unreachable backend.
type fakeRevocationList struct {
	mu          sync.Mutex
	entries     map[string]time.Time
	containsErr error
}

func newFakeRevocationList() *fakeRevocationList {
	return &fakeRevocationList{entries: map[string]time.Time{}}
}

func (l *fakeRevocationList) Add(ctx context.Context, sessionID string, ttl time.Duration) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries[sessionID] = time.Now().Add(ttl)
	return nil
}

func (l *fakeRevocationList) Contains(ctx context.Context, sessionID string) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.containsErr != nil {
		return false, l.containsErr
	}
	expiry, ok := l.entries[sessionID]
	return ok && time.Now().Before(expiry), nil
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Server.Env = "test"
	cfg.App.Origin = "http://localhost:3000"
	cfg.App.BaseURL = "http://localhost:8080"
	cfg.Database.DSN = "test"
	cfg.Tokens.AccessSecret = "test-access-secret"
	cfg.Tokens.RefreshSecret = "test-refresh-secret"
	cfg.Tokens.OpaqueHashSecret = "test-opaque-secret"
	cfg.Tokens.RefreshCookieName = "lumen_refresh"
	return cfg
}
