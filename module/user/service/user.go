package service

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	usermodel "PPRelay/module/user/model"
	"PPRelay/tools/errs"
	"PPRelay/tools/ids"
	jwtlib "PPRelay/tools/security"

	"golang.org/x/crypto/bcrypt"
)

// DefaultUsers are the two demo accounts the relay ships with.
const DefaultUsers = "alice:password123,bob:password456"

// ParseUsers reads "name:password,name:password". Whitespace around entries is
// ignored; an entry without a colon or with an empty part is an error.
func ParseUsers(list string) (map[string]string, error) {
	out := make(map[string]string)
	for _, part := range strings.Split(list, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		name, pass, ok := strings.Cut(part, ":")
		name = strings.TrimSpace(name)
		if !ok || name == "" || pass == "" {
			return nil, fmt.Errorf("bad user entry %q, want name:password", part)
		}
		out[name] = pass
	}
	return out, nil
}

// CredentialStore checks username/password pairs against bcrypt hashes.
type CredentialStore struct {
	mu    sync.RWMutex
	users map[string]usermodel.User
	dummy []byte // compared against for unknown names so both paths cost the same
}

func NewCredentialStore(plain map[string]string, cost int) (*CredentialStore, error) {
	if cost <= 0 {
		cost = bcrypt.DefaultCost
	}
	s := &CredentialStore{users: make(map[string]usermodel.User, len(plain))}
	for name, pass := range plain {
		h, err := bcrypt.GenerateFromPassword([]byte(pass), cost)
		if err != nil {
			return nil, fmt.Errorf("hash password for %s: %w", name, err)
		}
		s.users[name] = usermodel.User{UserID: name, PasswordHash: h}
	}
	dummy, err := bcrypt.GenerateFromPassword([]byte("not-a-real-password"), cost)
	if err != nil {
		return nil, err
	}
	s.dummy = dummy
	return s, nil
}

func (s *CredentialStore) Check(username, password string) bool {
	s.mu.RLock()
	u, ok := s.users[username]
	s.mu.RUnlock()
	hash := s.dummy
	if ok {
		hash = u.PasswordHash
	}
	err := bcrypt.CompareHashAndPassword(hash, []byte(password))
	return ok && err == nil
}

func (s *CredentialStore) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.users))
	for n := range s.users {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// LoginParams is the input of a login attempt.
type LoginParams struct {
	UserID    string
	Password  string
	IP        string
	UserAgent string
	Now       time.Time // zero means time.Now()
}

type Service struct {
	creds *CredentialStore
	opts  jwtlib.Options
}

func NewService(creds *CredentialStore, opts jwtlib.Options) *Service {
	return &Service{creds: creds, opts: opts}
}

// Login checks the credentials and issues a session token.
func (s *Service) Login(in LoginParams) (usermodel.UserSession, error) {
	if !s.creds.Check(in.UserID, in.Password) {
		return usermodel.UserSession{}, errs.ErrInvalidCredentials
	}
	now := in.Now
	if now.IsZero() {
		now = time.Now()
	}
	token, exp, err := jwtlib.Generate(s.opts, in.UserID)
	if err != nil {
		return usermodel.UserSession{}, errs.ErrInternal.Wrap(err)
	}
	return usermodel.UserSession{
		SessionID:   ids.GenerateString(),
		UserID:      in.UserID,
		IP:          in.IP,
		UserAgent:   in.UserAgent,
		AccessToken: token,
		LoginTime:   now,
		ExpireAt:    exp,
		Status:      usermodel.StatusOnline,
	}, nil
}

// Verify returns the identity a token was issued to.
func (s *Service) Verify(token string) (string, error) {
	sub, err := jwtlib.Verify(s.opts, token)
	if err != nil {
		return "", errs.ErrUnauthorized.Wrap(err)
	}
	return sub, nil
}
