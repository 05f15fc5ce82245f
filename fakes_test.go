package webauth_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	wa "github.com/panyam/webauth"
	"github.com/panyam/webauth/password"
)

// memDirectory is an in-memory UserDirectory that counts every call.
type memDirectory struct {
	mu    sync.Mutex
	users map[string]*wa.User
	next  int

	finds   int
	creates int
	saves   int

	// forces the next Create to report a lost race
	raceOnCreate bool
	missNextFind bool
	failFind     error
	failSave     error
}

func newMemDirectory() *memDirectory {
	return &memDirectory{users: map[string]*wa.User{}}
}

func (d *memDirectory) FindByEmail(ctx context.Context, email string) (*wa.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.finds++
	if d.failFind != nil {
		return nil, d.failFind
	}
	if d.missNextFind {
		d.missNextFind = false
		return nil, wa.ErrUserNotFound
	}
	u, ok := d.users[email]
	if !ok {
		return nil, wa.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (d *memDirectory) Create(ctx context.Context, user *wa.User) (*wa.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.creates++
	if d.raceOnCreate {
		d.raceOnCreate = false
		return nil, wa.ErrEmailTaken
	}
	if _, ok := d.users[user.Email]; ok {
		return nil, wa.ErrEmailTaken
	}
	d.next++
	out := *user
	out.ID = fmt.Sprintf("user-%d", d.next)
	out.CreatedAt = time.Now()
	out.UpdatedAt = out.CreatedAt
	d.users[out.Email] = &out
	ret := out
	return &ret, nil
}

func (d *memDirectory) Save(ctx context.Context, user *wa.User) (*wa.User, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.saves++
	if d.failSave != nil {
		return nil, d.failSave
	}
	if _, ok := d.users[user.Email]; !ok {
		return nil, wa.ErrUserNotFound
	}
	out := *user
	out.UpdatedAt = time.Now()
	d.users[out.Email] = &out
	ret := out
	return &ret, nil
}

func (d *memDirectory) get(email string) *wa.User {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.users[email]
}

func (d *memDirectory) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.users)
}

// fakeSession is a Session held in memory.
type fakeSession struct {
	email      string
	destroyed  bool
	setErr     error
	destroyErr error
}

func (s *fakeSession) UserEmail() string { return s.email }

func (s *fakeSession) SetUserEmail(email string) error {
	if s.setErr != nil {
		return s.setErr
	}
	s.email = email
	return nil
}

func (s *fakeSession) Destroy() error {
	if s.destroyErr != nil {
		return s.destroyErr
	}
	s.destroyed = true
	s.email = ""
	return nil
}

// recordingMailer keeps every message it is asked to send.
type recordingMailer struct {
	mu   sync.Mutex
	sent []wa.Message
	err  error
}

func (m *recordingMailer) Send(ctx context.Context, msg wa.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, msg)
	return nil
}

func (m *recordingMailer) last() (wa.Message, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return wa.Message{}, false
	}
	return m.sent[len(m.sent)-1], true
}

var errBoom = errors.New("boom")

// captchaSwitch lets a test flip CAPTCHA outcomes.
type captchaSwitch struct {
	ok bool

	mu       sync.Mutex
	remoteIP string
}

func (c *captchaSwitch) verify(ctx context.Context, token string) bool {
	c.mu.Lock()
	c.remoteIP = wa.RemoteIPFromContext(ctx)
	c.mu.Unlock()
	return c.ok && token != ""
}

func (c *captchaSwitch) lastRemoteIP() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.remoteIP
}

// newTestService wires a Service with fast hashing and fixed temporary passwords.
func newTestService() (*wa.Service, *memDirectory, *recordingMailer, *captchaSwitch) {
	users := newMemDirectory()
	mailer := &recordingMailer{}
	captcha := &captchaSwitch{ok: true}
	svc := wa.NewService(users, wa.CaptchaFunc(captcha.verify), mailer)
	svc.Hasher = password.NewBcrypt(4)
	svc.TemporaryPassword = func() (string, error) { return "temp1234", nil }
	return svc, users, mailer, captcha
}

// seedUser stores a local user with the given password.
func seedUser(svc *wa.Service, users *memDirectory, email, pass string) *wa.User {
	hash, _ := svc.Hasher.Hash(pass)
	u, _ := users.Create(context.Background(), &wa.User{
		Username:     "seed",
		Email:        email,
		PasswordHash: hash,
		Provider:     wa.ProviderLocal,
	})
	users.finds, users.creates = 0, 0
	return u
}
