package testhelpers

import (
	"context"
	"sync"

	"github.com/msdeveloper2k/cashback-zone/internal/providers"
)

// Validator is a scripted phone validator that counts its calls.
type Validator struct {
	mu    sync.Mutex
	name  string
	calls int

	Valid bool
	Err   error
	// Block, when set, makes Validate wait for ctx to end.
	Block bool
}

var _ providers.PhoneValidator = (*Validator)(nil)

func NewValidator(name string, valid bool, err error) *Validator {
	return &Validator{name: name, Valid: valid, Err: err}
}

func (v *Validator) Name() string { return v.name }

func (v *Validator) Validate(ctx context.Context, _ string) (bool, error) {
	v.mu.Lock()
	v.calls++
	block, valid, err := v.Block, v.Valid, v.Err
	v.mu.Unlock()

	if block {
		<-ctx.Done()
		return false, ctx.Err()
	}
	return valid, err
}

func (v *Validator) Calls() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.calls
}

// SentEmail is one message captured by Mailer.
type SentEmail struct {
	To      string
	Subject string
	Plain   string
	HTML    string
}

// Mailer records messages instead of sending them.
type Mailer struct {
	mu   sync.Mutex
	sent []SentEmail
	Err  error
}

func (m *Mailer) Send(_ context.Context, to, subject, plainText, html string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return m.Err
	}
	m.sent = append(m.sent, SentEmail{To: to, Subject: subject, Plain: plainText, HTML: html})
	return nil
}

func (m *Mailer) Sent() []SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]SentEmail(nil), m.sent...)
}

// Last returns the most recent message, or the zero value.
func (m *Mailer) Last() SentEmail {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.sent) == 0 {
		return SentEmail{}
	}
	return m.sent[len(m.sent)-1]
}
