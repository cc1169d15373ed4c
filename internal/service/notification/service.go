// Package notification turns marketplace webhook events into emails.
package notification

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"nft-storefront/internal/domain"
	"nft-storefront/internal/metrics"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
	ErrUnknownEvent     = errors.New("unknown webhook event")
)

// EmailLookup resolves the email registered for an account.
type EmailLookup interface {
	AccountEmail(ctx context.Context, address string) (string, error)
}

type Message struct {
	To      string
	Subject string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

type Config struct {
	Secret  string
	AppName string
	BaseURL string
}

type Service struct {
	secret   []byte
	appName  string
	baseURL  string
	emails   EmailLookup
	sender   Sender
	render   *renderer
	validate *validator.Validate
	recorder metrics.Recorder
	log      *zap.Logger
}

func New(cfg Config, emails EmailLookup, sender Sender, recorder metrics.Recorder, log *zap.Logger) (*Service, error) {
	if cfg.Secret == "" {
		return nil, errors.New("webhook secret required")
	}
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Service{
		secret:   []byte(cfg.Secret),
		appName:  cfg.AppName,
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		emails:   emails,
		sender:   sender,
		render:   r,
		validate: validator.New(),
		recorder: recorder,
		log:      log,
	}, nil
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks signature against the HMAC of the raw body.
func (s *Service) VerifySignature(body []byte, signature string) error {
	got, err := hex.DecodeString(strings.TrimSpace(signature))
	if err != nil || len(got) != sha256.Size {
		return ErrInvalidSignature
	}
	mac := hmac.New(sha256.New, s.secret)
	mac.Write(body)
	if !hmac.Equal(got, mac.Sum(nil)) {
		return ErrInvalidSignature
	}
	return nil
}

// Parse decodes and validates a webhook body.
func (s *Service) Parse(body []byte) (Payload, error) {
	var p Payload
	if err := json.Unmarshal(body, &p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	if err := s.validate.Struct(p); err != nil {
		return Payload{}, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}
	k, ok := kinds[p.Type]
	if !ok {
		return Payload{}, fmt.Errorf("%w: %s", ErrUnknownEvent, p.Type)
	}
	if err := s.validate.Var(k.recipient(p.Data), "required,eth_addr"); err != nil {
		return Payload{}, fmt.Errorf("%w: recipient of %s: %v", ErrInvalidPayload, p.Type, err)
	}
	return p, nil
}

// Handle verifies, parses and delivers one webhook call. It reports whether
// an email was sent; accounts without an email are skipped.
func (s *Service) Handle(ctx context.Context, body []byte, signature string) (sent bool, err error) {
	start := time.Now()
	eventType := "unknown"
	defer func() {
		result := "sent"
		switch {
		case err != nil:
			result = "error"
		case !sent:
			result = "skipped"
		}
		s.recorder.IncCounter(metrics.WebhookDelivery, map[string]string{"kind": eventType, "result": result})
		s.recorder.ObserveLatency(metrics.WebhookDuration, time.Since(start), map[string]string{"result": result})
	}()

	if err := s.VerifySignature(body, signature); err != nil {
		return false, err
	}
	p, err := s.Parse(body)
	if err != nil {
		return false, err
	}
	eventType = string(p.Type)
	return s.Deliver(ctx, p)
}

// Deliver renders p and mails it to its recipient.
func (s *Service) Deliver(ctx context.Context, p Payload) (bool, error) {
	k, ok := kinds[p.Type]
	if !ok {
		return false, fmt.Errorf("%w: %s", ErrUnknownEvent, p.Type)
	}
	recipient := strings.ToLower(k.recipient(p.Data))
	email, err := s.emails.AccountEmail(ctx, recipient)
	if errors.Is(err, domain.ErrNotFound) {
		s.log.Info("no email for recipient", zap.String("event", string(p.Type)), zap.String("address", recipient))
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("lookup recipient: %w", err)
	}

	subject, html, err := s.render.render(p.Type, newView(s.appName, s.baseURL, p.Data))
	if err != nil {
		return false, err
	}
	if err := s.sender.Send(ctx, Message{To: email, Subject: subject, HTML: html}); err != nil {
		return false, fmt.Errorf("send email: %w", err)
	}
	s.log.Info("notification sent", zap.String("event", string(p.Type)), zap.String("address", recipient))
	return true, nil
}
