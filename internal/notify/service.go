package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/digihome/digihome-core/internal/account"
)

// Logger is the logging surface of this package.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// AccountStore is the part of account.Repository the service needs.
type AccountStore interface {
	Get(ctx context.Context, id string) (*account.Account, error)
	RemovePushTokens(ctx context.Context, id string, tokens []string) error
}

// Service delivers notifications to every registered device of an account.
type Service struct {
	accounts AccountStore
	pusher   Pusher
	history  Repository
	logger   Logger
}

// NewService creates a Service. A nil pusher disables push; notifications
// are then only recorded as history.
func NewService(accounts AccountStore, pusher Pusher, history Repository, logger Logger) *Service {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Service{accounts: accounts, pusher: pusher, history: history, logger: logger}
}

// Deliver pushes the notification to each of the account's tokens. Tokens
// the provider rejects are removed from the account. History is recorded
// when at least one push succeeded, or always when push is disabled.
func (s *Service) Deliver(ctx context.Context, accountID, title, body string, data map[string]string) (Result, error) {
	acct, err := s.accounts.Get(ctx, accountID)
	if err != nil {
		return Result{}, fmt.Errorf("loading account %s: %w", accountID, err)
	}

	var res Result
	if s.pusher != nil {
		if len(acct.PushTokens) == 0 {
			s.logger.Debug("account has no push tokens", "account_id", accountID)
			return res, nil
		}

		msg := Message{Title: title, Body: body, Data: data}
		var rejected []string
		for _, token := range acct.PushTokens {
			err := s.pusher.Push(ctx, token, msg)
			switch {
			case err == nil:
				res.Sent++
			case errors.Is(err, ErrTokenRejected):
				res.Failed++
				rejected = append(rejected, token)
			default:
				res.Failed++
				s.logger.Warn("push failed", "account_id", accountID, "error", err)
			}
		}

		if len(rejected) > 0 {
			if err := s.accounts.RemovePushTokens(ctx, accountID, rejected); err != nil {
				s.logger.Warn("pruning rejected tokens failed", "account_id", accountID, "error", err)
			} else {
				s.logger.Info("pruned rejected push tokens", "account_id", accountID, "count", len(rejected))
			}
		}

		if res.Sent == 0 {
			return res, nil
		}
	}

	n := &Notification{AccountID: accountID, Title: title, Body: body, Data: data}
	if err := s.history.Create(ctx, n); err != nil {
		return res, fmt.Errorf("recording notification: %w", err)
	}

	s.logger.Info("notification delivered", "account_id", accountID, "sent", res.Sent, "failed", res.Failed)
	return res, nil
}

// Notify is Deliver for callers that only care whether anything got out.
// With push enabled, nil means at least one device received the message.
func (s *Service) Notify(ctx context.Context, accountID, title, body string, data map[string]string) error {
	res, err := s.Deliver(ctx, accountID, title, body, data)
	switch {
	case err != nil:
		return err
	case s.pusher == nil || res.Sent > 0:
		return nil
	case res.Failed == 0:
		return ErrNoRecipients
	default:
		return fmt.Errorf("%w: all %d tokens failed", ErrDeliveryFailed, res.Failed)
	}
}
