package services

import (
	"context"
	"errors"
	"fmt"

	"pfinance/internal/core"
	"pfinance/internal/events"
	"pfinance/internal/log"
	"pfinance/internal/sources"
)

// ErrAccountsUnsupported is returned by CreateAccount when the backend
// manages accounts elsewhere.
var ErrAccountsUnsupported = errors.New("backend does not support account creation")

// ValidationError marks input the caller must fix.
type ValidationError struct {
	Err error
}

func (e *ValidationError) Error() string {
	return "validation failed: " + e.Err.Error()
}

func (e *ValidationError) Unwrap() error {
	return e.Err
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

type (
	// Invalidator drops cached charts after a write.
	Invalidator interface {
		Invalidate()
	}

	// Publisher fans invalidations out to the other instances.
	Publisher interface {
		PublishInvalidation(ctx context.Context, msg *events.InvalidationMessage) error
	}
)

// TransactionService records transactions and accounts and keeps chart
// caches coherent across instances.
type TransactionService struct {
	writer     sources.TransactionWriter
	accounts   sources.AccountWriter
	invalidate Invalidator
	publisher  Publisher
	instanceID string
	logger     *log.Logger
	events     *log.StructuredLogger
}

// TransactionServiceOption customises a TransactionService.
type TransactionServiceOption func(*TransactionService)

// WithAccountWriter enables CreateAccount.
func WithAccountWriter(w sources.AccountWriter) TransactionServiceOption {
	return func(s *TransactionService) { s.accounts = w }
}

// WithPublisher publishes an invalidation after every write.
func WithPublisher(p Publisher, instanceID string) TransactionServiceOption {
	return func(s *TransactionService) {
		s.publisher = p
		s.instanceID = instanceID
	}
}

func NewTransactionService(writer sources.TransactionWriter, invalidate Invalidator, logger *log.Logger, opts ...TransactionServiceOption) *TransactionService {
	if logger == nil {
		logger = log.Discard()
	}
	logger = logger.WithComponent(log.ComponentLedger)
	s := &TransactionService{
		writer:     writer,
		invalidate: invalidate,
		logger:     logger,
		events:     log.NewStructuredLogger(logger),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Record validates and appends t, then invalidates charts locally and
// remotely. A failed publish is logged and does not fail the call.
func (s *TransactionService) Record(ctx context.Context, t core.Transaction) (string, error) {
	if err := t.Validate(); err != nil {
		return "", &ValidationError{Err: err}
	}

	ref, err := s.writer.Append(ctx, t)
	if err != nil {
		if errors.Is(err, core.ErrUnknownAccount) {
			return "", &ValidationError{Err: err}
		}
		return "", fmt.Errorf("append transaction: %w", err)
	}

	s.afterWrite(ctx, events.ReasonTransactionCreated, t.Date.Year(), int(t.Date.Month()))
	s.events.LogTransactionRecorded(ctx, string(t.Type), t.Category, t.Amount.String(), ref)
	return ref, nil
}

// CreateAccount validates and stores a, returning it with its ID set.
func (s *TransactionService) CreateAccount(ctx context.Context, a core.Account) (core.Account, error) {
	if s.accounts == nil {
		return core.Account{}, ErrAccountsUnsupported
	}
	if err := a.Validate(); err != nil {
		return core.Account{}, &ValidationError{Err: err}
	}

	created, err := s.accounts.CreateAccount(ctx, a)
	if err != nil {
		if errors.Is(err, core.ErrDuplicateAccount) {
			return core.Account{}, &ValidationError{Err: err}
		}
		return core.Account{}, fmt.Errorf("create account: %w", err)
	}

	s.afterWrite(ctx, events.ReasonAccountCreated, 0, 0)
	s.logger.InfoContext(ctx, "Account created",
		log.FieldOperation, log.OpCreate,
		"account_id", created.ID,
		"account_name", created.Name)
	return created, nil
}

func (s *TransactionService) afterWrite(ctx context.Context, reason string, year, month int) {
	if s.invalidate != nil {
		s.invalidate.Invalidate()
	}
	if s.publisher == nil {
		return
	}
	msg := events.NewInvalidationMessage(s.instanceID, reason, year, month)
	if err := s.publisher.PublishInvalidation(ctx, msg); err != nil {
		s.logger.WarnContext(ctx, "Failed to publish chart invalidation",
			log.FieldOperation, log.OpPublish,
			log.FieldError, err.Error())
	}
}
