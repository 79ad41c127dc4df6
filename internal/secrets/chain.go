package secrets

import (
	"context"
	"errors"
	"fmt"
)

// ChainStore tries primary first, falling back to fallback only when
// primary's failure isn't a cancellation (a cancelled or timed-out context
// should propagate, not trigger a second lookup against a different
// backend).
type ChainStore struct {
	primary  Store
	fallback Store
}

var _ Store = (*ChainStore)(nil)

var (
	errNilPrimary  = errors.New("secrets: primary store is nil")
	errNilFallback = errors.New("secrets: fallback store is nil")
)

// NewChainStore builds a ChainStore, erroring if either backend is nil.
func NewChainStore(primary, fallback Store) (*ChainStore, error) {
	if primary == nil {
		return nil, errNilPrimary
	}
	if fallback == nil {
		return nil, errNilFallback
	}
	return &ChainStore{primary: primary, fallback: fallback}, nil
}

func (s *ChainStore) Get(ctx context.Context, key string) (string, error) {
	value, err := s.primary.Get(ctx, key)
	if err == nil {
		return value, nil
	}
	if shouldSkipFallback(err) {
		return "", err
	}

	value, fallbackErr := s.fallback.Get(ctx, key)
	if fallbackErr == nil {
		return value, nil
	}
	return "", fmt.Errorf("primary lookup failed: %w; fallback lookup failed: %w", err, fallbackErr)
}

func (s *ChainStore) Put(ctx context.Context, key string, value string) error {
	err := s.primary.Put(ctx, key, value)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	if fallbackErr := s.fallback.Put(ctx, key, value); fallbackErr != nil {
		return fmt.Errorf("primary put failed: %w; fallback put failed: %w", err, fallbackErr)
	}
	return nil
}

func (s *ChainStore) Delete(ctx context.Context, key string) error {
	err := s.primary.Delete(ctx, key)
	if err == nil {
		return nil
	}
	if shouldSkipFallback(err) {
		return err
	}

	if fallbackErr := s.fallback.Delete(ctx, key); fallbackErr != nil {
		return fmt.Errorf("primary delete failed: %w; fallback delete failed: %w", err, fallbackErr)
	}
	return nil
}

func shouldSkipFallback(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
