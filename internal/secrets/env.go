package secrets

import (
	"context"
	"fmt"
	"os"
	"strings"
)

// EnvStore reads secrets from environment variables, upper-cased and
// prefixed, standing in for an OS keychain backend. Put/Delete only affect
// the current process's environment and are provided mainly so EnvStore
// satisfies Store for testing and for session-scoped overrides; they don't
// persist across restarts.
type EnvStore struct {
	prefix string
}

var _ Store = (*EnvStore)(nil)

// NewEnvStore builds an EnvStore that looks up key as prefix + upper-cased
// key, e.g. prefix "COMPANIONBOT_SECRET_" and key "telegram_token" reads
// COMPANIONBOT_SECRET_TELEGRAM_TOKEN.
func NewEnvStore(prefix string) *EnvStore {
	return &EnvStore{prefix: prefix}
}

func (s *EnvStore) envName(key string) string {
	return s.prefix + strings.ToUpper(key)
}

func (s *EnvStore) Get(ctx context.Context, key string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	name := s.envName(key)
	value, ok := os.LookupEnv(name)
	if !ok {
		return "", fmt.Errorf("secrets: env secret %q not found", name)
	}
	return value, nil
}

func (s *EnvStore) Put(ctx context.Context, key string, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Setenv(s.envName(key), value)
}

func (s *EnvStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return os.Unsetenv(s.envName(key))
}
