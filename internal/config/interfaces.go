package config

import "context"

// SecretProvider resolves SSM parameter paths to plaintext. Paths it cannot
// resolve are left out of the result; the loader reports them by variable
// name.
type SecretProvider interface {
	GetParametersBatch(ctx context.Context, keys []string) (map[string]string, error)
}
