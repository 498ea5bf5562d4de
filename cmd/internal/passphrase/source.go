package passphrase

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"golang.org/x/term"
)

var errBlankPassphrase = errors.New("governance keystore passphrase cannot be blank")

// Source resolves the governance keystore passphrase exactly once, preferring
// an environment variable and falling back to a terminal prompt. Subsequent
// calls return the cached result, so the operator is never asked twice.
type Source struct {
	env string

	once   sync.Once
	secret string
	err    error
}

// NewSource returns a source that consults env before prompting.
func NewSource(env string) *Source {
	return &Source{env: strings.TrimSpace(env)}
}

// Get resolves and caches the passphrase. A set-but-blank environment
// variable is an error rather than silently unlocking with nothing.
func (s *Source) Get() (string, error) {
	s.once.Do(func() { s.secret, s.err = s.resolve() })
	return s.secret, s.err
}

func (s *Source) resolve() (string, error) {
	if s.env != "" {
		if value, ok := os.LookupEnv(s.env); ok {
			if strings.TrimSpace(value) == "" {
				return "", fmt.Errorf("%s is set but blank", s.env)
			}
			return value, nil
		}
	}

	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		if s.env != "" {
			return "", fmt.Errorf("governance keystore passphrase required: set %s or run wasabid on a terminal", s.env)
		}
		return "", errors.New("governance keystore passphrase required and stdin is not a terminal")
	}

	fmt.Fprint(os.Stderr, "Governance keystore passphrase: ")
	entered, err := term.ReadPassword(fd)
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", fmt.Errorf("read passphrase: %w", err)
	}
	if strings.TrimSpace(string(entered)) == "" {
		return "", errBlankPassphrase
	}
	return string(entered), nil
}
