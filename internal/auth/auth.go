// Package auth stores the backend session and the optional TOTP secret.
//
// Each secret is scoped to one backend URL and sourced in priority order:
//  1. Environment variable: BOTCTL_SESSION_COOKIE / BOTCTL_TOTP_SECRET
//  2. OS Keyring (macOS Keychain, Windows Credential Manager, Linux Secret Service)
//  3. File fallback under <user config dir>/botctl/secrets (for headless hosts)
package auth

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/zalando/go-keyring"

	"github.com/membit-bot/botctl/internal/paths"
)

// keyringService is the service name used in OS keyring storage.
const keyringService = "botctl"

// Kind names one stored secret.
type Kind string

// Secret kinds.
const (
	KindSession Kind = "session"
	KindTOTP    Kind = "totp"
)

func (k Kind) envVar() string {
	switch k {
	case KindSession:
		return "BOTCTL_SESSION_COOKIE"
	case KindTOTP:
		return "BOTCTL_TOTP_SECRET"
	default:
		return ""
	}
}

// Source indicates where a secret was found.
type Source string

// Source constants identify where a secret was loaded from.
const (
	SourceEnv     Source = "environment variable"
	SourceKeyring Source = "keyring"
	SourceFile    Source = "config file"
	SourceNone    Source = ""
)

// ErrNotStored is returned by Delete when nothing was stored.
var ErrNotStored = errors.New("no stored secret found")

// Get returns the secret of kind for server and where it came from.
// Returns SourceNone and "" when nothing is stored.
func Get(kind Kind, server string) (Source, string) {
	if env := kind.envVar(); env != "" {
		if v := strings.TrimSpace(os.Getenv(env)); v != "" {
			return SourceEnv, v
		}
	}

	if v, err := keyring.Get(keyringService, account(kind, server)); err == nil && v != "" {
		return SourceKeyring, v
	}

	if v := readSecretFile(kind, server); v != "" {
		return SourceFile, v
	}

	return SourceNone, ""
}

// Store saves the secret in the OS keyring, falling back to a 0600 file.
func Store(kind Kind, server, value string) (Source, error) {
	if err := keyring.Set(keyringService, account(kind, server), value); err == nil {
		return SourceKeyring, nil
	}

	if err := writeSecretFile(kind, server, value); err != nil {
		return SourceNone, err
	}

	return SourceFile, nil
}

// Delete removes the secret from both the keyring and the file fallback.
func Delete(kind Kind, server string) error {
	keyringErr := keyring.Delete(keyringService, account(kind, server))
	fileErr := deleteSecretFile(kind, server)

	if keyringErr != nil && fileErr != nil {
		return ErrNotStored
	}

	return nil
}

// SessionCookie returns the stored session cookie for server.
func SessionCookie(server string) (Source, string) {
	return Get(KindSession, server)
}

// StoreSessionCookie persists the session cookie for server.
func StoreSessionCookie(server, cookie string) (Source, error) {
	return Store(KindSession, server, cookie)
}

// DeleteSessionCookie forgets the session cookie for server.
func DeleteSessionCookie(server string) error {
	return Delete(KindSession, server)
}

func account(kind Kind, server string) string {
	return string(kind) + ":" + strings.TrimRight(server, "/")
}

func secretFilePath(kind Kind, server string) string {
	path, err := paths.SecretFile(string(kind), strings.TrimRight(server, "/"))
	if err != nil {
		return ""
	}

	return filepath.Clean(path)
}

func readSecretFile(kind Kind, server string) string {
	path := secretFilePath(kind, server)
	if path == "" {
		return ""
	}

	data, err := os.ReadFile(path) //nolint:gosec // G304: path from controlled config directory
	if err != nil {
		return ""
	}

	return strings.TrimSpace(string(data))
}

func writeSecretFile(kind Kind, server, value string) error {
	path := secretFilePath(kind, server)
	if path == "" {
		return fmt.Errorf("could not determine config directory")
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("failed to create secrets directory: %w", err)
	}

	if err := os.WriteFile(path, []byte(value+"\n"), 0o600); err != nil {
		return fmt.Errorf("failed to write secret file: %w", err)
	}

	return nil
}

func deleteSecretFile(kind Kind, server string) error {
	path := secretFilePath(kind, server)
	if path == "" {
		return fmt.Errorf("could not determine config directory")
	}

	err := os.Remove(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("secret file not found")
	}

	if err != nil {
		return fmt.Errorf("remove secret file: %w", err)
	}

	return nil
}
