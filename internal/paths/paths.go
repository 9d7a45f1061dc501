// Package paths resolves the per-user directories botctl reads and writes.
//
// An absolute XDG_* variable wins, then the OS default, then a directory
// under $HOME.
package paths

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
)

const appName = "botctl"

type base struct {
	env       string
	osDefault func() (string, error)
	underHome string
}

var (
	configBase = base{env: "XDG_CONFIG_HOME", osDefault: os.UserConfigDir, underHome: ".config"}
	// Go has no OS state directory, so state always falls through to $HOME.
	stateBase = base{env: "XDG_STATE_HOME", underHome: filepath.Join(".local", "state")}
)

func (b base) resolve() (string, error) {
	if dir := os.Getenv(b.env); dir != "" && filepath.IsAbs(dir) {
		return filepath.Join(dir, appName), nil
	}

	var osErr error

	if b.osDefault != nil {
		dir, err := b.osDefault()
		if err == nil && dir != "" {
			return filepath.Join(dir, appName), nil
		}

		osErr = err
	}

	if home, err := os.UserHomeDir(); err == nil && home != "" {
		return filepath.Join(home, b.underHome, appName), nil
	}

	if osErr != nil {
		return "", osErr
	}

	return "", errors.New("resolve user home directory")
}

func (b base) join(elem ...string) (string, error) {
	root, err := b.resolve()
	if err != nil {
		return "", err
	}

	return filepath.Join(append([]string{root}, elem...)...), nil
}

// ConfigRoot returns the botctl config directory.
func ConfigRoot() (string, error) { return configBase.resolve() }

// StateRoot returns the botctl state directory.
func StateRoot() (string, error) { return stateBase.resolve() }

// ConfigFile returns the path of the viper-managed config file.
func ConfigFile() (string, error) { return configBase.join("config.yaml") }

// DefaultLogFile returns where structured logs go when stderr logging is off.
func DefaultLogFile() (string, error) { return stateBase.join("logs", "botctl.log") }

// HistoryDir returns the directory holding recorded activity logs.
func HistoryDir() (string, error) { return stateBase.join("history") }

// SecretFile returns the fallback file used when no OS keyring is available.
// Each (kind, server) pair gets its own file so logging out of one backend
// never touches another.
func SecretFile(kind, server string) (string, error) {
	sum := sha256.Sum256([]byte(server))
	return configBase.join("secrets", kind+"-"+hex.EncodeToString(sum[:8]))
}
