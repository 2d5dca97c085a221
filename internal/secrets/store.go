// Package secrets keeps credentials such as the controller secret encrypted at
// rest, so config.yaml can stay free of them.
package secrets

import (
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"clashtui/internal/fsutil"
	"clashtui/internal/logging"
)

// ControllerSecret names the stored external-controller secret.
const ControllerSecret = "controller"

const (
	secretExt      = ".enc"
	secretsDirName = "secrets"
	passphraseFile = ".passphrase"
)

// ErrNotFound is returned for a name with no stored secret.
var ErrNotFound = errors.New("secret not found")

// StoreConfig locates the store on disk
type StoreConfig struct {
	SecretsDir     string
	PassphraseFile string
}

// DefaultStoreConfig places the store under configDir
func DefaultStoreConfig(configDir string) StoreConfig {
	return StoreConfig{
		SecretsDir:     filepath.Join(configDir, secretsDirName),
		PassphraseFile: filepath.Join(configDir, secretsDirName, passphraseFile),
	}
}

// Store handles encrypted secret storage
type Store struct {
	config StoreConfig
	key    *[KeySize]byte
	logger *logging.Logger
}

// NewStore opens the store, generating a passphrase on first use.
func NewStore(config StoreConfig, logger *logging.Logger) (*Store, error) {
	if err := fsutil.EnsureDir(config.SecretsDir); err != nil {
		return nil, fmt.Errorf("failed to create secrets directory: %w", err)
	}

	passphrase, err := loadOrGeneratePassphrase(config.PassphraseFile, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to load passphrase: %w", err)
	}

	key := DeriveKey(passphrase)
	return &Store{config: config, key: &key, logger: logger}, nil
}

// Put encrypts and stores value under name
func (s *Store) Put(name string, value []byte) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}

	sealed, err := Encrypt(value, s.key)
	if err != nil {
		return fmt.Errorf("encryption failed: %w", err)
	}
	if err := fsutil.AtomicWriteFile(path, sealed, fsutil.DefaultFilePermissions, s.logger); err != nil {
		return fmt.Errorf("failed to write secret: %w", err)
	}

	s.logger.Info("secrets.stored", "Secret stored", map[string]interface{}{
		"name": name,
	})
	return nil
}

// Get decrypts the secret stored under name
func (s *Store) Get(name string) ([]byte, error) {
	path, err := s.path(name)
	if err != nil {
		return nil, err
	}

	sealed, err := fsutil.ReadOptional(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read secret: %w", err)
	}
	if sealed == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}

	if err := verifyPermissions(path); err != nil {
		s.logger.Warn("secrets.permissions.warning", "Secret file permissions should be 600", map[string]interface{}{
			"path":  path,
			"error": err.Error(),
		})
	}

	return Decrypt(sealed, s.key)
}

// Delete removes the secret stored under name
func (s *Store) Delete(name string) error {
	path, err := s.path(name)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("%w: %s", ErrNotFound, name)
		}
		return fmt.Errorf("failed to delete secret: %w", err)
	}

	s.logger.Info("secrets.deleted", "Secret deleted", map[string]interface{}{
		"name": name,
	})
	return nil
}

// List returns the stored secret names sorted ascending
func (s *Store) List() ([]string, error) {
	matches, err := filepath.Glob(filepath.Join(s.config.SecretsDir, "*"+secretExt))
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(matches))
	for _, m := range matches {
		names = append(names, strings.TrimSuffix(filepath.Base(m), secretExt))
	}
	sort.Strings(names)
	return names, nil
}

// Resolve returns configured when set, otherwise the secret stored under name.
// A missing stored secret resolves to "".
func (s *Store) Resolve(name, configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	value, err := s.Get(name)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return string(value), nil
}

func (s *Store) path(name string) (string, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || strings.HasPrefix(name, ".") {
		return "", fmt.Errorf("invalid secret name %q", name)
	}
	return filepath.Join(s.config.SecretsDir, name+secretExt), nil
}

func verifyPermissions(path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return err
	}
	if perm := info.Mode().Perm(); perm != fsutil.DefaultFilePermissions {
		return fmt.Errorf("file has permissions %o, expected %o", perm, fsutil.DefaultFilePermissions)
	}
	return nil
}

func loadOrGeneratePassphrase(path string, logger *logging.Logger) (string, error) {
	data, err := fsutil.ReadOptional(path)
	if err != nil {
		return "", fmt.Errorf("failed to read passphrase file: %w", err)
	}
	if data != nil {
		return string(data), nil
	}

	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("failed to generate passphrase: %w", err)
	}
	passphrase := hex.EncodeToString(raw)

	if err := fsutil.AtomicWriteFile(path, []byte(passphrase), fsutil.DefaultFilePermissions, logger); err != nil {
		return "", fmt.Errorf("failed to write passphrase: %w", err)
	}
	return passphrase, nil
}
