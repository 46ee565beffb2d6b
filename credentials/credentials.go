// Package credentials stores the passwords recap uses to reach Redis and
// PostgreSQL. Secrets live in ~/.recap/credentials.yaml, each value
// encrypted with AES-GCM under a key from a KeyProvider.
//
// For CI, set RECAP_ENCRYPTION_KEY to a 64-character hex string (32 bytes),
// or set RECAP_<NAME>_PASSWORD to bypass the store for one secret.
package credentials

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Credential storage constants.
const (
	DefaultConfigDir       = ".recap"
	DefaultCredentialsFile = "credentials.yaml"
	EnvConfigDir           = "RECAP_CONFIG_DIR"

	fileVersion = 1
)

// Known secret names.
const (
	SecretRedis    = "redis"
	SecretDatabase = "database"
)

// KnownSecrets lists the secrets recap reads.
var KnownSecrets = []string{SecretDatabase, SecretRedis}

// Common errors.
var (
	// ErrNoSecret is returned when the named secret is not stored.
	ErrNoSecret = errors.New("secret not stored")
	// ErrUnknownSecret is returned for names outside KnownSecrets.
	ErrUnknownSecret = errors.New("unknown secret")
	// ErrEncryptionFailed is returned when encryption/decryption fails.
	ErrEncryptionFailed = errors.New("encryption failed")
)

type secretsFile struct {
	Version int                     `yaml:"version"`
	Secrets map[string]storedSecret `yaml:"secrets"`
}

type storedSecret struct {
	Value     string    `yaml:"value"`
	UpdatedAt time.Time `yaml:"updated_at"`
}

// SecretInfo describes a stored secret without revealing it.
type SecretInfo struct {
	Name      string
	UpdatedAt time.Time
}

// Store manages the encrypted secrets file.
type Store struct {
	dir         string
	key         []byte
	keyProvider KeyProvider
}

// NewStore opens the store in the default directory with the default key
// provider.
func NewStore() (*Store, error) {
	dir, err := Dir()
	if err != nil {
		return nil, fmt.Errorf("getting credentials directory: %w", err)
	}

	keyProvider, err := GetDefaultKeyProvider(dir)
	if err != nil {
		return nil, fmt.Errorf("initializing key provider: %w", err)
	}
	return NewStoreWithKeyProvider(dir, keyProvider)
}

// NewStoreWithKeyProvider opens the store in dir with a custom key provider.
func NewStoreWithKeyProvider(dir string, keyProvider KeyProvider) (*Store, error) {
	key, err := keyProvider.GetKey()
	if err != nil {
		return nil, fmt.Errorf("getting encryption key: %w", err)
	}
	return &Store{dir: dir, key: key, keyProvider: keyProvider}, nil
}

// Dir returns $RECAP_CONFIG_DIR, or ~/.recap when unset.
func Dir() (string, error) {
	if dir := os.Getenv(EnvConfigDir); dir != "" {
		return dir, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("getting home directory: %w", err)
	}
	return filepath.Join(home, DefaultConfigDir), nil
}

// Path returns the secrets file of this store.
func (s *Store) Path() string {
	return filepath.Join(s.dir, DefaultCredentialsFile)
}

// KeyDescription names where the encryption key comes from.
func (s *Store) KeyDescription() string {
	return s.keyProvider.Description()
}

// ValidateName rejects secret names recap never reads.
func ValidateName(name string) error {
	for _, known := range KnownSecrets {
		if name == known {
			return nil
		}
	}
	return fmt.Errorf("%w %q (known: %s)", ErrUnknownSecret, name, strings.Join(KnownSecrets, ", "))
}

// EnvVar is the environment override for a secret, e.g. RECAP_REDIS_PASSWORD.
func EnvVar(name string) string {
	return "RECAP_" + strings.ToUpper(name) + "_PASSWORD"
}

// Set encrypts and stores value under name.
func (s *Store) Set(name, value string) error {
	if err := ValidateName(name); err != nil {
		return err
	}

	f, err := s.read()
	if err != nil {
		return err
	}

	encrypted, err := s.encrypt(value)
	if err != nil {
		return fmt.Errorf("encrypting %s: %w", name, err)
	}
	f.Secrets[name] = storedSecret{Value: encrypted, UpdatedAt: time.Now().UTC()}

	return s.write(f)
}

// Get decrypts the stored secret name.
func (s *Store) Get(name string) (string, error) {
	f, err := s.read()
	if err != nil {
		return "", err
	}

	stored, ok := f.Secrets[name]
	if !ok {
		return "", fmt.Errorf("%s: %w", name, ErrNoSecret)
	}

	value, err := s.decrypt(stored.Value)
	if err != nil {
		return "", fmt.Errorf("decrypting %s: %w", name, err)
	}
	return value, nil
}

// Resolve returns the environment override for name if set, otherwise the
// stored secret. A secret stored nowhere resolves to "" without error.
func (s *Store) Resolve(name string) (string, error) {
	if v := os.Getenv(EnvVar(name)); v != "" {
		return v, nil
	}
	value, err := s.Get(name)
	if errors.Is(err, ErrNoSecret) {
		return "", nil
	}
	return value, err
}

// Delete removes name from the store. Deleting a missing secret is not an error.
func (s *Store) Delete(name string) error {
	f, err := s.read()
	if err != nil {
		return err
	}
	if _, ok := f.Secrets[name]; !ok {
		return nil
	}
	delete(f.Secrets, name)
	return s.write(f)
}

// List returns the stored secret names in order.
func (s *Store) List() ([]SecretInfo, error) {
	f, err := s.read()
	if err != nil {
		return nil, err
	}

	infos := make([]SecretInfo, 0, len(f.Secrets))
	for name, stored := range f.Secrets {
		infos = append(infos, SecretInfo{Name: name, UpdatedAt: stored.UpdatedAt})
	}
	sort.Slice(infos, func(i, j int) bool { return infos[i].Name < infos[j].Name })
	return infos, nil
}

func (s *Store) read() (*secretsFile, error) {
	f := &secretsFile{Version: fileVersion, Secrets: map[string]storedSecret{}}

	data, err := os.ReadFile(s.Path())
	if err != nil {
		if os.IsNotExist(err) {
			return f, nil
		}
		return nil, fmt.Errorf("reading credentials file: %w", err)
	}

	if err := yaml.Unmarshal(data, f); err != nil {
		return nil, fmt.Errorf("parsing credentials: %w", err)
	}
	if f.Secrets == nil {
		f.Secrets = map[string]storedSecret{}
	}
	return f, nil
}

func (s *Store) write(f *secretsFile) error {
	if err := os.MkdirAll(s.dir, 0700); err != nil {
		return fmt.Errorf("creating credentials directory: %w", err)
	}

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("marshaling credentials: %w", err)
	}

	if err := os.WriteFile(s.Path(), data, 0600); err != nil {
		return fmt.Errorf("writing credentials file: %w", err)
	}
	return nil
}

func (s *Store) gcm() (cipher.AEAD, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("%w: creating cipher: %v", ErrEncryptionFailed, err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("%w: creating GCM: %v", ErrEncryptionFailed, err)
	}
	return gcm, nil
}

func (s *Store) encrypt(plaintext string) (string, error) {
	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("%w: generating nonce: %v", ErrEncryptionFailed, err)
	}

	ciphertext := gcm.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(ciphertext), nil
}

func (s *Store) decrypt(ciphertext string) (string, error) {
	data, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("%w: decoding base64: %v", ErrEncryptionFailed, err)
	}

	gcm, err := s.gcm()
	if err != nil {
		return "", err
	}

	nonceSize := gcm.NonceSize()
	if len(data) < nonceSize {
		return "", fmt.Errorf("%w: ciphertext too short", ErrEncryptionFailed)
	}

	nonce, sealed := data[:nonceSize], data[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("%w: decryption failed: %v", ErrEncryptionFailed, err)
	}
	return string(plaintext), nil
}

// Mask hides all but the edges of a secret for display.
func Mask(secret string) string {
	if len(secret) <= 8 {
		return strings.Repeat("*", len(secret))
	}
	return secret[:2] + strings.Repeat("*", len(secret)-4) + secret[len(secret)-2:]
}
