// Copyright (c) 2025 Jeremy Hahn
// Copyright (c) 2025 Automate The Things, LLC
//
// This file is part of go-cryptobox.
//
// go-cryptobox is dual-licensed:
//
// 1. GNU Affero General Public License v3.0 (AGPL-3.0)
//    See LICENSE file or visit https://www.gnu.org/licenses/agpl-3.0.html
//
// 2. Commercial License
//    Contact licensing@automatethethings.com for commercial licensing options.

// Package keyring stores PEM encoded key material by name.
//
// Every name can hold up to three entries: an unencrypted PKCS#8 private key,
// a SubjectPublicKeyInfo public key and an encrypted private key envelope.
// Storage is delegated to a Backend; FileBackend keeps one file per entry
// in a directory, MemoryBackend keeps them in a map.
package keyring

import (
	"errors"
	"fmt"
	"io/fs"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jeremyhahn/go-cryptobox/pkg/logging"
	"github.com/jeremyhahn/go-cryptobox/pkg/metrics"
)

var (
	// ErrClosed is returned when using a closed key ring.
	ErrClosed = errors.New("keyring: closed")

	// ErrNotFound is returned when a name or entry does not exist.
	ErrNotFound = errors.New("keyring: not found")

	// ErrAlreadyExists is returned when storing over an existing entry.
	ErrAlreadyExists = errors.New("keyring: already exists")

	// ErrInvalidName is returned for names that are empty, too long or
	// contain characters other than letters, digits, '.', '_' and '-'.
	ErrInvalidName = errors.New("keyring: invalid name")

	// ErrInvalidKind is returned for unknown entry kinds.
	ErrInvalidKind = errors.New("keyring: invalid kind")
)

// Kind is the type of a key ring entry.
type Kind string

const (
	KindPrivate   Kind = "private"
	KindPublic    Kind = "public"
	KindEncrypted Kind = "encrypted"
)

// Kinds lists every entry kind in storage order.
var Kinds = []Kind{KindPrivate, KindPublic, KindEncrypted}

// Suffix returns the storage key suffix of the kind.
func (k Kind) Suffix() string {
	switch k {
	case KindPrivate:
		return ".pem"
	case KindPublic:
		return ".pub.pem"
	case KindEncrypted:
		return ".enc.pem"
	}
	return ""
}

// Perm returns the file mode used for the kind. Only public keys are
// readable by others.
func (k Kind) Perm() fs.FileMode {
	if k == KindPublic {
		return 0644
	}
	return 0600
}

// MaxNameLength bounds key ring names.
const MaxNameLength = 128

var namePattern = regexp.MustCompile(`^[A-Za-z0-9_-][A-Za-z0-9._-]*$`)

// ValidateName checks that name is usable as a storage key.
func ValidateName(name string) error {
	if name == "" || len(name) > MaxNameLength || !namePattern.MatchString(name) {
		return fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	// ".pub" and ".enc" would collide with entry suffixes
	if strings.HasSuffix(name, ".pub") || strings.HasSuffix(name, ".enc") {
		return fmt.Errorf("%w: %q ends with a reserved suffix", ErrInvalidName, name)
	}
	return nil
}

// Backend stores raw entries under flat storage keys such as
// "alice.pub.pem". Implementations must be safe for concurrent use.
type Backend interface {
	// Name identifies the backend in metrics, such as "file".
	Name() string

	// Get returns the value of key or ErrNotFound.
	Get(key string) ([]byte, error)

	// Put stores value under key with the given file mode, replacing any
	// previous value.
	Put(key string, value []byte, perm fs.FileMode) error

	// Delete removes key or returns ErrNotFound.
	Delete(key string) error

	// List returns every storage key in sorted order.
	List() ([]string, error)

	// Exists reports whether key is stored.
	Exists(key string) (bool, error)

	// Close releases the backend. Later calls return ErrClosed.
	Close() error
}

// Entry summarizes the entries stored under one name.
type Entry struct {
	Name  string `json:"name" yaml:"name"`
	Kinds []Kind `json:"kinds" yaml:"kinds"`
}

// Has reports whether the entry holds kind.
func (e Entry) Has(kind Kind) bool {
	for _, k := range e.Kinds {
		if k == kind {
			return true
		}
	}
	return false
}

// Keyring is a typed view over a Backend.
type Keyring struct {
	backend Backend
	logger  *logging.Logger
}

// New returns a key ring over backend. A nil logger discards output.
func New(backend Backend, logger *logging.Logger) *Keyring {
	if logger == nil {
		logger = logging.DiscardLogger()
	}
	return &Keyring{backend: backend, logger: logger}
}

// NewName returns a random name for callers that do not pick one.
func NewName() string {
	return uuid.NewString()
}

func storageKey(name string, kind Kind) (string, error) {
	if err := ValidateName(name); err != nil {
		return "", err
	}
	suffix := kind.Suffix()
	if suffix == "" {
		return "", fmt.Errorf("%w: %q", ErrInvalidKind, kind)
	}
	return name + suffix, nil
}

// parseKey splits a storage key into name and kind. The longest suffix wins.
func parseKey(key string) (string, Kind, bool) {
	for _, kind := range []Kind{KindPublic, KindEncrypted, KindPrivate} {
		if name, ok := strings.CutSuffix(key, kind.Suffix()); ok && ValidateName(name) == nil {
			return name, kind, true
		}
	}
	return "", "", false
}

// observe records key ring metrics. Key ring operations carry no cipher
// suite, so the cipher label is empty.
func (k *Keyring) observe(op string, start time.Time, errp *error) {
	status := metrics.StatusSuccess
	if *errp != nil {
		status = metrics.StatusError
		metrics.RecordError(op, "", errorType(*errp))
	}
	metrics.RecordOperation(op, "", status, time.Since(start).Seconds())
}

func errorType(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, ErrInvalidName), errors.Is(err, ErrInvalidKind):
		return "invalid_name"
	case errors.Is(err, ErrClosed):
		return "closed"
	}
	return "backend"
}

// Store saves pemText as the kind entry of name. Existing entries are not
// replaced unless overwrite is set.
func (k *Keyring) Store(name string, kind Kind, pemText string, overwrite bool) (err error) {
	defer k.observe(metrics.OpKeyringStore, time.Now(), &err)

	key, err := storageKey(name, kind)
	if err != nil {
		return err
	}
	if !overwrite {
		exists, err := k.backend.Exists(key)
		if err != nil {
			return err
		}
		if exists {
			return fmt.Errorf("%w: %s %s", ErrAlreadyExists, kind, name)
		}
	}
	if err := k.backend.Put(key, []byte(pemText), kind.Perm()); err != nil {
		return err
	}
	k.logger.Debug("stored key", "name", name, "kind", kind, "backend", k.backend.Name())
	k.updateCount()
	return nil
}

// Load returns the kind entry of name.
func (k *Keyring) Load(name string, kind Kind) (_ string, err error) {
	defer k.observe(metrics.OpKeyringLoad, time.Now(), &err)

	key, err := storageKey(name, kind)
	if err != nil {
		return "", err
	}
	data, err := k.backend.Get(key)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return "", fmt.Errorf("%w: %s %s", ErrNotFound, kind, name)
		}
		return "", err
	}
	return string(data), nil
}

// Has reports whether the kind entry of name exists.
func (k *Keyring) Has(name string, kind Kind) (bool, error) {
	key, err := storageKey(name, kind)
	if err != nil {
		return false, err
	}
	return k.backend.Exists(key)
}

// Delete removes every entry of name. It returns ErrNotFound when there
// was nothing to remove.
func (k *Keyring) Delete(name string) (err error) {
	defer k.observe(metrics.OpKeyringDelete, time.Now(), &err)

	if err := ValidateName(name); err != nil {
		return err
	}
	removed := 0
	for _, kind := range Kinds {
		err := k.backend.Delete(name + kind.Suffix())
		switch {
		case err == nil:
			removed++
		case errors.Is(err, ErrNotFound):
		default:
			return err
		}
	}
	if removed == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	k.logger.Debug("deleted key", "name", name, "entries", removed)
	k.updateCount()
	return nil
}

// List returns one Entry per name, sorted by name. Storage keys that do not
// follow the naming scheme are skipped.
func (k *Keyring) List() (_ []Entry, err error) {
	defer k.observe(metrics.OpKeyringList, time.Now(), &err)
	return k.entries()
}

func (k *Keyring) entries() ([]Entry, error) {
	keys, err := k.backend.List()
	if err != nil {
		return nil, err
	}
	byName := make(map[string]*Entry)
	for _, key := range keys {
		name, kind, ok := parseKey(key)
		if !ok {
			continue
		}
		e, found := byName[name]
		if !found {
			e = &Entry{Name: name}
			byName[name] = e
		}
		e.Kinds = append(e.Kinds, kind)
	}

	entries := make([]Entry, 0, len(byName))
	for _, e := range byName {
		sort.Slice(e.Kinds, func(i, j int) bool {
			return kindOrder(e.Kinds[i]) < kindOrder(e.Kinds[j])
		})
		entries = append(entries, *e)
	}
	sort.Slice(entries, func(i, j int) bool {
		return entries[i].Name < entries[j].Name
	})
	metrics.SetKeysTotal(k.backend.Name(), float64(len(entries)))
	return entries, nil
}

// Close closes the backend.
func (k *Keyring) Close() error {
	return k.backend.Close()
}

func (k *Keyring) updateCount() {
	if _, err := k.entries(); err != nil {
		k.logger.Debug("key count not updated", "error", err)
	}
}

func kindOrder(kind Kind) int {
	for i, k := range Kinds {
		if k == kind {
			return i
		}
	}
	return len(Kinds)
}
