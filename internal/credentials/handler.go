package credentials

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"go.uber.org/zap"

	"github.com/muurk/easywifi/internal/logging"
)

const (
	// DefaultFileName is the name of the record file inside the data directory.
	DefaultFileName = "WifiCredentials"

	// MaxRecordSize bounds every read of the record file.
	MaxRecordSize = 68

	fieldSeparator byte = 1
	terminator     byte = 0
)

// eraseFiller overwrites the old ciphertext before the file is removed.
var eraseFiller = []byte("0empty0o0empty0\x00")

// ErrInvalidCredential is returned by Write for a credential that cannot be
// represented in the record format.
var ErrInvalidCredential = errors.New("invalid credential")

// Credential is the persisted (network identifier, secret) pair.
type Credential struct {
	SSID     string
	Password string
}

// Validate checks the record invariants: each field fits its 32-byte buffer
// and contains neither the separator nor the terminator byte.
func (c Credential) Validate() error {
	if err := validateField("ssid", c.SSID); err != nil {
		return err
	}
	return validateField("password", c.Password)
}

func validateField(name, value string) error {
	if len(value) > MaxFieldLen {
		return fmt.Errorf("%w: %s is %d bytes (max %d)", ErrInvalidCredential, name, len(value), MaxFieldLen)
	}
	if i := bytes.IndexAny([]byte(value), "\x00\x01"); i >= 0 {
		return fmt.Errorf("%w: %s contains reserved byte 0x%02x at %d", ErrInvalidCredential, name, value[i], i)
	}
	return nil
}

// String never includes the password.
func (c Credential) String() string {
	if c.Password == "" {
		return fmt.Sprintf("%s (open)", c.SSID)
	}
	return fmt.Sprintf("%s (password set)", c.SSID)
}

// Handler reads and writes the single credential record kept in a file store.
type Handler struct {
	fs    afero.Fs
	path  string
	codec *Codec
}

// NewHandler creates a handler for the record at path inside fs.
func NewHandler(fs afero.Fs, path string) *Handler {
	return &Handler{
		fs:    fs,
		path:  path,
		codec: NewCodec(),
	}
}

// NewOSHandler creates a handler backed by the real filesystem.
func NewOSHandler(path string) *Handler {
	return NewHandler(afero.NewOsFs(), path)
}

// Path returns the record location.
func (h *Handler) Path() string {
	return h.path
}

// Codec exposes the codec so its seed can be tuned.
func (h *Handler) Codec() *Codec {
	return h.codec
}

// SetSeed forwards to the codec; negative seeds are ignored.
func (h *Handler) SetSeed(seed int) {
	h.codec.SetSeed(seed)
}

// Check reports whether a record file exists.
func (h *Handler) Check() bool {
	ok, err := afero.Exists(h.fs, h.path)
	if err != nil || !ok {
		logging.Debug("Credentials file not found", zap.String("path", h.path))
		return false
	}
	return true
}

// Read decodes the stored record into out and returns the number of bytes
// consumed. It returns 0 when the record is absent or empty, and leaves out
// untouched in that case.
func (h *Handler) Read(out *Credential) int {
	f, err := h.fs.Open(h.path)
	if err != nil {
		logging.Debug("Cannot read credentials", zap.String("path", h.path), zap.Error(err))
		return 0
	}
	defer func() { _ = f.Close() }()

	var buf [MaxRecordSize]byte
	n, err := io.ReadFull(f, buf[:])
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		logging.Warn("Credentials read failed", zap.String("path", h.path), zap.Error(err))
		return 0
	}
	if n == 0 {
		return 0
	}

	id, rest := splitField(buf[:n], fieldSeparator)
	secret, _ := splitField(rest, terminator)

	out.SSID = string(h.codec.Decode(id))
	out.Password = string(h.codec.Decode(secret))

	logging.Info("Read credentials", zap.Int("bytes", n), zap.String("ssid", out.SSID))
	return n
}

// splitField returns the bytes before delim (bounded by MaxFieldLen) and
// whatever follows the byte after the field.
func splitField(b []byte, delim byte) (field, rest []byte) {
	i := 0
	for i < len(b) && i < MaxFieldLen && b[i] != delim {
		i++
	}
	field = b[:i]
	if i < len(b) {
		rest = b[i+1:]
	}
	return field, rest
}

// Write replaces the stored record with cred and returns the number of bytes
// written. The previous record is removed first; a power loss between the two
// steps leaves no record, which Read reports as absent.
func (h *Handler) Write(cred Credential) (int, error) {
	if err := cred.Validate(); err != nil {
		return 0, err
	}

	id := h.codec.Encode([]byte(cred.SSID))
	secret := h.codec.Encode([]byte(cred.Password))
	if bytes.IndexAny(id, "\x00\x01") >= 0 || bytes.IndexAny(secret, "\x00\x01") >= 0 {
		return 0, fmt.Errorf("%w: encodes to a reserved byte with seed %d", ErrInvalidCredential, h.codec.Seed())
	}

	record := make([]byte, 0, MaxRecordSize)
	record = append(record, id...)
	record = append(record, fieldSeparator)
	record = append(record, secret...)
	record = append(record, terminator)

	if dir := filepath.Dir(h.path); dir != "" {
		if err := h.fs.MkdirAll(dir, 0o700); err != nil {
			return 0, fmt.Errorf("failed to create credentials directory: %w", err)
		}
	}

	if err := h.fs.Remove(h.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return 0, fmt.Errorf("failed to remove previous credentials: %w", err)
	}

	f, err := h.fs.OpenFile(h.path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		logging.Error("Cannot write credentials", zap.String("path", h.path), zap.Error(err))
		return 0, fmt.Errorf("failed to open credentials file: %w", err)
	}

	n, err := f.Write(record)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		logging.Error("Cannot write credentials", zap.String("path", h.path), zap.Error(err))
		return n, fmt.Errorf("failed to write credentials: %w", err)
	}

	logging.Info("Written credentials",
		zap.Int("bytes", n),
		zap.String("ssid", cred.SSID),
		logging.Secret("password", cred.Password),
	)
	return n, nil
}

// Erase overwrites the record with a filler pattern and deletes it.
func (h *Handler) Erase() bool {
	f, err := h.fs.OpenFile(h.path, os.O_WRONLY, 0)
	if err != nil {
		logging.Info("Could not erase credentials file", zap.String("path", h.path), zap.Error(err))
		return false
	}

	_, werr := f.Write(eraseFiller)
	_ = f.Close()
	if werr != nil {
		logging.Warn("Could not overwrite credentials file", zap.String("path", h.path), zap.Error(werr))
	}

	if err := h.fs.Remove(h.path); err != nil {
		logging.Error("Could not remove credentials file", zap.String("path", h.path), zap.Error(err))
		return false
	}

	logging.Info("Erased credentials file", zap.String("path", h.path))
	return true
}
