package token

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	json "github.com/bytedance/sonic"
	"go.uber.org/zap"
	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

var _ Store = (*FileStore)(nil)

var fileMagic = []byte("TKS1")

const (
	saltSize   = 16
	headerSize = 4 + 4 + 4 + 1 + saltSize // magic, time, memory, threads, salt
)

var errCorruptFile = errors.New("corrupt token file")

type kdfParams struct {
	time    uint32
	memory  uint32 // KiB
	threads uint8
}

var defaultKDFParams = kdfParams{time: 1, memory: 64 * 1024, threads: 4}

// FileStore keeps the pair encrypted on disk.
//
// The file key is derived from a passphrase with argon2id and the pair is sealed with
// XChaCha20-Poly1305. Writes go through a temporary file and a rename, so readers see either
// the previous pair or the new one.
type FileStore struct {
	mu         sync.Mutex
	path       string
	passphrase []byte
	kdf        kdfParams
	logger     *zap.Logger

	// last derived key, reused while the file keeps the same salt and cost
	cachedHeader []byte
	cachedKey    []byte
}

// NewFileStore creates a store backed by path. The parent directory is created when missing.
func NewFileStore(path string, passphrase string, opts ...Option) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("token file path cannot be empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("failed to create token directory: %w", err)
	}

	o := defaultOptions()
	o.apply(opts...)

	return &FileStore{
		path:       path,
		passphrase: []byte(passphrase),
		kdf:        o.kdf,
		logger:     o.logger,
	}, nil
}

// Path returns the backing file path.
func (s *FileStore) Path() string {
	return s.path
}

// AccessToken returns the current access token.
func (s *FileStore) AccessToken(ctx context.Context) string {
	pair, _ := s.Tokens(ctx)
	return pair.Access
}

// RefreshToken returns the current refresh token.
func (s *FileStore) RefreshToken(ctx context.Context) string {
	pair, _ := s.Tokens(ctx)
	return pair.Refresh
}

// Tokens reads and decrypts the pair. Missing, corrupt or undecryptable files read as absent.
func (s *FileStore) Tokens(_ context.Context) (Pair, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			s.logger.Warn("read token file failed", zap.String("path", s.path), zap.Error(err))
		}
		return Pair{}, false
	}

	pair, err := s.open(data)
	if err != nil {
		s.logger.Warn("open token file failed", zap.String("path", s.path), zap.Error(err))
		return Pair{}, false
	}
	return pair, !pair.IsZero()
}

// SetTokens encrypts and replaces the stored pair.
func (s *FileStore) SetTokens(_ context.Context, pair Pair) error {
	if err := validate(pair); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := s.seal(pair)
	if err != nil {
		return err
	}
	return writeFileAtomic(s.path, data)
}

// Clear deletes the token file.
func (s *FileStore) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("failed to remove token file: %w", err)
	}
	return nil
}

func (s *FileStore) seal(pair Pair) ([]byte, error) {
	plain, err := json.Marshal(pair)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal token pair: %w", err)
	}

	header := s.cachedHeader
	if header == nil || !sameParams(header, s.kdf) {
		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("failed to generate salt: %w", err)
		}
		header = buildHeader(s.kdf, salt)
	}

	aead, err := chacha20poly1305.NewX(s.keyFor(header))
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(header)+len(nonce)+len(plain)+aead.Overhead())
	out = append(out, header...)
	out = append(out, nonce...)
	return aead.Seal(out, nonce, plain, header), nil
}

func (s *FileStore) open(data []byte) (Pair, error) {
	if len(data) < headerSize+chacha20poly1305.NonceSizeX || !bytes.Equal(data[:4], fileMagic) {
		return Pair{}, errCorruptFile
	}
	header := data[:headerSize]
	if _, ok := parseParams(header); !ok {
		return Pair{}, errCorruptFile
	}
	nonce := data[headerSize : headerSize+chacha20poly1305.NonceSizeX]
	sealed := data[headerSize+chacha20poly1305.NonceSizeX:]

	aead, err := chacha20poly1305.NewX(s.keyFor(header))
	if err != nil {
		return Pair{}, err
	}
	plain, err := aead.Open(nil, nonce, sealed, header)
	if err != nil {
		return Pair{}, fmt.Errorf("failed to decrypt token file: %w", err)
	}

	var pair Pair
	if err := json.Unmarshal(plain, &pair); err != nil {
		return Pair{}, fmt.Errorf("failed to unmarshal token pair: %w", err)
	}
	return pair, nil
}

// keyFor derives (or reuses) the file key for header. Caller holds s.mu.
func (s *FileStore) keyFor(header []byte) []byte {
	if s.cachedKey != nil && bytes.Equal(header, s.cachedHeader) {
		return s.cachedKey
	}
	p, _ := parseParams(header)
	salt := header[headerSize-saltSize:]
	key := argon2.IDKey(s.passphrase, salt, p.time, p.memory, p.threads, chacha20poly1305.KeySize)

	s.cachedHeader = append([]byte(nil), header...)
	s.cachedKey = key
	return key
}

func buildHeader(p kdfParams, salt []byte) []byte {
	h := make([]byte, 0, headerSize)
	h = append(h, fileMagic...)
	h = binary.BigEndian.AppendUint32(h, p.time)
	h = binary.BigEndian.AppendUint32(h, p.memory)
	h = append(h, p.threads)
	return append(h, salt...)
}

func parseParams(header []byte) (kdfParams, bool) {
	if len(header) != headerSize {
		return kdfParams{}, false
	}
	p := kdfParams{
		time:    binary.BigEndian.Uint32(header[4:8]),
		memory:  binary.BigEndian.Uint32(header[8:12]),
		threads: header[12],
	}
	// refuse absurd costs from a tampered file
	if p.time == 0 || p.time > 16 || p.memory == 0 || p.memory > 1<<20 || p.threads == 0 {
		return kdfParams{}, false
	}
	return p, true
}

func sameParams(header []byte, p kdfParams) bool {
	got, ok := parseParams(header)
	return ok && got == p
}

func writeFileAtomic(path string, data []byte) error {
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tokens-*")
	if err != nil {
		return fmt.Errorf("failed to create temp token file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to chmod temp token file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write temp token file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync temp token file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to close temp token file: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("failed to replace token file: %w", err)
	}
	return nil
}
