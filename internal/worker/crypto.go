package worker

import (
	"context"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"golang.org/x/crypto/argon2"

	"fileforge/internal/config"
	"fileforge/internal/storage"
)

// Container layout for ENCRYPT/DECRYPT output (spec §4.E.3 "self-describing
// container"): a 16-byte Argon2id salt, a 12-byte GCM nonce, a 4-byte
// big-endian ciphertext length, then the AES-256-GCM ciphertext (tag
// included). Unlike the source this replaces,
// no key material is ever written alongside the ciphertext — only the
// KDF salt, from which the key is re-derived from the deployment
// passphrase at decrypt time (spec §9).
const (
	saltSize  = 16
	nonceSize = 12
)

func deriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32)
}

// EncryptHandlerFor closes over the deployment passphrase so the
// handler can be registered without threading config through the
// generic HandlerFunc signature.
func EncryptHandlerFor(cfg *config.Config) HandlerFunc {
	return func(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
		if cfg.EncryptionPassphraseMissing() {
			return nil, fmt.Errorf("encrypt: no encryption passphrase configured")
		}

		plaintext, err := os.ReadFile(jc.InputPath)
		if err != nil {
			return nil, fmt.Errorf("encrypt: read input: %w", err)
		}

		salt := make([]byte, saltSize)
		if _, err := rand.Read(salt); err != nil {
			return nil, fmt.Errorf("encrypt: generate salt: %w", err)
		}
		key := deriveKey(cfg.EncryptionPassphrase, salt)

		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("encrypt: new cipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("encrypt: new gcm: %w", err)
		}

		nonce := make([]byte, nonceSize)
		if _, err := rand.Read(nonce); err != nil {
			return nil, fmt.Errorf("encrypt: generate nonce: %w", err)
		}

		ciphertext := gcm.Seal(nil, nonce, plaintext, nil)

		name := fmt.Sprintf("%s_encrypted%s.enc", stem(jc.OriginalName), filepath.Ext(jc.OriginalName))
		outPath := filepath.Join(jc.TempDir, name)
		f, err := os.Create(outPath)
		if err != nil {
			return nil, fmt.Errorf("encrypt: create output: %w", err)
		}
		defer f.Close()

		if err := writeContainer(f, salt, nonce, ciphertext); err != nil {
			return nil, err
		}

		return &Output{LocalPath: outPath, Bucket: storage.BucketEncrypted, MimeType: "application/octet-stream", Filename: name}, nil
	}
}

// DecryptHandlerFor is the inverse of EncryptHandlerFor.
func DecryptHandlerFor(cfg *config.Config) HandlerFunc {
	return func(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
		if cfg.EncryptionPassphraseMissing() {
			return nil, fmt.Errorf("decrypt: no encryption passphrase configured")
		}

		f, err := os.Open(jc.InputPath)
		if err != nil {
			return nil, fmt.Errorf("decrypt: open input: %w", err)
		}
		defer f.Close()

		salt, nonce, ciphertext, err := readContainer(f)
		if err != nil {
			return nil, err
		}

		key := deriveKey(cfg.EncryptionPassphrase, salt)
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("decrypt: new cipher: %w", err)
		}
		gcm, err := cipher.NewGCM(block)
		if err != nil {
			return nil, fmt.Errorf("decrypt: new gcm: %w", err)
		}

		plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
		if err != nil {
			return nil, fmt.Errorf("decrypt: authentication failed: %w", err)
		}

		name := strings.TrimSuffix(jc.OriginalName, ".enc")
		outPath := filepath.Join(jc.TempDir, name)
		if err := os.WriteFile(outPath, plaintext, 0o600); err != nil {
			return nil, fmt.Errorf("decrypt: write output: %w", err)
		}

		return &Output{LocalPath: outPath, Bucket: storage.BucketProcessed, MimeType: "application/octet-stream", Filename: name}, nil
	}
}

func writeContainer(w io.Writer, salt, nonce, ciphertext []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(ciphertext)))

	if _, err := w.Write(salt); err != nil {
		return fmt.Errorf("write container salt: %w", err)
	}
	if _, err := w.Write(nonce); err != nil {
		return fmt.Errorf("write container nonce: %w", err)
	}
	if _, err := w.Write(lenBuf[:]); err != nil {
		return fmt.Errorf("write container length: %w", err)
	}
	if _, err := w.Write(ciphertext); err != nil {
		return fmt.Errorf("write container ciphertext: %w", err)
	}
	return nil
}

func readContainer(r io.Reader) (salt, nonce, ciphertext []byte, err error) {
	salt = make([]byte, saltSize)
	if _, err = io.ReadFull(r, salt); err != nil {
		return nil, nil, nil, fmt.Errorf("read container salt: %w", err)
	}
	nonce = make([]byte, nonceSize)
	if _, err = io.ReadFull(r, nonce); err != nil {
		return nil, nil, nil, fmt.Errorf("read container nonce: %w", err)
	}
	var lenBuf [4]byte
	if _, err = io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, nil, nil, fmt.Errorf("read container length: %w", err)
	}
	ciphertext = make([]byte, binary.BigEndian.Uint32(lenBuf[:]))
	if _, err = io.ReadFull(r, ciphertext); err != nil {
		return nil, nil, nil, fmt.Errorf("read container ciphertext: %w", err)
	}
	return salt, nonce, ciphertext, nil
}
