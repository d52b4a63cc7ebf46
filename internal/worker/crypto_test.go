package worker

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"fileforge/internal/config"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "secret.txt")
	want := []byte("the object store never sees this in the clear")
	if err := os.WriteFile(inputPath, want, 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	cfg := &config.Config{EncryptionPassphrase: "correct horse battery staple"}

	encOut, err := EncryptHandlerFor(cfg)(context.Background(), nil, &JobContext{
		InputPath:    inputPath,
		OriginalName: "secret.txt",
		TempDir:      dir,
	})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}
	if encOut.Filename != "secret_encrypted.txt.enc" {
		t.Errorf("encrypt filename = %q, want secret_encrypted.txt.enc", encOut.Filename)
	}

	ciphertext, err := os.ReadFile(encOut.LocalPath)
	if err != nil {
		t.Fatalf("read ciphertext: %v", err)
	}
	if string(ciphertext) == string(want) {
		t.Fatal("ciphertext matches plaintext: encryption did nothing")
	}

	decOut, err := DecryptHandlerFor(cfg)(context.Background(), nil, &JobContext{
		InputPath:    encOut.LocalPath,
		OriginalName: encOut.Filename,
		TempDir:      dir,
	})
	if err != nil {
		t.Fatalf("decrypt: %v", err)
	}

	got, err := os.ReadFile(decOut.LocalPath)
	if err != nil {
		t.Fatalf("read decrypted output: %v", err)
	}
	if string(got) != string(want) {
		t.Errorf("roundtrip mismatch: got %q, want %q", got, want)
	}
}

func TestDecryptWrongPassphraseFails(t *testing.T) {
	dir := t.TempDir()
	inputPath := filepath.Join(dir, "secret.txt")
	if err := os.WriteFile(inputPath, []byte("data"), 0o600); err != nil {
		t.Fatalf("write input: %v", err)
	}

	encOut, err := EncryptHandlerFor(&config.Config{EncryptionPassphrase: "right"})(context.Background(), nil, &JobContext{
		InputPath:    inputPath,
		OriginalName: "secret.txt",
		TempDir:      dir,
	})
	if err != nil {
		t.Fatalf("encrypt: %v", err)
	}

	_, err = DecryptHandlerFor(&config.Config{EncryptionPassphrase: "wrong"})(context.Background(), nil, &JobContext{
		InputPath:    encOut.LocalPath,
		OriginalName: encOut.Filename,
		TempDir:      dir,
	})
	if err == nil {
		t.Error("decrypt with wrong passphrase should fail authentication")
	}
}

func TestEncryptMissingPassphrase(t *testing.T) {
	_, err := EncryptHandlerFor(&config.Config{})(context.Background(), nil, &JobContext{})
	if err == nil {
		t.Error("encrypt with no configured passphrase should error")
	}
}
