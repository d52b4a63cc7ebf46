package worker

import (
	"bufio"
	"encoding/binary"
	"io"
	"net"
	"os"
	"path/filepath"
	"testing"
)

// fakeClamd speaks just enough of the INSTREAM protocol to exercise
// clamdClient.scan: read chunks until the zero-length terminator, then
// reply with a fixed verdict line.
func fakeClamd(t *testing.T, verdict string) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	t.Cleanup(func() { ln.Close() })

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()

		r := bufio.NewReader(conn)
		cmd, _ := r.ReadString(0)
		if cmd == "" {
			return
		}
		for {
			var lenBuf [4]byte
			if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
				return
			}
			n := binary.BigEndian.Uint32(lenBuf[:])
			if n == 0 {
				break
			}
			if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
				return
			}
		}
		conn.Write([]byte(verdict + "\n"))
	}()

	return ln.Addr().String()
}

func TestClamdClientScanClean(t *testing.T) {
	addr := fakeClamd(t, "stream: OK")

	path := filepath.Join(t.TempDir(), "file.bin")
	if err := os.WriteFile(path, []byte("hello world"), 0o600); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	verdict, err := newClamdClient(addr).scan(path)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if verdict != "stream: OK" {
		t.Errorf("verdict = %q, want %q", verdict, "stream: OK")
	}
}

func TestClamdClientScanFound(t *testing.T) {
	addr := fakeClamd(t, "stream: Eicar-Test-Signature FOUND")

	path := filepath.Join(t.TempDir(), "eicar.bin")
	if err := os.WriteFile(path, []byte("X5O!P%@AP[4\\PZX54(P^)7CC)7}$EICAR"), 0o600); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	verdict, err := newClamdClient(addr).scan(path)
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if verdict != "stream: Eicar-Test-Signature FOUND" {
		t.Errorf("verdict = %q", verdict)
	}
}

func TestClamdClientScanUnreachable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.bin")
	if err := os.WriteFile(path, []byte("data"), 0o600); err != nil {
		t.Fatalf("write test file: %v", err)
	}

	_, err := newClamdClient("127.0.0.1:1").scan(path)
	if err == nil {
		t.Error("scan against an unreachable daemon should error")
	}
}
