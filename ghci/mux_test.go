//go:build unix

package ghci

import (
	"bytes"
	"io"
	"math"
	"os"
	"strings"
	"testing"
	"time"
)

func TestTimeoutMillis(t *testing.T) {
	tests := []struct {
		name string
		d    time.Duration
		want int
	}{
		{"zero", 0, 0},
		{"negative", -time.Second, 0},
		{"sub-millisecond rounds up", 300 * time.Microsecond, 1},
		{"exact", 20 * time.Millisecond, 20},
		{"fractional rounds up", 20*time.Millisecond + 1, 21},
		{"overflow means infinite", time.Duration(math.MaxInt64), -1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := timeoutMillis(tt.d); got != tt.want {
				t.Errorf("timeoutMillis(%v) = %d, want %d", tt.d, got, tt.want)
			}
		})
	}
}

func newPipe(t *testing.T) (*nonblockingReader, *os.File) {
	t.Helper()
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() {
		_ = r.Close()
		_ = w.Close()
	})
	nr, err := newNonblockingReader(r)
	if err != nil {
		t.Fatalf("newNonblockingReader() error: %v", err)
	}
	return nr, w
}

func TestReadAvailable(t *testing.T) {
	r, w := newPipe(t)

	var buf bytes.Buffer
	n, err := r.readAvailable(&buf)
	if err != nil || n != 0 {
		t.Fatalf("readAvailable() on empty pipe = %d, %v; want 0, nil", n, err)
	}

	if _, err := w.WriteString("abc"); err != nil {
		t.Fatal(err)
	}
	n, err = r.readAvailable(&buf)
	if err != nil || n != 3 || buf.String() != "abc" {
		t.Fatalf("readAvailable() = %d, %v, %q", n, err, buf.String())
	}

	// Appends rather than overwrites.
	if _, err := w.WriteString("def"); err != nil {
		t.Fatal(err)
	}
	if _, err := r.readAvailable(&buf); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "abcdef" {
		t.Errorf("buffer = %q, want abcdef", buf.String())
	}

	_ = w.Close()
	n, err = r.readAvailable(&buf)
	if err != io.EOF || n != 0 {
		t.Errorf("readAvailable() after close = %d, %v; want 0, EOF", n, err)
	}
}

func TestReadAvailable_DrainsMultipleChunks(t *testing.T) {
	r, w := newPipe(t)

	// Stays under the default pipe capacity so the write does not block.
	payload := strings.Repeat("x", 5*readChunk+17)
	if _, err := w.WriteString(payload); err != nil {
		t.Fatal(err)
	}
	_ = w.Close()

	var buf bytes.Buffer
	n, err := r.readAvailable(&buf)
	if err != nil {
		t.Fatalf("readAvailable() error: %v", err)
	}
	if n != len(payload) || buf.String() != payload {
		t.Errorf("read %d bytes, want %d", n, len(payload))
	}
}

func TestPollReadable(t *testing.T) {
	t.Run("times out with nothing ready", func(t *testing.T) {
		errR, _ := newPipe(t)
		outR, _ := newPipe(t)

		start := time.Now()
		ready, err := pollReadable(errR.fd, outR.fd, -1, 20*time.Millisecond)
		if err != nil {
			t.Fatalf("pollReadable() error: %v", err)
		}
		if ready.any() {
			t.Errorf("pollReadable() = %+v, want nothing ready", ready)
		}
		if elapsed := time.Since(start); elapsed < 20*time.Millisecond {
			t.Errorf("returned after %v", elapsed)
		}
	})

	t.Run("stdout ready", func(t *testing.T) {
		errR, _ := newPipe(t)
		outR, outW := newPipe(t)
		if _, err := outW.WriteString("x"); err != nil {
			t.Fatal(err)
		}

		ready, err := pollReadable(errR.fd, outR.fd, -1, time.Second)
		if err != nil {
			t.Fatalf("pollReadable() error: %v", err)
		}
		if !ready.stdout || ready.stderr {
			t.Errorf("pollReadable() = %+v, want stdout only", ready)
		}
	})

	t.Run("both ready", func(t *testing.T) {
		errR, errW := newPipe(t)
		outR, outW := newPipe(t)
		_, _ = errW.WriteString("e")
		_, _ = outW.WriteString("o")

		ready, err := pollReadable(errR.fd, outR.fd, -1, -1)
		if err != nil {
			t.Fatalf("pollReadable() error: %v", err)
		}
		if !ready.stdout || !ready.stderr {
			t.Errorf("pollReadable() = %+v, want both", ready)
		}
	})

	t.Run("closed writer is readable", func(t *testing.T) {
		errR, errW := newPipe(t)
		outR, _ := newPipe(t)
		_ = errW.Close()

		ready, err := pollReadable(errR.fd, outR.fd, -1, time.Second)
		if err != nil {
			t.Fatalf("pollReadable() error: %v", err)
		}
		if !ready.stderr {
			t.Errorf("pollReadable() = %+v, want stderr ready on hangup", ready)
		}
	})

	t.Run("negative descriptor is skipped", func(t *testing.T) {
		_, errW := newPipe(t)
		outR, outW := newPipe(t)
		_ = errW.Close()
		_, _ = outW.WriteString("o")

		ready, err := pollReadable(-1, outR.fd, -1, time.Second)
		if err != nil {
			t.Fatalf("pollReadable() error: %v", err)
		}
		if ready.stderr || !ready.stdout {
			t.Errorf("pollReadable() = %+v, want stdout only", ready)
		}
	})

	t.Run("wake descriptor interrupts an unbounded wait", func(t *testing.T) {
		errR, _ := newPipe(t)
		outR, _ := newPipe(t)
		wakeR, wakeW := newPipe(t)

		go func() {
			time.Sleep(20 * time.Millisecond)
			_, _ = wakeW.Write([]byte{0})
		}()

		start := time.Now()
		ready, err := pollReadable(errR.fd, outR.fd, wakeR.fd, 0)
		if err != nil {
			t.Fatalf("pollReadable() error: %v", err)
		}
		if !ready.woken || ready.stdout || ready.stderr {
			t.Errorf("pollReadable() = %+v, want woken only", ready)
		}
		if elapsed := time.Since(start); elapsed > 5*time.Second {
			t.Errorf("wake took %v", elapsed)
		}
	})
}
