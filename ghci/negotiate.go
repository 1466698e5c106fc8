package ghci

import (
	"bufio"
	"bytes"
	"io"

	"github.com/Iron-Ham/ghcisession/internal/errors"
)

// Marker is the prompt installed during negotiation. Its appearance at the
// end of stdout marks the end of an evaluation. Output that itself ends
// with this text is misframed.
const Marker = "__ghci_go_prompt__>\n"

const (
	// defaultPrompt is the tail of ghci's stock prompt, "ghci> " or
	// "Prelude> " depending on the version.
	defaultPrompt = "> "

	negotiateBufSize = 1024
)

// negotiate waits for the first prompt, installs Marker as the prompt and
// clears the continuation prompt. r is read with blocking reads.
func negotiate(w *bufio.Writer, r io.Reader) error {
	if err := clearUntil(r, []byte(defaultPrompt)); err != nil {
		return errors.NewIOError("wait for prompt", err)
	}

	steps := []struct {
		op   string
		line string
	}{
		{"set prompt", `:set prompt "` + Marker[:len(Marker)-1] + `\n"`},
		{"set prompt-cont", `:set prompt-cont ""`},
	}
	for _, step := range steps {
		if err := writeLine(w, step.line); err != nil {
			return errors.NewIOError(step.op, err)
		}
		if err := clearUntil(r, []byte(Marker)); err != nil {
			return errors.NewIOError(step.op, err)
		}
	}
	return nil
}

func writeLine(w *bufio.Writer, line string) error {
	if _, err := w.WriteString(line); err != nil {
		return err
	}
	if err := w.WriteByte('\n'); err != nil {
		return err
	}
	return w.Flush()
}

// clearUntil discards bytes from r until a read leaves pattern at the tail
// of what has been read. When the buffer fills, only the last
// len(pattern)-1 bytes are kept so a match straddling two reads is still
// seen. EOF before a match is io.ErrUnexpectedEOF.
func clearUntil(r io.Reader, pattern []byte) error {
	buf := make([]byte, max(negotiateBufSize, 2*len(pattern)))
	end := 0
	for {
		if end == len(buf) {
			keep := len(pattern) - 1
			copy(buf, buf[end-keep:end])
			end = keep
		}

		n, err := r.Read(buf[end:])
		end += n
		if n > 0 && bytes.HasSuffix(buf[:end], pattern) {
			return nil
		}
		if err == io.EOF {
			return io.ErrUnexpectedEOF
		}
		if err != nil {
			return err
		}
	}
}
