// Package pinentry supplies token authentication secrets, either from
// a pre-configured value, a file, or an interactive prompt with local
// echo suppressed.
package pinentry

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"golang.org/x/term"
)

// Source supplies an authentication secret. The returned buffer is
// owned by the caller, which must wipe it after submission.
type Source interface {
	Pin() ([]byte, error)
}

// Static is a pre-supplied secret.
type Static []byte

// Pin returns a copy of the secret
func (s Static) Pin() ([]byte, error) {
	pin := make([]byte, len(s))
	copy(pin, s)
	return pin, nil
}

// File reads the secret from a file, trimming the trailing newline.
type File string

// Pin returns the secret loaded from the file
func (f File) Pin() ([]byte, error) {
	b, err := os.ReadFile(string(f))
	if err != nil {
		return nil, errors.WithMessagef(err, "unable to load PIN from %q", string(f))
	}
	return []byte(strings.TrimSpace(string(b))), nil
}

// Prompt asks for the secret interactively. When In is a terminal the
// echo is suppressed; otherwise a line is read as-is, which keeps the
// prompt usable in a pipeline.
type Prompt struct {
	Label string
	In    io.Reader
	Out   io.Writer
}

// Pin prompts for the secret
func (p *Prompt) Pin() ([]byte, error) {
	var in io.Reader = p.In
	if in == nil {
		in = os.Stdin
	}
	out := p.Out
	if out == nil {
		out = os.Stderr
	}
	label := p.Label
	if label == "" {
		label = "PIN"
	}

	fmt.Fprintf(out, "Enter %s: ", label)

	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		pin, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return nil, errors.WithMessage(err, "unable to read PIN")
		}
		return pin, nil
	}

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && line == "" {
		return nil, errors.WithMessage(err, "unable to read PIN")
	}
	return []byte(strings.TrimRight(line, "\r\n")), nil
}

// Wipe zeroes a secret buffer.
func Wipe(pin []byte) {
	for i := range pin {
		pin[i] = 0
	}
}
