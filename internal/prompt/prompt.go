// Package prompt asks the operator free-text questions on a terminal.
package prompt

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// ErrNoInteractiveSession is returned by Ask when no operator can answer:
// stdin is not a terminal, or interactivity was switched off.
var ErrNoInteractiveSession = errors.New("no interactive session available")

// Terminal prompts on Out and reads answers line by line from In.
type Terminal struct {
	In          io.Reader
	Out         io.Writer
	Interactive bool

	reader *bufio.Reader
}

// NewTerminal returns a Terminal bound to in and out. The session counts as
// interactive only when in is a terminal (including Cygwin/MSYS ptys).
func NewTerminal(in *os.File, out io.Writer) *Terminal {
	fd := in.Fd()
	return &Terminal{
		In:          in,
		Out:         out,
		Interactive: isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd),
	}
}

// Ask prints text followed by a space and returns the trimmed answer.
// End of input before any character is read yields an empty answer.
func (t *Terminal) Ask(ctx context.Context, text string) (string, error) {
	if !t.Interactive {
		return "", ErrNoInteractiveSession
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if _, err := fmt.Fprint(t.Out, text+" "); err != nil {
		return "", fmt.Errorf("write prompt: %w", err)
	}

	if t.reader == nil {
		t.reader = bufio.NewReader(t.In)
	}
	line, err := t.reader.ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", fmt.Errorf("read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Fixed answers every question with the same value without prompting. It
// stands in for the terminal when the answer was supplied up front.
type Fixed string

// Ask returns f.
func (f Fixed) Ask(context.Context, string) (string, error) {
	return string(f), nil
}
