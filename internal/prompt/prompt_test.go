package prompt

import (
	"bytes"
	"context"
	"errors"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTerminal_Ask(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"answer", "1.2.5\n", "1.2.5"},
		{"surrounding whitespace", "  1.2.5 \r\n", "1.2.5"},
		{"blank line", "\n", ""},
		{"eof without newline", "2.0.1", "2.0.1"},
		{"immediate eof", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			term := &Terminal{In: strings.NewReader(tt.input), Out: &out, Interactive: true}

			got, err := term.Ask(context.Background(), "What is the hotfix version? [1.2.1]")
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, "What is the hotfix version? [1.2.1] ", out.String())
		})
	}
}

func TestTerminal_Ask_ConsecutiveQuestions(t *testing.T) {
	term := &Terminal{In: strings.NewReader("first\nsecond\n"), Out: &bytes.Buffer{}, Interactive: true}

	a, err := term.Ask(context.Background(), "one?")
	require.NoError(t, err)
	b, err := term.Ask(context.Background(), "two?")
	require.NoError(t, err)

	assert.Equal(t, "first", a)
	assert.Equal(t, "second", b)
}

func TestTerminal_Ask_NotInteractive(t *testing.T) {
	var out bytes.Buffer
	term := &Terminal{In: strings.NewReader("1.2.5\n"), Out: &out, Interactive: false}

	_, err := term.Ask(context.Background(), "version?")
	assert.ErrorIs(t, err, ErrNoInteractiveSession)
	assert.Empty(t, out.String(), "nothing is printed without a session")
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("device gone") }

func TestTerminal_Ask_ReadError(t *testing.T) {
	term := &Terminal{In: failingReader{}, Out: &bytes.Buffer{}, Interactive: true}
	_, err := term.Ask(context.Background(), "version?")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "device gone")
}

func TestNewTerminal_PipeIsNotInteractive(t *testing.T) {
	r, w, err := os.Pipe()
	require.NoError(t, err)
	defer r.Close()
	defer w.Close()

	term := NewTerminal(r, &bytes.Buffer{})
	assert.False(t, term.Interactive)
}

func TestFixed(t *testing.T) {
	got, err := Fixed("3.0.1").Ask(context.Background(), "ignored")
	require.NoError(t, err)
	assert.Equal(t, "3.0.1", got)
}
