package textutil

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestIsBinary(t *testing.T) {
	t.Parallel()

	beyondWindow := bytes.Repeat([]byte{'a'}, BinarySniffLength+100)
	beyondWindow[BinarySniffLength+50] = 0x00

	atBoundary := bytes.Repeat([]byte{'a'}, BinarySniffLength)
	atBoundary[BinarySniffLength-1] = 0x00

	tests := []struct {
		name     string
		data     []byte
		expected bool
	}{
		{"nil", nil, false},
		{"empty", []byte{}, false},
		{"text", []byte("defmodule A do\nend\n"), false},
		{"nul in middle", []byte("hello\x00world"), true},
		{"nul at start", []byte("\x00start"), true},
		{"nul at sniff boundary", atBoundary, true},
		{"nul beyond sniff window", beyondWindow, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, IsBinary(tt.data))
		})
	}
}

func TestCountLines(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		data     string
		expected int
	}{
		{"empty", "", 0},
		{"single without newline", "x", 1},
		{"single with newline", "x\n", 1},
		{"partial last line", "a\nb", 2},
		{"blank lines", "\n\n\n", 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.expected, CountLines([]byte(tt.data)))
		})
	}
}

func TestCollapseSpace(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "@moduledoc false", CollapseSpace("  @moduledoc \n\t false "))
	assert.Empty(t, CollapseSpace(" \n "))
}

func TestEscapeNewlines(t *testing.T) {
	t.Parallel()

	assert.Equal(t, `"a\nb"`, EscapeNewlines("\"a\nb\""))
	assert.Equal(t, `x\ny`, EscapeNewlines("x\r\ny"))
	assert.Equal(t, "plain", EscapeNewlines("plain"))
}
