package main

import (
	"bytes"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestReadPassword_Piped(t *testing.T) {
	pw, err := readPassword(strings.NewReader("s3cret\n"), &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, "s3cret", pw)

	pw, err = readPassword(strings.NewReader("no-newline"), &bytes.Buffer{})
	require.NoError(t, err)
	require.Equal(t, "no-newline", pw)
}

func TestVersionCommand(t *testing.T) {
	cmd := rootCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"version"})

	require.NoError(t, cmd.Execute())
	require.Contains(t, out.String(), "accounts version")
}

func TestSetPasswordRequiresUsername(t *testing.T) {
	cmd := rootCmd()
	cmd.SetOut(&bytes.Buffer{})
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs([]string{"user", "set-password"})

	err := cmd.Execute()
	require.Error(t, err)
	require.Contains(t, err.Error(), "username")
}
