package main

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestRootCommand_HelpListsCommands(t *testing.T) {
	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{"--help"})

	require.NoError(t, root.Execute())

	output := buf.String()
	require.Contains(t, output, "create")
	require.Contains(t, output, "predict")
	require.Contains(t, output, "models")
	require.Contains(t, output, "serve")
	require.Contains(t, output, "dashboard")
}

func TestRootCommand_BareInvocationShowsHelpWithoutTTY(t *testing.T) {
	// go test wires stdin to /dev/null, so the bare invocation falls
	// through to the help text instead of opening the dashboard.
	root := newRootCmd()
	buf := &bytes.Buffer{}
	root.SetOut(buf)
	root.SetErr(buf)
	root.SetArgs([]string{})

	require.NoError(t, root.Execute())
	require.Contains(t, buf.String(), "Usage:")
}
