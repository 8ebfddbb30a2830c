package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToHelp(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)
	require.Equal(t, CommandHelp, parsed.Command)
}

func TestParseCommands(t *testing.T) {
	for _, cmd := range []Command{
		CommandRecord, CommandStop, CommandPause, CommandResume,
		CommandCancel, CommandStatus, CommandDrain, CommandQueue,
		CommandDoctor, CommandVersion,
	} {
		parsed, err := Parse([]string{string(cmd)})
		require.NoError(t, err, string(cmd))
		require.Equal(t, cmd, parsed.Command)
		require.False(t, parsed.ShowHelp, string(cmd))
	}
}

func TestParseFlags(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/c.yaml", "--language", "de", "--method", "hosted-api", "record"})
	require.NoError(t, err)
	require.Equal(t, CommandRecord, parsed.Command)
	require.Equal(t, "/tmp/c.yaml", parsed.ConfigPath)
	require.Equal(t, "de", parsed.Language)
	require.Equal(t, "hosted-api", parsed.Method)
}

func TestParseFlagValueMissing(t *testing.T) {
	for _, flag := range []string{"--config", "--language", "--method"} {
		_, err := Parse([]string{flag})
		require.Error(t, err, flag)
	}
}

func TestParseUnknownCommandAndFlag(t *testing.T) {
	_, err := Parse([]string{"levitate"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown command")

	_, err = Parse([]string{"--frobnicate"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "unknown flag")
}

func TestParseHelpAndVersionFlags(t *testing.T) {
	parsed, err := Parse([]string{"-h"})
	require.NoError(t, err)
	require.True(t, parsed.ShowHelp)

	parsed, err = Parse([]string{"--version"})
	require.NoError(t, err)
	require.Equal(t, CommandVersion, parsed.Command)
	require.False(t, parsed.ShowHelp)
}

func TestHelpTextNamesEveryCommand(t *testing.T) {
	text := HelpText("voicepipe")
	for _, cmd := range []string{"record", "stop", "pause", "resume", "cancel", "status", "drain", "queue", "doctor", "version"} {
		require.Contains(t, text, cmd)
	}
	require.Contains(t, text, "voicepipe <command>")
}
