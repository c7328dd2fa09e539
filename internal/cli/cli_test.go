package cli

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParseDefaultsToRun(t *testing.T) {
	parsed, err := Parse(nil)
	require.NoError(t, err)
	require.False(t, parsed.ShowHelp)
	require.Equal(t, CommandRun, parsed.Command)
}

func TestParseCommandWithConfig(t *testing.T) {
	parsed, err := Parse([]string{"--config", "/tmp/livescribe.jsonc", "doctor"})
	require.NoError(t, err)
	require.Equal(t, CommandDoctor, parsed.Command)
	require.Equal(t, "/tmp/livescribe.jsonc", parsed.ConfigPath)
	require.False(t, parsed.ShowHelp)
}

func TestParseArgMatrix(t *testing.T) {
	tests := []struct {
		name     string
		args     []string
		wantErr  string
		wantCmd  Command
		wantHelp bool
		wantPath string
	}{
		{name: "help short flag", args: []string{"-h"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help long flag", args: []string{"--help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "help command", args: []string{"help"}, wantCmd: CommandHelp, wantHelp: true},
		{name: "version flag", args: []string{"--version"}, wantCmd: CommandVersion},
		{name: "config after command", args: []string{"status", "--config", "/tmp/cfg"}, wantErr: "unexpected arguments after command"},
		{name: "missing config path", args: []string{"--config"}, wantErr: "requires a path"},
		{name: "empty config equals", args: []string{"--config="}, wantErr: "requires a path"},
		{name: "unknown flag", args: []string{"--bogus"}, wantErr: "unknown flag"},
		{name: "unknown command", args: []string{"toggle"}, wantErr: "unknown command"},
		{name: "extra args after command", args: []string{"doctor", "extra"}, wantErr: "unexpected arguments"},
		{name: "listen", args: []string{"listen"}, wantCmd: CommandListen},
		{name: "mute", args: []string{"mute"}, wantCmd: CommandMute},
		{name: "copy with config equals", args: []string{"--config=/tmp/cfg", "copy"}, wantCmd: CommandCopy, wantPath: "/tmp/cfg"},
		{name: "stop with config", args: []string{"--config", "/tmp/cfg", "stop"}, wantCmd: CommandStop, wantPath: "/tmp/cfg"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			parsed, err := Parse(tc.args)
			if tc.wantErr != "" {
				require.Error(t, err)
				require.Contains(t, err.Error(), tc.wantErr)
				return
			}

			require.NoError(t, err)
			require.Equal(t, tc.wantCmd, parsed.Command)
			require.Equal(t, tc.wantHelp, parsed.ShowHelp)
			require.Equal(t, tc.wantPath, parsed.ConfigPath)
		})
	}
}

func TestCommandClasses(t *testing.T) {
	for _, cmd := range []Command{CommandStart, CommandStop, CommandMute, CommandReset, CommandStatus, CommandCopy} {
		require.True(t, cmd.Remote(), cmd)
		require.False(t, cmd.Owner(), cmd)
	}
	for _, cmd := range []Command{CommandRun, CommandListen} {
		require.True(t, cmd.Owner(), cmd)
		require.False(t, cmd.Remote(), cmd)
	}
	require.False(t, CommandDoctor.Remote())
	require.False(t, CommandDoctor.Owner())
}

func TestHelpTextIncludesCoreCommands(t *testing.T) {
	text := HelpText("livescribe")
	for _, want := range []string{"run", "listen", "start", "stop", "mute", "reset", "copy", "doctor", "--config PATH"} {
		require.Contains(t, text, want)
	}
}
