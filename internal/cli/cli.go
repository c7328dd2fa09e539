// Package cli parses livescribe command-line arguments.
package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRun     Command = "run"
	CommandListen  Command = "listen"
	CommandStart   Command = "start"
	CommandStop    Command = "stop"
	CommandMute    Command = "mute"
	CommandReset   Command = "reset"
	CommandStatus  Command = "status"
	CommandCopy    Command = "copy"
	CommandDevices Command = "devices"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRun:     {},
	CommandListen:  {},
	CommandStart:   {},
	CommandStop:    {},
	CommandMute:    {},
	CommandReset:   {},
	CommandStatus:  {},
	CommandCopy:    {},
	CommandDevices: {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

// Remote reports whether c is forwarded to a running session over the socket.
func (c Command) Remote() bool {
	switch c {
	case CommandStart, CommandStop, CommandMute, CommandReset, CommandStatus, CommandCopy:
		return true
	default:
		return false
	}
}

// Owner reports whether c starts a session that owns the recognizer.
func (c Command) Owner() bool {
	return c == CommandRun || c == CommandListen
}

type Parsed struct {
	Command    Command
	ConfigPath string
	ShowHelp   bool
}

// Parse reads [flags] <command>. With no command the interactive session runs.
func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandRun}

	for i := 0; i < len(args); i++ {
		arg := args[i]

		switch arg {
		case "-h", "--help":
			parsed.ShowHelp = true
			parsed.Command = CommandHelp
		case "--version":
			parsed.ShowHelp = false
			parsed.Command = CommandVersion
		case "--config":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--config requires a path")
			}
			parsed.ConfigPath = args[i]
		default:
			if path, ok := strings.CutPrefix(arg, "--config="); ok {
				if path == "" {
					return Parsed{}, errors.New("--config requires a path")
				}
				parsed.ConfigPath = path
				continue
			}
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
			if i != len(args)-1 {
				return Parsed{}, fmt.Errorf("unexpected arguments after command %q", arg)
			}
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s [--config PATH] [command]

Session commands:
  run       Open the live transcript panel (default)
  listen    Print finalized lines to stdout and start listening immediately

Remote commands (sent to the running session):
  start     Start listening
  stop      Stop listening
  mute      Toggle the microphone mute
  reset     Clear the transcript
  status    Print the current state
  copy      Copy the transcript to the clipboard

Diagnostics:
  devices   List available input devices
  doctor    Run configuration and environment checks
  version   Print version information
  help      Show this help

Flags:
  --config PATH   Config file path (default: $XDG_CONFIG_HOME/livescribe/config.jsonc)
  -h, --help      Show help
  --version       Show version
`, binaryName)
}
