package cli

import (
	"errors"
	"fmt"
	"strings"
)

type Command string

const (
	CommandRecord  Command = "record"
	CommandStop    Command = "stop"
	CommandPause   Command = "pause"
	CommandResume  Command = "resume"
	CommandCancel  Command = "cancel"
	CommandStatus  Command = "status"
	CommandDrain   Command = "drain"
	CommandQueue   Command = "queue"
	CommandDoctor  Command = "doctor"
	CommandVersion Command = "version"
	CommandHelp    Command = "help"
)

var validCommands = map[Command]struct{}{
	CommandRecord:  {},
	CommandStop:    {},
	CommandPause:   {},
	CommandResume:  {},
	CommandCancel:  {},
	CommandStatus:  {},
	CommandDrain:   {},
	CommandQueue:   {},
	CommandDoctor:  {},
	CommandVersion: {},
	CommandHelp:    {},
}

type Parsed struct {
	Command    Command
	ConfigPath string
	Language   string
	Method     string
	ShowHelp   bool
}

func Parse(args []string) (Parsed, error) {
	parsed := Parsed{Command: CommandHelp, ShowHelp: true}

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
		case "--language":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--language requires a code")
			}
			parsed.Language = args[i]
		case "--method":
			i++
			if i >= len(args) {
				return Parsed{}, errors.New("--method requires a method name")
			}
			parsed.Method = args[i]
		default:
			if strings.HasPrefix(arg, "-") {
				return Parsed{}, fmt.Errorf("unknown flag: %s", arg)
			}

			cmd := Command(arg)
			if _, ok := validCommands[cmd]; !ok {
				return Parsed{}, fmt.Errorf("unknown command: %s", arg)
			}

			parsed.Command = cmd
			parsed.ShowHelp = cmd == CommandHelp
		}
	}

	return parsed, nil
}

func HelpText(binaryName string) string {
	return fmt.Sprintf(`Usage:
  %[1]s <command> [flags]

Commands:
  record    Start a recording session (stop via '%[1]s stop' or Ctrl-C)
  stop      Stop the live recording and transcribe it
  pause     Pause the live recording
  resume    Resume a paused recording
  cancel    Cancel the live recording, discarding audio
  status    Show the live session state
  drain     Replay pending offline queue entries
  queue     List pending offline queue entries
  doctor    Run readiness diagnostics
  version   Print version information
  help      Show this help

Flags:
  --config <path>     Override config file location
  --language <code>   Transcription language hint (ISO 639-1)
  --method <name>     Preferred transcription method to try first
  -h, --help          Show this help
  --version           Print version information
`, binaryName)
}
