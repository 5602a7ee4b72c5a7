// Package repl implements the line-oriented command loop the database shell
// is built from.
package repl

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"

	"stegodb/pkg/config"
)

// ReplCommand handles one command payload and returns its output.
type ReplCommand func(payload string, replConfig *REPLConfig) (output string, err error)

const (
	// Trigger for the help meta-command that prints out all help strings.
	TriggerHelpMetacommand = ".help"

	// String prepended to any error before being sent to the output writer.
	ErrorPrependStr = "ERROR: "
)

// ErrCommandNotFound is returned when a trigger matches no known command.
var ErrCommandNotFound = errors.New("command not found")

// REPL maps command triggers to their handlers and help strings.
type REPL struct {
	commands map[string]ReplCommand
	help     map[string]string
}

// REPLConfig identifies the client a command is running for.
type REPLConfig struct {
	clientId uuid.UUID
}

// GetAddr returns the client id of the session.
func (replConfig *REPLConfig) GetAddr() uuid.UUID {
	return replConfig.clientId
}

// NewRepl constructs an empty REPL.
func NewRepl() *REPL {
	return &REPL{
		commands: make(map[string]ReplCommand),
		help:     make(map[string]string),
	}
}

// GetCommands returns the trigger-to-handler map.
func (r *REPL) GetCommands() map[string]ReplCommand {
	return r.commands
}

// GetHelp returns the trigger-to-help map.
func (r *REPL) GetHelp() map[string]string {
	return r.help
}

// AddCommand registers a command and its help string, overwriting any
// previous command with the same trigger.
func (r *REPL) AddCommand(trigger string, action ReplCommand, help string) {
	if trigger == TriggerHelpMetacommand {
		return
	}
	r.commands[trigger] = action
	r.help[trigger] = help
}

// HelpString returns all commands' help strings as one string.
func (r *REPL) HelpString() string {
	var sb strings.Builder
	for k, v := range r.help {
		sb.WriteString(fmt.Sprintf("%s: %s\n", k, v))
	}
	return sb.String()
}

// Run reads commands from input and writes results to output until EOF.
// Input and output default to stdin and stdout when nil.
func (r *REPL) Run(clientId uuid.UUID, prompt string, input io.Reader, output io.Writer) {
	if input == nil {
		input = os.Stdin
	}
	if output == nil {
		output = os.Stdout
	}
	scanner := bufio.NewScanner(input)
	replConfig := &REPLConfig{clientId: clientId}
	fmt.Fprintf(output, "Welcome to the %s REPL! Please type '.help' to see the list of available commands.\n", config.DBName)
	io.WriteString(output, prompt)

	for scanner.Scan() {
		payload := scanner.Text()
		fields := strings.Fields(payload)
		if len(fields) == 0 {
			io.WriteString(output, prompt)
			continue
		}
		trigger := fields[0]

		if trigger == TriggerHelpMetacommand {
			io.WriteString(output, r.HelpString())
			io.WriteString(output, prompt)
			continue
		}

		if command, exists := r.commands[trigger]; exists {
			result, err := command(payload, replConfig)
			if err != nil {
				fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, err)
			} else {
				if len(result) != 0 && !strings.HasSuffix(result, "\n") {
					result += "\n"
				}
				io.WriteString(output, result)
			}
		} else {
			fmt.Fprintf(output, "%s%s\n", ErrorPrependStr, ErrCommandNotFound)
		}
		io.WriteString(output, prompt)
	}
	// Print an additional line if we encountered an EOF character.
	io.WriteString(output, "\n")
}
