// Package cli runs interactive line prompt on terminal, plain line reader otherwise.
package cli

import (
	"bufio"
	"io"
	"os"
	"strings"

	"github.com/c-bata/go-prompt"
	"github.com/mattn/go-isatty"
)

type Executor func(line string)
type Completer func(d prompt.Document) []prompt.Suggest

func IsTerminal(f *os.File) bool {
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}

// MainLoop returns when user exits prompt or stdin ends.
func MainLoop(tag string, exec Executor, complete Completer) {
	if IsTerminal(os.Stdin) {
		prompt.New(prompt.Executor(exec), prompt.Completer(complete),
			prompt.OptionPrefix(tag+"> "),
			prompt.OptionTitle(tag),
		).Run()
		return
	}
	_ = ReadLoop(os.Stdin, exec)
}

// ReadLoop feeds trimmed non-empty lines from r to exec.
func ReadLoop(r io.Reader, exec Executor) error {
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		if line := strings.TrimSpace(scanner.Text()); line != "" {
			exec(line)
		}
	}
	return scanner.Err()
}

// FilterCommands suggests commands matching word before cursor.
func FilterCommands(d prompt.Document, commands []prompt.Suggest) []prompt.Suggest {
	return prompt.FilterHasPrefix(commands, d.GetWordBeforeCursor(), true)
}
