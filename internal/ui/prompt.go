package ui

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

var (
	input    io.Reader = os.Stdin
	bufInput           = bufio.NewReader(input)
)

// SetInput overrides the prompt input (for testing). nil restores stdin.
func SetInput(r io.Reader) {
	if r == nil {
		r = os.Stdin
	}
	input = r
	bufInput = bufio.NewReader(r)
}

// PromptSecret asks for a value without echoing it when stdin is a terminal.
// Piped input is read one line at a time.
func PromptSecret(prompt string) (string, error) {
	fmt.Fprint(writer, prompt+": ")

	if f, ok := input.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		b, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(writer)
		if err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return strings.TrimSpace(string(b)), nil
	}
	return readLine()
}

// Confirm prompts for yes/no confirmation. Returns true for yes.
func Confirm(prompt string) (bool, error) {
	fmt.Fprint(writer, prompt+" [y/N]: ")
	line, err := readLine()
	if err != nil {
		return false, err
	}
	answer := strings.ToLower(line)
	return answer == "y" || answer == "yes", nil
}

func readLine() (string, error) {
	line, err := bufInput.ReadString('\n')
	if err != nil && !(err == io.EOF && line != "") {
		return "", fmt.Errorf("reading input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
