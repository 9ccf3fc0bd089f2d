package cli

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
)

var (
	Stdout           = log.New(os.Stdout, "", 0)
	Stderr           = log.New(os.Stderr, "", 0)
	Stdin  io.Reader = os.Stdin
)

// Exit terminates the process, printing err and exiting non-zero if it is set.
func Exit(err error) {
	code := 0
	if err != nil {
		Stderr.Println(err)
		code = 1
	}
	os.Exit(code)
}

// AskForConfirmation asks a yes/no question on stdout and reads the answer from Stdin. Only an upper-case
// "Y" counts as yes. Returns true straight away when skip is set.
func AskForConfirmation(question string, skip bool) bool {
	if skip {
		return true
	}
	reader := bufio.NewReader(Stdin)
	Stdout.Printf("%s [Y/N]: ", question)
	for {
		line, err := reader.ReadString('\n')
		answer := strings.TrimSpace(line)
		switch {
		case answer == "Y":
			return true
		case strings.EqualFold(answer, "n"), strings.EqualFold(answer, "no"):
			return false
		case err != nil:
			Stderr.Printf("Unable to read answer: %v", err)
			return false
		}
		Stdout.Printf("Answer with an upper-case Y to continue or N to stop: ")
	}
}

// PrintJSON writes v to stdout as indented JSON.
func PrintJSON(v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("error marshalling output: %w", err)
	}
	Stdout.Println(string(data))
	return nil
}
