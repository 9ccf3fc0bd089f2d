package cli

import (
	"io"
	"log"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func withInput(t *testing.T, input string) {
	oldIn, oldOut := Stdin, Stdout
	Stdin = strings.NewReader(input)
	Stdout = log.New(io.Discard, "", 0)
	t.Cleanup(func() {
		Stdin, Stdout = oldIn, oldOut
	})
}

func TestAskForConfirmation(t *testing.T) {
	require.True(t, AskForConfirmation("skip?", true))

	withInput(t, "Y\n")
	require.True(t, AskForConfirmation("continue?", false))

	withInput(t, "no\n")
	require.False(t, AskForConfirmation("continue?", false))

	withInput(t, "y\nmaybe\nY\n")
	require.True(t, AskForConfirmation("continue?", false), "lower-case y asks again")

	withInput(t, "")
	require.False(t, AskForConfirmation("continue?", false), "end of input is a no")
}
