// Command callbridge screens voice-agent call records and delivers them to
// Follow Up Boss over webhooks, a REST bridge and MCP.
package main

import (
	"errors"
	"os"

	"github.com/pterm/pterm"
)

// exitCode lets a command choose the process status without printing an error
type exitCode int

func (e exitCode) Error() string {
	return "exit status"
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		var code exitCode
		if errors.As(err, &code) {
			os.Exit(int(code))
		}
		pterm.Error.Println(err)
		os.Exit(1)
	}
}
