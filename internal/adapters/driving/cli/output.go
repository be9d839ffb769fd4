package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// wantJSON reports whether output should be JSON: when the flag asks for
// it or when stdout is redirected away from a terminal.
func wantJSON(cmd *cobra.Command, flag bool) bool {
	if flag {
		return true
	}
	f, ok := cmd.OutOrStdout().(*os.File)
	return ok && !term.IsTerminal(int(f.Fd()))
}

func printJSON(cmd *cobra.Command, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal output: %w", err)
	}
	cmd.Println(string(data))
	return nil
}
