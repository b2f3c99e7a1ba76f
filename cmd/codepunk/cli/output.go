package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
	"github.com/codepunk/cli/internal/jsonutil"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

// jsonFlagName is the per-command flag; CODEPUNK_QUIET=1 has the same effect
// globally so scripts don't need to pass --json on every invocation.
const jsonFlagName = "json"

// IsQuiet reports whether cmd should emit exactly one JSON object on stdout
// instead of decorated human output.
func IsQuiet(cmd *cobra.Command) bool {
	if v, err := cmd.Flags().GetBool(jsonFlagName); err == nil && v {
		return true
	}
	return os.Getenv("CODEPUNK_QUIET") == "1"
}

// addJSONFlag registers --json on cmd.
func addJSONFlag(cmd *cobra.Command) {
	cmd.Flags().Bool(jsonFlagName, false, "emit a single JSON object instead of decorated output")
}

// printJSON marshals v with a trailing newline and writes it to stdout.
func printJSON(cmd *cobra.Command, v any) error {
	data, err := jsonutil.MarshalIndentWithNewline(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}

// confirm asks title/description on an interactive TTY via a huh form,
// returning true without prompting when quiet mode is active, stdout isn't a
// terminal, or assumeYes is set: AI-generated plans are never auto-applied
// without either an interactive confirmation or an explicit opt-out flag.
func confirm(cmd *cobra.Command, title, description string, assumeYes bool) (bool, error) {
	if assumeYes || IsQuiet(cmd) || !term.IsTerminal(int(os.Stdout.Fd())) {
		return true, nil
	}

	var confirmed bool
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewConfirm().
				Title(title).
				Description(description).
				Value(&confirmed),
		),
	)
	if err := form.Run(); err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false, nil
		}
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	return confirmed, nil
}

// emitError writes {schema, error:{code,message}} to stdout and returns a
// SilentError so main.go doesn't print a second, conflicting error line.
func emitError(cmd *cobra.Command, schema, code, message string) error {
	payload := ErrorPayload{Schema: schema, Error: ErrorDetail{Code: code, Message: message}}
	data, err := jsonutil.MarshalIndentWithNewline(payload, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return &SilentError{Err: fmt.Errorf("%s: %s", code, message)}
}
