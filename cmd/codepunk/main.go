// Command codepunk is the agentic coding assistant CLI.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/codepunk/cli/cmd/codepunk/cli"
)

func main() {
	ctx, cancel := context.WithCancel(context.Background())

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	rootCmd := cli.NewRootCmd()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var silent *cli.SilentError
		if errors.As(err, &silent) {
			os.Exit(1)
		}
		msg := err.Error()
		if strings.Contains(msg, "unknown command") || strings.Contains(msg, "unknown flag") {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprintln(os.Stderr, "Run 'codepunk --help' for usage.")
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		os.Exit(1)
	}
}
