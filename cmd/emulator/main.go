// Command emulator loads a raw 8080 binary or a CP/M .COM file and runs it
// to completion against the BDOS shim in this module.
package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/go8080/cpm/runner"
	"github.com/spf13/cobra"
)

func main() {
	var maxInstructions int
	var startAddr uint16

	rootCmd := &cobra.Command{
		Use:   "emulator <program.bin|program.com> [guest-args...]",
		Short: "Run an 8080/CP-M program",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			run(args[0], args[1:], startAddr, maxInstructions)
			return nil
		},
		SilenceUsage: true,
	}
	rootCmd.Flags().IntVar(&maxInstructions, "max-instructions", 0, "instruction budget (0 = unbounded)")
	rootCmd.Flags().Uint16Var(&startAddr, "start-addr", 0, "load/entry address override for non-.com images")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(path string, guestArgs []string, startAddr uint16, budget int) {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	m, err := runner.NewWithOptions(path, guestArgs, runner.Options{StartAddr: startAddr}, logger)
	if err != nil {
		fmt.Fprintf(os.Stderr, "emulator: %v\n", err)
		os.Exit(1)
	}
	defer m.Close()

	if _, err := m.Run(budget); err != nil {
		fmt.Fprintf(os.Stderr, "emulator: execution error: %v\n", err)
		os.Exit(1)
	}
}
