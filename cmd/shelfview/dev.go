package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"
)

// newDevCmd groups development shortcuts for working on ShelfView itself.
func newDevCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:    "dev",
		Short:  "Development workflows (tests, running the binaries)",
		Hidden: true,
	}
	cmd.AddCommand(newTestCmd(), newRunCmd())
	return cmd
}

func newTestCmd() *cobra.Command {
	var race bool
	var integration bool
	cmd := &cobra.Command{
		Use:   "test [packages]",
		Short: "Run Go tests (defaults to ./...)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pkgs := args
			if len(pkgs) == 0 {
				pkgs = []string{"./..."}
			}
			goArgs := []string{"test"}
			if race {
				goArgs = append(goArgs, "-race")
			}
			if !integration {
				goArgs = append(goArgs, "-short")
			}
			goArgs = append(goArgs, pkgs...)
			var env []string
			if integration {
				env = append(env, "SHELFVIEW_INTEGRATION=1")
			}
			return runCommand(cmd.Context(), env, "go", goArgs...)
		},
	}
	cmd.Flags().BoolVar(&race, "race", false, "Enable Go race detector")
	cmd.Flags().BoolVar(&integration, "integration", false, "Include container-backed integration tests")
	return cmd
}

func newRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the ShelfView services directly",
	}
	cmd.AddCommand(
		newServiceRunner("server", "./cmd/server"),
		newServiceRunner("worker", "./cmd/worker"),
	)
	return cmd
}

func newServiceRunner(name, path string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: fmt.Sprintf("go run %s", path),
		RunE: func(cmd *cobra.Command, args []string) error {
			goArgs := append([]string{"run", path}, args...)
			return runCommand(cmd.Context(), nil, "go", goArgs...)
		},
	}
}

func runCommand(ctx context.Context, env []string, name string, args ...string) error {
	execCmd := exec.CommandContext(ctx, name, args...)
	execCmd.Env = append(os.Environ(), env...)
	execCmd.Stdout = os.Stdout
	execCmd.Stderr = os.Stderr
	execCmd.Stdin = os.Stdin
	return execCmd.Run()
}
