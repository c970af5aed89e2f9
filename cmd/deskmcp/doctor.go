package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/haasonsaas/deskmcp/internal/platform"
)

func buildDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Report platform accessibility-API reachability",
		Long: `Checks that this platform's accessibility engine can be constructed
and can reach the desktop root and application list, the CLI-facing
sibling of the /health HTTP endpoint.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDoctor(cmd)
		},
	}
}

func runDoctor(cmd *cobra.Command) error {
	out := cmd.OutOrStdout()
	ctx := cmd.Context()

	engine, err := platform.New()
	if err != nil {
		fmt.Fprintf(out, "platform engine:    FAIL (%v)\n", err)
		return fmt.Errorf("platform engine unavailable: %w", err)
	}
	defer engine.Close()

	fmt.Fprintf(out, "platform engine:    OK (%s)\n", engine.Name())

	timeoutCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	if _, err := engine.Root(timeoutCtx); err != nil {
		fmt.Fprintf(out, "desktop root:       FAIL (%v)\n", err)
	} else {
		fmt.Fprintln(out, "desktop root:       OK")
	}

	apps, err := engine.Applications(timeoutCtx)
	if err != nil {
		fmt.Fprintf(out, "application list:   FAIL (%v)\n", err)
	} else {
		fmt.Fprintf(out, "application list:   OK (%d visible)\n", len(apps))
	}

	return nil
}
