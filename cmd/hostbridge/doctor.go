package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/hostbridge/internal/bridge"
)

// diagnoseTimeout bounds the runtime probe and the optional mirror check.
const diagnoseTimeout = 30 * time.Second

func newDoctorCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check whether a host start would succeed",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bridge.New(flags.options())
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), diagnoseTimeout)
			defer cancel()

			rep := b.Diagnose(ctx)
			printReport(cmd.OutOrStdout(), rep)

			if !rep.OK() {
				return errors.New("a host start would fail")
			}
			return nil
		},
	}
}

// printReport renders one line per check: "ok" for passes, "!!" for
// advisory findings, "FAIL" for anything that would break a start.
func printReport(w io.Writer, rep bridge.Report) {
	for _, c := range rep.Checks {
		mark := "ok"
		switch {
		case !c.OK && c.Info:
			mark = "!!"
		case !c.OK:
			mark = "FAIL"
		}
		fmt.Fprintf(w, "%-4s  %-14s %s\n", mark, c.Name, c.Detail)
	}
}
