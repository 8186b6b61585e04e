package main

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/hostbridge/internal/bridge"
)

// captureTimeout bounds one login-shell invocation.
const captureTimeout = time.Minute

func newEnvCmd(flags *rootFlags) *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "env",
		Short: "Print the captured login-shell environment",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bridge.New(flags.options())
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), captureTimeout)
			defer cancel()

			rec := b.Reconciler()
			if refresh {
				if err := rec.Refresh(ctx); err != nil {
					return err
				}
			} else if err := rec.Ensure(ctx); err != nil {
				return err
			}

			env, err := rec.LoadFiltered()
			if err != nil {
				return err
			}

			keys := make([]string, 0, len(env))
			for k := range env {
				keys = append(keys, k)
			}
			sort.Strings(keys)
			for _, k := range keys {
				fmt.Fprintf(cmd.OutOrStdout(), "%s=%s\n", k, env[k])
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&refresh, "refresh", false,
		"capture a new snapshot even when the cached one is fresh")

	return cmd
}
