package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/hostbridge/internal/bridge"
	"github.com/dshills/hostbridge/internal/node"
)

// installTimeout bounds a resolve that has to download an archive.
const installTimeout = 10 * time.Minute

func newResolveCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "resolve",
		Short: "Resolve the Node.js runtime, installing it if necessary",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, err := bridge.New(flags.options())
			if err != nil {
				return err
			}
			defer b.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), installTimeout)
			defer cancel()

			path, err := b.Installer().Ensure(ctx)
			if err != nil {
				return err
			}
			ver, err := node.DetectVersion(ctx, path)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "node %s at %s\n", ver, path)
			return nil
		},
	}
}
