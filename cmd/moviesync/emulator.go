package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/njoerd114/moviesync/internal/emulator"
)

func newEmulatorCommand(a *app) *cobra.Command {
	var (
		addr   string
		dbPath string
		opts   emulator.Options
	)

	cmd := &cobra.Command{
		Use:     "emulator",
		GroupID: groupUtility,
		Short:   "Serve a local stand-in for the remote store",
		Long: `Serve the movie collection and counter resources from a SQLite file.
Point store_url (or MOVIESYNC_STORE_URL) at the emulator's address to develop
without a hosted database.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger := a.logger

			if dbPath == "" {
				p, err := emulator.DefaultDBPath()
				if err != nil {
					return fmt.Errorf("resolving emulator DB path: %w", err)
				}
				dbPath = p
			}
			db, err := emulator.Open(dbPath)
			if err != nil {
				return fmt.Errorf("opening emulator DB at %q: %w", dbPath, err)
			}
			defer func() {
				if closeErr := db.Close(); closeErr != nil {
					logger.Error("closing emulator DB", "error", closeErr)
				}
			}()

			fmt.Fprintf(a.out, "Emulator serving %s on %s\n", dbPath, addr)
			srv := emulator.NewServer(db, opts, logger)
			return srv.ListenAndServe(cmd.Context(), addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":9000", "listen address")
	cmd.Flags().StringVar(&dbPath, "db", "", "SQLite file (default ~/.local/share/moviesync/emulator.db)")
	cmd.Flags().StringVar(&opts.AuthToken, "auth-token", "", "require this auth query parameter")
	cmd.Flags().Float64Var(&opts.RatePerSecond, "rate", 20, "requests per second per client (0 disables limiting)")
	cmd.Flags().IntVar(&opts.Burst, "burst", 40, "rate limiter burst size")
	return cmd
}
