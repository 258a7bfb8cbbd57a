package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/njoerd114/moviesync/internal/config"
	"github.com/njoerd114/moviesync/internal/form"
	"github.com/njoerd114/moviesync/internal/model"
)

const (
	groupMovies  = "movies"
	groupUtility = "utility"
)

func newRootCommand(a *app) *cobra.Command {
	defaultCfg, _ := config.DefaultPath()

	cmd := &cobra.Command{
		Use:   "moviesync",
		Short: "Keep a capped movie collection in a remote JSON store",
		Long: `moviesync lists, adds and deletes movies stored in a remote JSON document
store. A counter stored next to the collection limits how many movies may be
added.`,
		Example: `  # Show the collection
  moviesync list

  # Add a movie without prompts
  moviesync add --title "A New Hope" --opening-text "It is a period of civil war." --release-date 1977-05-25

  # Try everything against a local emulator
  moviesync emulator --addr :9000 &
  MOVIESYNC_STORE_URL=http://localhost:9000 moviesync watch`,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			a.setupLogger()
		},
	}

	cmd.SetIn(a.in)
	cmd.SetOut(a.out)
	cmd.SetErr(a.errOut)

	cmd.PersistentFlags().StringVar(&a.cfgPath, "config", defaultCfg, "path to config.yaml")
	cmd.PersistentFlags().BoolVar(&a.verbose, "verbose", false, "enable debug logging")

	cmd.AddGroup(&cobra.Group{ID: groupMovies, Title: "Commands:"})
	cmd.AddGroup(&cobra.Group{ID: groupUtility, Title: "Utility Commands:"})
	cmd.SetHelpCommandGroupID(groupUtility)
	cmd.SetCompletionCommandGroupID(groupUtility)

	cmd.AddCommand(newListCommand(a))
	cmd.AddCommand(newRefreshCommand(a))
	cmd.AddCommand(newAddCommand(a))
	cmd.AddCommand(newDeleteCommand(a))
	cmd.AddCommand(newClearCommand(a))
	cmd.AddCommand(newCountCommand(a))
	cmd.AddCommand(newRepairCountCommand(a))
	cmd.AddCommand(newWatchCommand(a))
	cmd.AddCommand(newEmulatorCommand(a))
	cmd.AddCommand(newVersionCommand(a))

	return cmd
}

// --- Movie commands ----------------------------------------------------------

func newListCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		GroupID: groupMovies,
		Short:   "Fetch and print every movie",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			err = st.ctrl.Start(cmd.Context())
			renderView(a.out, st.ctrl.View())
			if err != nil {
				return fmt.Errorf("listing movies: %w", err)
			}
			return nil
		},
	}
}

func newRefreshCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "refresh",
		GroupID: groupMovies,
		Short:   "Fetch the list again and confirm it is current",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			ctx := cmd.Context()
			err = st.ctrl.Start(ctx)
			if err == nil {
				err = st.ctrl.Refresh(ctx)
			}
			renderView(a.out, st.ctrl.View())
			if err != nil {
				return fmt.Errorf("refreshing movies: %w", err)
			}
			return nil
		},
	}
}

func newAddCommand(a *app) *cobra.Command {
	var cand model.Candidate

	cmd := &cobra.Command{
		Use:     "add",
		GroupID: groupMovies,
		Short:   "Add a movie from flags, or interactively when none are given",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			interactive := cand == (model.Candidate{})
			if !interactive {
				var err error
				if cand, err = candidateFromFlags(cand); err != nil {
					return err
				}
			}

			st, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer st.close()

			if err := st.ctrl.Start(ctx); err != nil {
				a.logger.Warn("initial load failed", "error", err)
			}

			if interactive {
				p := form.NewPrompter(a.in, a.out)
				p.Printf("New movie\n")
				if cand, err = form.New(p).Collect(ctx); err != nil {
					return fmt.Errorf("reading movie: %w", err)
				}
			}

			created, err := st.ctrl.Add(ctx, cand)
			if err != nil {
				return fmt.Errorf("adding movie: %w", err)
			}
			fmt.Fprintf(a.out, "Created %s\n", created.ID)
			renderView(a.out, st.ctrl.View())
			return nil
		},
	}

	cmd.Flags().StringVar(&cand.Title, "title", "", "movie title")
	cmd.Flags().StringVar(&cand.OpeningText, "opening-text", "", "opening crawl text")
	cmd.Flags().StringVar(&cand.ReleaseDate, "release-date", "", "release date (YYYY-MM-DD)")
	return cmd
}

// candidateFromFlags applies the form's rules to a flag-supplied candidate.
func candidateFromFlags(c model.Candidate) (model.Candidate, error) {
	c.Title = strings.TrimSpace(c.Title)
	c.OpeningText = strings.TrimSpace(c.OpeningText)
	c.ReleaseDate = strings.TrimSpace(c.ReleaseDate)
	if err := c.Validate(); err != nil {
		return model.Candidate{}, fmt.Errorf("--title, --opening-text and --release-date are all required: %w", err)
	}
	if _, err := model.ParseReleaseDate(c.ReleaseDate); err != nil {
		return model.Candidate{}, err
	}
	return c, nil
}

func newDeleteCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "delete <id>",
		GroupID: groupMovies,
		Short:   "Delete one movie by ID",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			ctx := cmd.Context()
			if err := st.ctrl.Start(ctx); err != nil {
				a.logger.Warn("initial load failed", "error", err)
			}
			if err := st.ctrl.DeleteOne(ctx, args[0]); err != nil {
				return fmt.Errorf("deleting movie %s: %w", args[0], err)
			}
			renderView(a.out, st.ctrl.View())
			return nil
		},
	}
}

func newClearCommand(a *app) *cobra.Command {
	var yes bool

	cmd := &cobra.Command{
		Use:     "clear",
		GroupID: groupMovies,
		Short:   "Delete every movie and reset the counter",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				p := form.NewPrompter(a.in, a.out)
				if !p.Confirm("Delete ALL movies?", false) {
					fmt.Fprintln(a.out, "Aborted.")
					return nil
				}
			}

			st, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			ctx := cmd.Context()
			if err := st.ctrl.Start(ctx); err != nil {
				a.logger.Warn("initial load failed", "error", err)
			}
			if err := st.ctrl.ClearAll(ctx); err != nil {
				return fmt.Errorf("clearing movies: %w", err)
			}
			renderView(a.out, st.ctrl.View())
			return nil
		},
	}

	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "do not ask for confirmation")
	return cmd
}

// --- Counter maintenance -----------------------------------------------------

func newCountCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "count",
		GroupID: groupMovies,
		Short:   "Compare the stored counter with the real collection size",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			stored, actual, err := st.repo.Drift(cmd.Context())
			if err != nil {
				return fmt.Errorf("reading counts: %w", err)
			}
			fmt.Fprintf(a.out, "  Counter:   %d\n", stored)
			fmt.Fprintf(a.out, "  Movies:    %d\n", actual)
			fmt.Fprintf(a.out, "  Ceiling:   %d\n", st.cfg.Ceiling)
			if stored != actual {
				fmt.Fprintf(a.out, "  Drift:     %+d (run 'moviesync repair-count' to fix)\n", stored-actual)
			} else {
				fmt.Fprintln(a.out, "  Drift:     none")
			}
			return nil
		},
	}
}

func newRepairCountCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "repair-count",
		GroupID: groupMovies,
		Short:   "Overwrite the counter with the real collection size",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := a.connect(cmd.Context())
			if err != nil {
				return err
			}
			defer st.close()

			before, after, err := st.repo.RepairCounter(cmd.Context())
			if err != nil {
				return fmt.Errorf("repairing counter: %w", err)
			}
			if before == after {
				fmt.Fprintf(a.out, "✓ Counter already correct (%d)\n", after)
				return nil
			}
			fmt.Fprintf(a.out, "✓ Counter repaired: %d → %d\n", before, after)
			return nil
		},
	}
}
