package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/njoerd114/moviesync/internal/counter"
	"github.com/njoerd114/moviesync/internal/form"
	syncp "github.com/njoerd114/moviesync/internal/sync"
)

const watchHelp = `  r          refresh the list
  a          add a movie
  d <id>     delete a movie
  c          delete every movie
  h          show this help
  q          quit
`

func newWatchCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:     "watch",
		GroupID: groupMovies,
		Short:   "Interactive session that redraws the list after every change",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			st, err := a.connect(ctx)
			if err != nil {
				return err
			}
			defer st.close()

			a.logger.Info("pinging store…", "url", st.cfg.StoreURL)
			if err := st.client.Ping(ctx, counter.Path); err != nil {
				return fmt.Errorf("connecting to store at %q: %w\n\nCheck store_url and auth_token in your config file", st.cfg.StoreURL, err)
			}

			s := &session{
				ctrl: st.ctrl,
				p:    form.NewPrompter(a.in, a.out),
			}
			cancel := st.ctrl.Subscribe(func(v syncp.View) { renderView(a.out, v) })
			defer cancel()

			// A blocked stdin read cannot be interrupted; on a signal we stop
			// waiting for the loop instead.
			done := make(chan error, 1)
			go func() { done <- s.run(ctx) }()
			select {
			case err := <-done:
				return err
			case <-ctx.Done():
				fmt.Fprintln(a.out)
				return nil
			}
		},
	}
}

// session is one interactive watch loop over a started controller.
type session struct {
	ctrl *syncp.Controller
	p    *form.Prompter
}

func (s *session) run(ctx context.Context) error {
	// Load failures are already in the view and the log.
	_ = s.ctrl.Start(ctx)
	s.p.Printf("%s", watchHelp)

	for {
		line, err := s.p.Line("> ")
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}

		verb, arg, _ := strings.Cut(line, " ")
		arg = strings.TrimSpace(arg)
		switch strings.ToLower(verb) {
		case "":
		case "r", "refresh":
			_ = s.ctrl.Refresh(ctx)
		case "a", "add":
			cand, err := form.New(s.p).Collect(ctx)
			if errors.Is(err, io.EOF) {
				return nil
			}
			if err != nil {
				s.report(err)
				continue
			}
			_, err = s.ctrl.Add(ctx, cand)
			s.report(err)
		case "d", "delete":
			if arg == "" {
				s.p.Printf("  usage: d <id>\n")
				continue
			}
			s.report(s.ctrl.DeleteOne(ctx, arg))
		case "c", "clear":
			if s.p.Confirm("Delete ALL movies?", false) {
				s.report(s.ctrl.ClearAll(ctx))
			}
		case "h", "help", "?":
			s.p.Printf("%s", watchHelp)
		case "q", "quit", "exit":
			return nil
		default:
			s.p.Printf("  unknown command %q (h for help)\n", verb)
		}
	}
}

// report prints mutation failures the controller does not announce itself.
// A refused create already has its notification.
func (s *session) report(err error) {
	if err == nil || errors.Is(err, counter.ErrLimitReached) {
		return
	}
	s.p.Printf("  ✗ %v\n", err)
}
