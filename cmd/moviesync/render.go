package main

import (
	"fmt"
	"io"

	syncp "github.com/njoerd114/moviesync/internal/sync"
)

// renderView prints the visible state the way the list screen shows it.
func renderView(w io.Writer, v syncp.View) {
	switch v.Phase {
	case syncp.PhaseIdle:
		return
	case syncp.PhaseLoading:
		fmt.Fprintln(w, "Fetching movies…")
	case syncp.PhaseError:
		fmt.Fprintln(w, v.Message)
	case syncp.PhaseEmpty:
		fmt.Fprintln(w, "No movies found!")
	case syncp.PhasePopulated:
		for _, m := range v.Movies {
			fmt.Fprintf(w, "\n  %s (%s)\n", m.Title, m.ReleaseDate)
			fmt.Fprintf(w, "  %s\n", m.OpeningText)
			fmt.Fprintf(w, "  id: %s\n", m.ID)
		}
		fmt.Fprintln(w)
	}
}
