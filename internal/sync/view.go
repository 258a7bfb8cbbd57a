package sync

import "github.com/njoerd114/moviesync/internal/model"

// Phase is the summary of the visible state.
type Phase int

const (
	// PhaseIdle is the state before the first load starts.
	PhaseIdle Phase = iota
	// PhaseLoading means a list fetch is in flight.
	PhaseLoading
	// PhaseError means the last list fetch failed.
	PhaseError
	// PhaseEmpty means the last list fetch returned no movies.
	PhaseEmpty
	// PhasePopulated means the last list fetch returned at least one movie.
	PhasePopulated
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseLoading:
		return "loading"
	case PhaseError:
		return "error"
	case PhaseEmpty:
		return "empty"
	case PhasePopulated:
		return "populated"
	default:
		return "unknown"
	}
}

// View is a snapshot of the visible state handed to subscribers.
type View struct {
	Phase Phase

	// Message is the user-facing error text. Set only in PhaseError.
	Message string

	// Movies is the last successfully fetched list, in store order. It is
	// kept while a reload is in flight or after a reload fails, but only
	// PhaseEmpty and PhasePopulated mean it is current.
	Movies []model.Movie
}

// state holds the raw flags a View is derived from.
type state struct {
	started bool
	loading bool
	errMsg  string
	movies  []model.Movie
}

// view derives the phase: loading beats error, error beats the
// empty/populated decision, and that decision looks only at the list length.
func (s state) view() View {
	v := View{Movies: append([]model.Movie(nil), s.movies...)}
	switch {
	case !s.started:
		v.Phase = PhaseIdle
	case s.loading:
		v.Phase = PhaseLoading
	case s.errMsg != "":
		v.Phase = PhaseError
		v.Message = s.errMsg
	case len(s.movies) == 0:
		v.Phase = PhaseEmpty
	default:
		v.Phase = PhasePopulated
	}
	return v
}
