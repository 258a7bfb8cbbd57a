package form

import (
	"bufio"
	"fmt"
	"io"
	"strings"
)

// Prompter provides terminal prompts backed by an io.Reader/Writer pair. In
// production these are os.Stdin and os.Stdout; tests inject buffers for
// deterministic input.
type Prompter struct {
	scanner *bufio.Scanner
	w       io.Writer
}

// NewPrompter creates a Prompter wired to the given reader and writer.
func NewPrompter(r io.Reader, w io.Writer) *Prompter {
	return &Prompter{scanner: bufio.NewScanner(r), w: w}
}

// Required prompts for a text value and repeats until a non-blank value is
// given. It returns io.EOF when the input ends first.
func (p *Prompter) Required(label string) (string, error) {
	for {
		_, _ = fmt.Fprintf(p.w, "  %s: ", label)

		val, err := p.scan()
		if err != nil {
			return "", err
		}
		if val == "" {
			_, _ = fmt.Fprintf(p.w, "  (required, please enter a value)\n")
			continue
		}
		return val, nil
	}
}

// Confirm asks a yes/no question. defaultYes controls what happens when the
// user presses Enter without typing: true → yes, false → no. End of input
// counts as the default.
func (p *Prompter) Confirm(label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	_, _ = fmt.Fprintf(p.w, "  %s %s: ", label, hint)

	answer, err := p.scan()
	if err != nil || answer == "" {
		return defaultYes
	}
	answer = strings.ToLower(answer)
	return answer == "y" || answer == "yes"
}

// Line prints prompt and returns the next trimmed input line, which may be
// empty. It returns io.EOF when the input is exhausted.
func (p *Prompter) Line(prompt string) (string, error) {
	_, _ = fmt.Fprint(p.w, prompt)
	return p.scan()
}

// Printf writes to the prompter's output.
func (p *Prompter) Printf(format string, args ...any) {
	_, _ = fmt.Fprintf(p.w, format, args...)
}

func (p *Prompter) scan() (string, error) {
	if !p.scanner.Scan() {
		if err := p.scanner.Err(); err != nil {
			return "", fmt.Errorf("reading input: %w", err)
		}
		return "", io.EOF
	}
	return strings.TrimSpace(p.scanner.Text()), nil
}
