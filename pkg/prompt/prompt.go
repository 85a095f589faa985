// Package prompt asks the operator to confirm pipeline steps.
package prompt

import (
	"bufio"
	"fmt"
	"io"
	"strconv"
	"strings"
	"sync"
)

// Question is a yes/no or multiple-choice question. ID is stable so
// scripted answers can refer to it.
type Question struct {
	ID      string
	Text    string
	Default bool
}

// Question IDs asked by the pipeline
const (
	RevalidateInput    = "revalidate_input"
	InspectBefore      = "inspect_before_edits"
	InspectAfter       = "inspect_after_edits"
	ExportCodebook     = "export_codebook"
	ExportDomain       = "export_domain"
	ResetOnInterrupt   = "reset_on_interrupt"
	SelectSubConfig    = "select_sub_config"
	ConfirmReset       = "confirm_reset"
	ReplaceCodebookIn  = "replace_codebook_mirror"
	RemoveDomainBuffer = "remove_domain_buffer"
)

// Prompter is the confirmation collaborator
type Prompter interface {
	// Confirm asks a yes/no question
	Confirm(q Question) (bool, error)
	// Choose asks the operator to pick one of options and returns its index
	Choose(q Question, options []string) (int, error)
}

// Terminal prompts on an interactive terminal
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	mu  sync.Mutex
}

// NewTerminal creates a terminal prompter
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	return &Terminal{in: bufio.NewReader(in), out: out}
}

// Confirm implements Prompter. An empty answer takes the default.
func (t *Terminal) Confirm(q Question) (bool, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	hint := "[y/N]"
	if q.Default {
		hint = "[Y/n]"
	}
	fmt.Fprintf(t.out, "\n> %s %s: ", q.Text, hint)

	line, err := t.readLine()
	if err != nil {
		return false, err
	}
	switch strings.ToLower(line) {
	case "":
		return q.Default, nil
	case "y", "yes":
		return true, nil
	default:
		return false, nil
	}
}

// Choose implements Prompter
func (t *Terminal) Choose(q Question, options []string) (int, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	fmt.Fprintf(t.out, "\n%s\n", q.Text)
	for i, o := range options {
		fmt.Fprintf(t.out, "  %d: %s\n", i, o)
	}
	fmt.Fprint(t.out, "> Enter a number: ")

	line, err := t.readLine()
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(line)
	if err != nil {
		return 0, fmt.Errorf("invalid input %q: not a number", line)
	}
	if n < 0 || n >= len(options) {
		return 0, fmt.Errorf("invalid input %d: out of range", n)
	}
	return n, nil
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		return "", fmt.Errorf("failed to read answer: %w", err)
	}
	return strings.TrimSpace(line), nil
}

// Scripted answers from fixed tables, for non-interactive runs and tests.
// Unlisted questions take their default answer and the first option.
type Scripted struct {
	Answers map[string]bool
	Choices map[string]int
	// AssumeYes answers every unlisted yes/no question with yes
	AssumeYes bool

	mu    sync.Mutex
	asked []string
}

// Confirm implements Prompter
func (s *Scripted) Confirm(q Question) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, q.ID)

	if a, ok := s.Answers[q.ID]; ok {
		return a, nil
	}
	if s.AssumeYes {
		return true, nil
	}
	return q.Default, nil
}

// Choose implements Prompter
func (s *Scripted) Choose(q Question, options []string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.asked = append(s.asked, q.ID)

	c := s.Choices[q.ID]
	if c < 0 || c >= len(options) {
		return 0, fmt.Errorf("scripted choice %d out of range for %s", c, q.ID)
	}
	return c, nil
}

// Asked returns the IDs of the questions asked so far
func (s *Scripted) Asked() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.asked...)
}
