package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mind-engage/quiztab/internal/flow"
	"github.com/mind-engage/quiztab/internal/question"
	"github.com/mind-engage/quiztab/internal/session"
)

// errQuit ends the session.
var errQuit = errors.New("quit")

type prompter struct {
	in  *bufio.Scanner
	out io.Writer
}

func newPrompter(in io.Reader, out io.Writer) *prompter {
	return &prompter{in: bufio.NewScanner(in), out: out}
}

// line prints label and reads one trimmed line. "q" quits.
func (p *prompter) line(label string) (string, error) {
	fmt.Fprint(p.out, label)
	if !p.in.Scan() {
		if err := p.in.Err(); err != nil {
			return "", err
		}
		return "", errQuit
	}
	s := strings.TrimSpace(p.in.Text())
	if s == "q" || s == ":q" {
		return "", errQuit
	}
	return s, nil
}

// numbers parses "1, 3 2" as zero-based indexes below n.
func numbers(s string, n int) ([]int, error) {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		v, err := strconv.Atoi(f)
		if err != nil || v < 1 || v > n {
			return nil, fmt.Errorf("%q is not a number between 1 and %d", f, n)
		}
		out = append(out, v-1)
	}
	return out, nil
}

func (p *prompter) show(pr *session.Presentation) {
	q := pr.Question
	fmt.Fprintf(p.out, "\n[%s] %s\n%s\n", q.Type, q.ID, q.Prompt)
	switch pl := q.Payload.(type) {
	case *question.SinglePayload:
		list(p.out, pl.Options)
	case *question.MultiPayload:
		list(p.out, pl.Options)
	case *question.MatchingPayload:
		for i, pair := range pl.Pairs {
			fmt.Fprintf(p.out, "  %c) %s\n", 'a'+i, pair.Left)
		}
		list(p.out, pr.Rights)
	case *question.OrderingPayload:
		list(p.out, pl.Items)
	case *question.HotspotPayload:
		labels := make([]string, len(pl.Hotspots))
		for i, h := range pl.Hotspots {
			labels[i] = h.Label
			if labels[i] == "" {
				labels[i] = h.ID
			}
		}
		list(p.out, labels)
	}
	if pr.Degraded {
		fmt.Fprintln(p.out, "  (showing the base question)")
	}
}

func list(w io.Writer, items []string) {
	for i, s := range items {
		fmt.Fprintf(w, "  %d) %s\n", i+1, s)
	}
}

// answer reads an answer for pr. Parse errors are re-prompted.
func (p *prompter) answer(pr *session.Presentation) (question.Answer, error) {
	for {
		a, err := p.read(pr)
		if errors.Is(err, errQuit) || err == nil {
			return a, err
		}
		fmt.Fprintln(p.out, "  ", err)
	}
}

func (p *prompter) read(pr *session.Presentation) (question.Answer, error) {
	q := pr.Question
	switch pl := q.Payload.(type) {
	case *question.SinglePayload:
		s, err := p.line("answer (number)> ")
		if err != nil {
			return nil, err
		}
		idx, err := numbers(s, len(pl.Options))
		if err != nil {
			return nil, err
		}
		if len(idx) != 1 {
			return nil, errors.New("pick exactly one option")
		}
		return question.SingleAnswer{Selected: &idx[0]}, nil

	case *question.MultiPayload:
		s, err := p.line("answers (e.g. 1,3)> ")
		if err != nil {
			return nil, err
		}
		idx, err := numbers(s, len(pl.Options))
		if err != nil {
			return nil, err
		}
		return question.MultiAnswer{Selected: idx}, nil

	case *question.TrueFalsePayload:
		s, err := p.line("true or false (t/f)> ")
		if err != nil {
			return nil, err
		}
		switch strings.ToLower(s) {
		case "t", "true", "y", "yes":
			v := true
			return question.TrueFalseAnswer{Value: &v}, nil
		case "f", "false", "n", "no":
			v := false
			return question.TrueFalseAnswer{Value: &v}, nil
		}
		return question.TrueFalseAnswer{}, nil

	case *question.MatchingPayload:
		s, err := p.line("match each letter to a number in order (e.g. 2,1,3)> ")
		if err != nil {
			return nil, err
		}
		idx, err := numbers(s, len(pr.Rights))
		if err != nil {
			return nil, err
		}
		m := map[string]string{}
		for i, pair := range pl.Pairs {
			if i < len(idx) {
				m[pair.Left] = pr.Rights[idx[i]]
			}
		}
		return question.MatchingAnswer{Matches: m}, nil

	case *question.OrderingPayload:
		s, err := p.line("position of each item (e.g. 2,1,3)> ")
		if err != nil {
			return nil, err
		}
		idx, err := numbers(s, len(pl.Items))
		if err != nil {
			return nil, err
		}
		return question.OrderingAnswer{Order: idx}, nil

	case *question.FillBlankPayload:
		s, err := p.line(fmt.Sprintf("%d blanks, separated by | > ", len(pl.Blanks)))
		if err != nil {
			return nil, err
		}
		parts := strings.Split(s, "|")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		return question.FillBlankAnswer{Blanks: parts}, nil

	case *question.GuessPayload:
		s, err := p.line("answer> ")
		return question.GuessAnswer{Text: s}, err

	case *question.CalcValuePayload:
		s, err := p.line("value with unit (e.g. 260 mA)> ")
		return question.CalcValueAnswer{Value: s}, err

	case *question.CalcMultiPayload:
		fields := map[string]question.CalcValueAnswer{}
		for _, f := range pl.Fields {
			label := f.Label
			if label == "" {
				label = f.ID
			}
			if f.Unit != "" {
				label += " [" + f.Unit + "]"
			}
			s, err := p.line(label + "> ")
			if err != nil {
				return nil, err
			}
			fields[f.ID] = question.CalcValueAnswer{Value: s}
		}
		return question.CalcMultiAnswer{Fields: fields}, nil

	case *question.HotspotPayload:
		s, err := p.line("areas (e.g. 1,2)> ")
		if err != nil {
			return nil, err
		}
		idx, err := numbers(s, len(pl.Hotspots))
		if err != nil {
			return nil, err
		}
		ids := make([]string, len(idx))
		for i, j := range idx {
			ids[i] = pl.Hotspots[j].ID
		}
		return question.HotspotAnswer{Selected: ids}, nil

	case *question.FlowPayload:
		return p.walk(pr.Walker)

	case *question.ExplainPayload, *question.ExamPayload:
		s, err := p.line("your answer> ")
		return question.TextAnswer{Kind: q.Type, Text: s}, err
	}
	return nil, fmt.Errorf("%w: %q", question.ErrUnknownType, q.Type)
}

// walk steps through a troubleshooting flow until the learner submits with
// "s" or reaches a node without choices.
func (p *prompter) walk(w *flow.Walker) (question.Answer, error) {
	for {
		n := w.Current()
		fmt.Fprintf(p.out, "  > %s\n", n.Text)
		if w.Terminal() {
			return w.Answer(), nil
		}
		for i, c := range n.Choices {
			label := c.Label
			if label == "" {
				label = c.ID
			}
			fmt.Fprintf(p.out, "    %d) %s\n", i+1, label)
		}
		s, err := p.line("choice, b=back, r=reset, s=submit> ")
		if err != nil {
			return nil, err
		}
		switch s {
		case "b":
			w.Back()
			continue
		case "r":
			w.Reset()
			continue
		case "s":
			return w.Answer(), nil
		}
		idx, err := numbers(s, len(n.Choices))
		if err != nil || len(idx) != 1 {
			fmt.Fprintln(p.out, "   pick one choice")
			continue
		}
		if err := w.Choose(n.Choices[idx[0]].ID); err != nil {
			fmt.Fprintln(p.out, "  ", err)
		}
	}
}

// selfGrade asks the learner to judge a free-text answer.
func (p *prompter) selfGrade(expected string) (bool, error) {
	if expected != "" {
		fmt.Fprintf(p.out, "  expected: %s\n", expected)
	}
	for {
		s, err := p.line("were you right? (y/n)> ")
		if err != nil {
			return false, err
		}
		switch strings.ToLower(s) {
		case "y", "yes":
			return true, nil
		case "n", "no":
			return false, nil
		}
	}
}
