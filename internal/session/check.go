package session

import (
	"fmt"
	"strings"

	"github.com/mind-engage/quiztab/internal/question"
)

// IncompleteError rejects an answer before grading. Reason is shown to the learner.
type IncompleteError struct {
	Type   question.Type
	Reason string
}

func (e *IncompleteError) Error() string { return e.Reason }

func incomplete(t question.Type, reason string) error {
	return &IncompleteError{Type: t, Reason: reason}
}

// CheckComplete reports whether a is a full answer to q. Free-text types
// accept an empty response since the learner grades it.
func CheckComplete(q question.Question, a question.Answer) error {
	if !question.Compatible(q.Type, a) {
		return incomplete(q.Type, fmt.Sprintf("Answer does not fit a %s question.", q.Type))
	}
	switch p := q.Payload.(type) {
	case *question.SinglePayload:
		if s := a.(question.SingleAnswer).Selected; s == nil || *s < 0 || *s >= len(p.Options) {
			return incomplete(q.Type, "Select one answer.")
		}
	case *question.MultiPayload:
		sel := a.(question.MultiAnswer).Selected
		if len(sel) == 0 {
			return incomplete(q.Type, "Select at least one answer.")
		}
		for _, i := range sel {
			if i < 0 || i >= len(p.Options) {
				return incomplete(q.Type, "Select at least one answer.")
			}
		}
	case *question.TrueFalsePayload:
		if a.(question.TrueFalseAnswer).Value == nil {
			return incomplete(q.Type, "Select true or false.")
		}
	case *question.MatchingPayload:
		m := a.(question.MatchingAnswer).Matches
		for _, pr := range p.Pairs {
			if strings.TrimSpace(m[pr.Left]) == "" {
				return incomplete(q.Type, "Please select all matches.")
			}
		}
	case *question.OrderingPayload:
		order := a.(question.OrderingAnswer).Order
		if len(order) != len(p.Items) {
			return incomplete(q.Type, "Please select an order for all items.")
		}
		for _, pos := range order {
			if pos < 0 || pos >= len(p.Items) {
				return incomplete(q.Type, "Please select an order for all items.")
			}
		}
	case *question.FillBlankPayload:
		blanks := a.(question.FillBlankAnswer).Blanks
		if len(blanks) != len(p.Blanks) {
			return incomplete(q.Type, "Please fill all blanks.")
		}
		for _, b := range blanks {
			if strings.TrimSpace(b) == "" {
				return incomplete(q.Type, "Please fill all blanks.")
			}
		}
	case *question.GuessPayload:
		if strings.TrimSpace(a.(question.GuessAnswer).Text) == "" {
			return incomplete(q.Type, "Please enter an answer.")
		}
	case *question.CalcValuePayload:
		if strings.TrimSpace(a.(question.CalcValueAnswer).Value) == "" {
			return incomplete(q.Type, "Please enter a value.")
		}
	case *question.CalcMultiPayload:
		fields := a.(question.CalcMultiAnswer).Fields
		for _, f := range p.Fields {
			if strings.TrimSpace(fields[f.ID].Value) == "" {
				return incomplete(q.Type, "Please enter a value for every field.")
			}
		}
	case *question.HotspotPayload:
		if len(a.(question.HotspotAnswer).Selected) == 0 {
			return incomplete(q.Type, "Select at least one area.")
		}
	case *question.FlowPayload:
		if len(a.(question.FlowAnswer).Path) == 0 {
			return incomplete(q.Type, "Choose at least one step.")
		}
	case *question.ExplainPayload, *question.ExamPayload:
	default:
		return fmt.Errorf("%w: %q", question.ErrUnknownType, q.Type)
	}
	return nil
}
