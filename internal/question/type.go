package question

import "strings"

// Type is the closed set of question kinds the engine understands.
type Type string

const (
	TypeSingle           Type = "single"
	TypeMulti            Type = "multi"
	TypeTrueFalse        Type = "truefalse"
	TypeMatching         Type = "matching"
	TypeOrdering         Type = "ordering"
	TypeFillBlank        Type = "fillblank"
	TypeGuess            Type = "guess"
	TypeCalcValue        Type = "calc_value"
	TypeCalcMulti        Type = "calc_multi"
	TypeHotspotSVG       Type = "hotspot_svg"
	TypeTroubleshootFlow Type = "troubleshoot_flow"
	TypeExplain          Type = "explain"
	TypeExam             Type = "exam"
)

// AllTypes lists every supported type in display order.
var AllTypes = []Type{
	TypeSingle, TypeMulti, TypeTrueFalse, TypeMatching, TypeOrdering,
	TypeFillBlank, TypeGuess, TypeCalcValue, TypeCalcMulti, TypeHotspotSVG,
	TypeTroubleshootFlow, TypeExplain, TypeExam,
}

// aliases maps authoring names to canonical types.
var aliases = map[string]Type{
	"guessword":   TypeGuess,
	"explainterm": TypeExplain,
	"hotspot":     TypeHotspotSVG,
	"flow":        TypeTroubleshootFlow,
}

// ParseType resolves a raw type tag, applying the alias table.
func ParseType(s string) (Type, bool) {
	s = strings.TrimSpace(strings.ToLower(s))
	if t, ok := aliases[s]; ok {
		return t, true
	}
	for _, t := range AllTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}

// GradingMode tells the dispatcher where a verdict comes from.
type GradingMode int

const (
	GradeLocal GradingMode = iota
	GradeRemote
	GradeSelf
)

func (m GradingMode) String() string {
	switch m {
	case GradeLocal:
		return "local"
	case GradeRemote:
		return "remote"
	case GradeSelf:
		return "self"
	}
	return "unknown"
}

// Mode reports the default grading route for t.
// hotspot_svg defaults to remote; the dispatcher can opt into local set comparison.
func (t Type) Mode() GradingMode {
	switch t {
	case TypeCalcValue, TypeCalcMulti, TypeHotspotSVG, TypeTroubleshootFlow:
		return GradeRemote
	case TypeExplain, TypeExam:
		return GradeSelf
	default:
		return GradeLocal
	}
}
