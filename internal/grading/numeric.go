package grading

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/mind-engage/quiztab/internal/question"
)

// baseUnits are the units a prefix may be attached to.
var baseUnits = map[string]bool{
	"A": true, "V": true, "W": true, "VA": true, "var": true, "Wh": true,
	"Ω": true, "Ohm": true, "ohm": true, "S": true,
	"F": true, "H": true, "Hz": true, "C": true, "J": true,
	"s": true, "m": true, "g": true, "l": true, "L": true,
	"Pa": true, "bar": true, "N": true, "K": true, "T": true,
}

var prefixes = map[string]float64{
	"p": 1e-12, "n": 1e-9, "µ": 1e-6, "μ": 1e-6, "u": 1e-6, "m": 1e-3,
	"c": 1e-2, "d": 1e-1, "k": 1e3, "M": 1e6, "G": 1e9,
}

// splitUnit resolves a unit symbol to its base unit and scale factor.
// Ohm is normalized to Ω so "kOhm" and "kΩ" compare equal.
func splitUnit(u string) (base string, factor float64, ok bool) {
	u = strings.TrimSpace(u)
	canon := func(b string) string {
		if strings.EqualFold(b, "ohm") {
			return "Ω"
		}
		return b
	}
	if baseUnits[u] {
		return canon(u), 1, true
	}
	for p, f := range prefixes {
		if rest, found := strings.CutPrefix(u, p); found && baseUnits[rest] {
			return canon(rest), f, true
		}
	}
	return "", 0, false
}

// convert expresses v given in unit from in unit to.
func convert(v float64, from, to string) (float64, bool) {
	if from == to {
		return v, true
	}
	bf, ff, ok1 := splitUnit(from)
	bt, ft, ok2 := splitUnit(to)
	if !ok1 || !ok2 || bf != bt {
		return 0, false
	}
	return v * ff / ft, true
}

// parseFloatLoose reads a learner's number. A decimal comma is accepted and
// text after the first field is returned as the inline unit.
func parseFloatLoose(s string) (v float64, unit string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, "", false
	}
	fields := strings.Fields(s)
	num := fields[0]
	if len(fields) > 1 {
		unit = strings.Join(fields[1:], "")
	}
	if !strings.Contains(num, ".") {
		num = strings.Replace(num, ",", ".", 1)
	}
	if v, err := strconv.ParseFloat(num, 64); err == nil {
		return v, unit, true
	}
	// "260mA": split at the first letter
	i := strings.IndexFunc(num, func(r rune) bool {
		return !(r >= '0' && r <= '9') && r != '.' && r != '-' && r != '+' && r != 'e' && r != 'E'
	})
	if i > 0 && unit == "" {
		if v, err := strconv.ParseFloat(num[:i], 64); err == nil {
			return v, num[i:], true
		}
	}
	return 0, "", false
}

func roundTo(v float64, decimals int) float64 {
	pow := math.Pow(10, float64(decimals))
	return math.Round(v*pow) / pow
}

// within compares got to want under tol. Without a tolerance only float
// noise is forgiven.
func within(got, want float64, tol *question.Tolerance) bool {
	diff := math.Abs(got - want)
	if tol == nil {
		return diff <= 1e-9*math.Max(1, math.Abs(want))
	}
	switch tol.Mode {
	case "relative":
		return diff <= tol.Value*math.Abs(want)+1e-12
	default:
		return diff <= tol.Value+1e-12
	}
}

type calcCheck struct {
	want        float64
	unit        string
	acceptUnits []string
	decimals    *int
	tol         *question.Tolerance
}

// check grades one value/unit answer. An empty unit is read as the expected
// unit, which the prompt displays next to the input.
func (c calcCheck) check(a question.CalcValueAnswer) (bool, string) {
	v, inline, ok := parseFloatLoose(a.Value)
	if !ok {
		return false, fmt.Sprintf("%q is not a number", a.Value)
	}
	unit := strings.TrimSpace(a.Unit)
	if unit == "" {
		unit = inline
	}
	if unit == "" {
		unit = c.unit
	}
	if c.unit != "" {
		if len(c.acceptUnits) > 0 && !contains(c.acceptUnits, unit) {
			return false, fmt.Sprintf("unit %s not accepted", unit)
		}
		conv, ok := convert(v, unit, c.unit)
		if !ok {
			return false, fmt.Sprintf("unit %s does not convert to %s", unit, c.unit)
		}
		v = conv
	}
	want := c.want
	if c.decimals != nil {
		v, want = roundTo(v, *c.decimals), roundTo(want, *c.decimals)
	}
	if !within(v, want, c.tol) {
		return false, ""
	}
	return true, ""
}

func contains(list []string, s string) bool {
	for _, e := range list {
		if strings.TrimSpace(e) == s {
			return true
		}
	}
	return false
}
