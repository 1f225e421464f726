// Package report renders attempt logs as spreadsheets.
package report

import (
	"fmt"
	"io"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/mind-engage/quiztab/internal/question"
)

const (
	AttemptsSheet = "Attempts"
	SummarySheet  = "Summary"
)

var attemptHeader = []any{"Attempt", "Question", "User", "Correct", "Self-graded", "Time (ms)", "Recorded at", "Answer"}

// WriteAttempts writes one row per attempt plus a per-question summary sheet.
func WriteAttempts(w io.Writer, attempts []question.Attempt) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", AttemptsSheet); err != nil {
		return err
	}
	bold, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(AttemptsSheet, "A1", &attemptHeader); err != nil {
		return err
	}
	if err := f.SetRowStyle(AttemptsSheet, 1, 1, bold); err != nil {
		return err
	}

	type tally struct{ total, correct int }
	perQuestion := map[string]*tally{}
	var order []string

	for i, a := range attempts {
		var ms any
		if a.TimeMS != nil {
			ms = *a.TimeMS
		}
		row := []any{a.ID, a.QuestionID, a.User, a.Correct, a.GradedByUser, ms,
			a.Timestamp.UTC().Format(time.RFC3339), string(a.Answer)}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(AttemptsSheet, cell, &row); err != nil {
			return err
		}

		t, ok := perQuestion[a.QuestionID]
		if !ok {
			t = &tally{}
			perQuestion[a.QuestionID] = t
			order = append(order, a.QuestionID)
		}
		t.total++
		if a.Correct {
			t.correct++
		}
	}

	if _, err := f.NewSheet(SummarySheet); err != nil {
		return err
	}
	header := []any{"Question", "Attempts", "Correct", "Rate"}
	if err := f.SetSheetRow(SummarySheet, "A1", &header); err != nil {
		return err
	}
	if err := f.SetRowStyle(SummarySheet, 1, 1, bold); err != nil {
		return err
	}
	for i, id := range order {
		t := perQuestion[id]
		row := []any{id, t.total, t.correct, fmt.Sprintf("%.0f%%", 100*float64(t.correct)/float64(t.total))}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(SummarySheet, cell, &row); err != nil {
			return err
		}
	}

	return f.Write(w)
}
