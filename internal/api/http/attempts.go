package http

import (
	"encoding/json"
	"net/http"
	"strings"

	auth "github.com/mind-engage/quiztab/internal/auth/middleware"
	"github.com/mind-engage/quiztab/internal/bank"
	"github.com/mind-engage/quiztab/internal/question"
	"github.com/mind-engage/quiztab/internal/rbac"
	"github.com/mind-engage/quiztab/internal/report"
)

// POST /attempts
// The attempt is always recorded for the caller.
func CreateAttemptHandler(b Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var a question.Attempt
		if err := json.NewDecoder(r.Body).Decode(&a); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		a.User = auth.SubjectFromContext(r.Context())
		saved, err := b.RecordAttempt(r.Context(), a)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusCreated, saved)
	}
}

// attemptScope parses ?user=&question_id=&limit=&offset=.
// Without attempt:view-all the user is forced to the caller.
func attemptScope(r *http.Request) bank.AttemptListOpts {
	q := r.URL.Query()
	opts := bank.AttemptListOpts{
		UserID:     strings.TrimSpace(q.Get("user")),
		QuestionID: strings.TrimSpace(q.Get("question_id")),
		Limit:      parseIntDefault(q.Get("limit"), 0),
		Offset:     parseIntDefault(q.Get("offset"), 0),
	}
	if !rbac.Can(r.Context(), rbac.AttemptViewAll) {
		opts.UserID = auth.SubjectFromContext(r.Context())
	}
	return opts
}

// GET /attempts
func ListAttemptsHandler(b Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := b.ListAttempts(r.Context(), attemptScope(r))
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, list)
	}
}

// GET /attempts/export.xlsx
func ExportAttemptsXLSXHandler(b Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		list, err := b.ListAttempts(r.Context(), attemptScope(r))
		if err != nil {
			writeError(w, err)
			return
		}
		w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
		w.Header().Set("Content-Disposition", `attachment; filename="attempts.xlsx"`)
		if err := report.WriteAttempts(w, list); err != nil {
			http.Error(w, "render xlsx: "+err.Error(), http.StatusInternalServerError)
		}
	}
}
