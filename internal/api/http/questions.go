package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	auth "github.com/mind-engage/quiztab/internal/auth/middleware"
	"github.com/mind-engage/quiztab/internal/bank"
	"github.com/mind-engage/quiztab/internal/formats"
	"github.com/mind-engage/quiztab/internal/formats/quiztab"
	"github.com/mind-engage/quiztab/internal/grading"
	"github.com/mind-engage/quiztab/internal/instance"
	"github.com/mind-engage/quiztab/internal/question"
)

// maxPackBytes bounds an uploaded pack document.
const maxPackBytes = 16 << 20

// Bank is the question bank the handlers serve.
type Bank interface {
	Catalog(ctx context.Context) (bank.Catalog, error)
	Import(ctx context.Context, raw []byte, replace bool, user string) (bank.ImportReport, error)
	Instantiate(ctx context.Context, id string, req bank.InstantiateRequest, user string) (instance.Instance, error)
	Grade(ctx context.Context, id string, req grading.GradeRequest) (grading.GradeResponse, error)
	RecordAttempt(ctx context.Context, a question.Attempt) (question.Attempt, error)
	ListAttempts(ctx context.Context, opts bank.AttemptListOpts) ([]question.Attempt, error)
	Export(ctx context.Context, schema string) (formats.Document, error)
}

// GET /questions
func CatalogHandler(b Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cat, err := b.Catalog(r.Context())
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, cat)
	}
}

// InstanceResponse is the body of a successful instantiate call.
// The variant's expected solution stays on the server.
type InstanceResponse struct {
	InstanceID string            `json:"instance_id"`
	Seed       int64             `json:"seed"`
	VariantID  string            `json:"variant_id,omitempty"`
	Params     map[string]any    `json:"params"`
	Question   question.Question `json:"question"`
}

// POST /questions/{id}/instantiate  {seed?, mode?}
func InstantiateHandler(b Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		var req bank.InstantiateRequest
		if err := decodeOptional(r, &req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		inst, err := b.Instantiate(r.Context(), id, req, auth.SubjectFromContext(r.Context()))
		if err != nil {
			writeError(w, err)
			return
		}
		params := inst.Params
		if params == nil {
			params = map[string]any{}
		}
		writeJSON(w, http.StatusOK, InstanceResponse{
			InstanceID: inst.InstanceID,
			Seed:       inst.Seed,
			VariantID:  inst.VariantID,
			Params:     params,
			Question:   inst.Question,
		})
	}
}

// POST /questions/{id}/grade  {answer, seed?, instance_params?, time_ms?}
// latency delays every verdict; zero disables it.
func GradeHandler(b Bank, latency time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(chi.URLParam(r, "id"))
		var req grading.GradeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad json: "+err.Error(), http.StatusBadRequest)
			return
		}
		if len(req.Answer) == 0 {
			http.Error(w, "answer required", http.StatusBadRequest)
			return
		}
		if latency > 0 {
			select {
			case <-time.After(latency):
			case <-r.Context().Done():
				return
			}
		}
		resp, err := b.Grade(r.Context(), id, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

// POST /questions/import?replace_duplicates=0|1   body: raw pack document
func ImportHandler(b Bank) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPackBytes))
		if err != nil {
			http.Error(w, "read body: "+err.Error(), http.StatusRequestEntityTooLarge)
			return
		}
		replace := parseBool(r.URL.Query().Get("replace_duplicates"))
		rep, err := b.Import(r.Context(), raw, replace, auth.SubjectFromContext(r.Context()))
		if err != nil {
			if rep.Errors != nil {
				// the report explains the rejection
				writeJSON(w, statusFor(err), rep)
				return
			}
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, rep)
	}
}

// ExportHandler writes the bank in ?schema=, falling back to def.
//
//	GET /questions/export        flat dialect
//	GET /packs/export            hierarchical dialect
func ExportHandler(b Bank, def string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		schema := strings.TrimSpace(r.URL.Query().Get("schema"))
		if schema == "" {
			schema = def
		}
		doc, err := b.Export(r.Context(), schema)
		if err != nil {
			writeError(w, err)
			return
		}
		name := fmt.Sprintf("quiztab-%s.json", time.Now().UTC().Format("20060102"))
		w.Header().Set("Content-Disposition", `attachment; filename="`+name+`"`)
		writeJSON(w, http.StatusOK, doc)
	}
}

// DefaultPackSchema is the dialect of GET /packs/export.
const DefaultPackSchema = quiztab.Schema
