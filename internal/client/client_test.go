package client_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	api "github.com/mind-engage/quiztab/internal/api/http"
	auth "github.com/mind-engage/quiztab/internal/auth/middleware"
	"github.com/mind-engage/quiztab/internal/bank"
	"github.com/mind-engage/quiztab/internal/client"
	"github.com/mind-engage/quiztab/internal/grading"
	"github.com/mind-engage/quiztab/internal/question"
	"github.com/mind-engage/quiztab/internal/session"
)

const pack = `{"schema":"quiztab-questionpack-v2","topics":[{"slug":"ohm"}],"questions":[
 {"id":"q_calc","topic_slug":"ohm","method_id":"calc_value","prompt":"I?",
  "payload":{"expected_value":0.26,"expected_unit":"A","accept_units":["A","mA"],"rounding_decimals":2,
             "tolerance":{"mode":"relative","value":0.02}}},
 {"id":"q_ex","topic_slug":"ohm","method_id":"explain","prompt":"Ohm?","payload":{"expectedAnswer":"U=RI"}}]}`

func newServer(t *testing.T) *httptest.Server {
	t.Helper()
	hash := func(pw string) string {
		h, err := bcrypt.GenerateFromPassword([]byte(pw), bcrypt.MinCost)
		require.NoError(t, err)
		return string(h)
	}
	a := auth.NewAuthService("test", []auth.LocalUser{
		{Name: "ana", Role: "learner", Hash: hash("ana-pw")},
		{Name: "bob", Role: "author", Hash: hash("bob-pw")},
	})
	svc := bank.NewService(bank.NewMemoryStore())
	srv := httptest.NewServer(api.NewRouter(api.Deps{Bank: svc, Auth: a, EnableLocalAuth: true}))
	t.Cleanup(srv.Close)
	return srv
}

func login(t *testing.T, srv *httptest.Server, user, pw string) *client.Client {
	t.Helper()
	c := client.New(srv.URL)
	_, err := c.Login(context.Background(), user, pw)
	require.NoError(t, err)
	return c
}

func TestLoginFailure(t *testing.T) {
	srv := newServer(t)
	_, err := client.New(srv.URL).Login(context.Background(), "ana", "wrong")
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
}

func TestImportExportRoundTrip(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	author := login(t, srv, "bob", "bob-pw")

	rep, err := author.Import(ctx, []byte(pack), false)
	require.NoError(t, err)
	assert.Equal(t, 2, rep.Added)
	assert.Equal(t, 2, rep.Summary.Valid)

	rep, err = author.Import(ctx, []byte(`{"schema":"nope"}`), false)
	var apiErr *client.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.Status)
	assert.NotEmpty(t, rep.Errors)

	doc, err := author.Export(ctx, "/packs/export", "")
	require.NoError(t, err)
	var m map[string]any
	require.NoError(t, json.Unmarshal(doc, &m))
	assert.Equal(t, "quiztab-questionpack-v2", m["schema"])

	learner := login(t, srv, "ana", "ana-pw")
	_, err = learner.Export(ctx, "/questions/export", "")
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, http.StatusForbidden, apiErr.Status)
}

func TestSessionAgainstServer(t *testing.T) {
	ctx := context.Background()
	srv := newServer(t)
	_, err := login(t, srv, "bob", "bob-pw").Import(ctx, []byte(pack), false)
	require.NoError(t, err)

	c := login(t, srv, "ana", "ana-pw")
	cat, err := c.Catalog(ctx)
	require.NoError(t, err)
	require.Len(t, cat.Questions, 2)

	d := grading.NewDispatcher(grading.NewEngine(), grading.WithAuthority(c))
	e := session.New(cat.Topics, cat.Questions, d, c,
		session.WithInstantiator(c), session.WithTestMode(3))
	e.SetFilter(session.Filter{Types: []question.Type{question.TypeCalcValue}})

	p, err := e.Next(ctx)
	require.NoError(t, err)
	require.NotNil(t, p)
	res, err := e.Submit(ctx, p.ID, question.CalcValueAnswer{Value: "260", Unit: "mA"})
	require.NoError(t, err)
	assert.True(t, res.Outcome.Verdict.Correct)
	require.NotNil(t, res.Attempt)
	assert.Equal(t, "ana", res.Attempt.User)

	e.SetFilter(session.Filter{Types: []question.Type{question.TypeExplain}})
	p, err = e.Next(ctx)
	require.NoError(t, err)
	res, err = e.Submit(ctx, p.ID, question.TextAnswer{Text: "voltage over current"})
	require.NoError(t, err)
	assert.Equal(t, grading.AwaitingSelfGrade, res.Outcome.Kind)
	att, err := e.SelfGrade(ctx, p.ID, false)
	require.NoError(t, err)
	assert.True(t, att.GradedByUser)
	assert.False(t, att.Correct)

	n, err := c.CountAttempts(ctx, "q_calc")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	var xlsx bytes.Buffer
	require.NoError(t, c.AttemptsXLSX(ctx, &xlsx, bank.AttemptListOpts{}))
	assert.NotZero(t, xlsx.Len())
}

func TestMalformedGradeResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"feedback":"hm"}`))
	}))
	t.Cleanup(srv.Close)

	d := grading.NewDispatcher(grading.NewEngine(), grading.WithAuthority(client.New(srv.URL)))
	q := question.Question{ID: "q", TopicID: "t", Type: question.TypeHotspotSVG, Prompt: "P",
		Payload: &question.HotspotPayload{SVG: "<svg/>", Hotspots: []question.Hotspot{{ID: "a"}}, Correct: []string{"a"}}}
	_, err := d.Dispatch(context.Background(), grading.Submission{Question: q, Answer: question.HotspotAnswer{Selected: []string{"a"}}})
	assert.ErrorIs(t, err, grading.ErrAuthority)
}
