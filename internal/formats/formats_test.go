package formats_test

import (
	"encoding/json"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mind-engage/quiztab/internal/formats"
	_ "github.com/mind-engage/quiztab/internal/formats/all"
	"github.com/mind-engage/quiztab/internal/formats/legacy"
	"github.com/mind-engage/quiztab/internal/formats/quiztab"
	"github.com/mind-engage/quiztab/internal/question"
)

func normalize(t *testing.T, doc any) *formats.ImportResult {
	t.Helper()
	raw, err := json.Marshal(doc)
	require.NoError(t, err)
	return formats.Normalize(raw)
}

func TestNormalize_RejectsMissingSchema(t *testing.T) {
	for _, doc := range []string{
		`{"questions":[{"id":"q1","type":"single"}]}`,
		`{"schema":"something-else","questions":[]}`,
		`[1,2,3]`,
		`not json`,
	} {
		res := formats.Normalize([]byte(doc))
		assert.NotEmpty(t, res.Errors, doc)
		assert.Empty(t, res.Questions, doc)
		assert.Empty(t, res.Topics, doc)
	}
}

func TestNormalize_EnvelopeShape(t *testing.T) {
	res := formats.Normalize([]byte(`{"schema":"ap2-questionpack-v1","questions":{"id":"q1"}}`))
	require.Len(t, res.Errors, 1)
	assert.True(t, strings.HasPrefix(res.Errors[0], "Invalid pack structure"), res.Errors[0])
	assert.Empty(t, res.Questions)
}

func TestLegacy_SingleCorrectIndex(t *testing.T) {
	res := normalize(t, map[string]any{
		"schema": "ap2-questionpack-v1",
		"questions": []any{map[string]any{
			"id": "q1", "type": "single", "topic_slug": "t", "prompt": "P",
			"options": []string{"a", "b"}, "correct": []int{1},
		}},
	})
	require.Empty(t, res.Errors)
	require.Len(t, res.Questions, 1)
	p, ok := res.Questions[0].Payload.(*question.SinglePayload)
	require.True(t, ok)
	assert.Equal(t, 1, p.CorrectIndex)
	assert.Equal(t, "internal:import", res.Questions[0].SourceRef)

	require.Len(t, res.Topics, 1, "unknown topic is auto-created")
	assert.Equal(t, "t", res.Topics[0].ID)
	assert.Equal(t, 0, res.Topics[0].Depth)
}

func TestLegacy_SummaryCounts(t *testing.T) {
	res := normalize(t, map[string]any{
		"schema": "ap2-questionpack-v1",
		"topics": []any{map[string]any{"slug": "netz-werk"}, map[string]any{"title": "no slug"}},
		"questions": []any{
			map[string]any{"id": "a", "type": "truefalse", "topic_slug": "netz-werk", "prompt": "P", "correct": true},
			map[string]any{"id": "b", "type": "guessword", "topic_slug": "netz-werk", "prompt": "P", "answers": []string{"x"}},
			map[string]any{"id": "c", "type": "explainterm", "topic_slug": "other_topic", "prompt": "P", "keywords": []string{"k1", "k2"}},
			map[string]any{"id": "d", "type": "single", "topic_slug": "t", "prompt": "P"},
			map[string]any{"id": "e", "type": "essay", "topic_slug": "t", "prompt": "P"},
			map[string]any{"type": "single"},
			map[string]any{"id": "g", "type": "ordering", "topic_slug": "t", "text": "P", "items": []string{"x", "y"}, "correct_order": []int{1, 0}},
			map[string]any{"id": "h", "type": "multi", "topic_slug": "t"},
		},
	})

	assert.Equal(t, 8, res.Summary.Total)
	assert.Equal(t, 4, res.Summary.Invalid)
	assert.Equal(t, 4, res.Summary.Valid)
	assert.Len(t, res.Questions, 4)
	assert.Equal(t, 1, res.Summary.Types[question.TypeGuess])
	assert.Equal(t, 1, res.Summary.Types[question.TypeExplain])
	assert.Equal(t, 2, res.Summary.Topics["netz-werk"])

	assert.Contains(t, res.Errors, "Topic missing slug.")
	assert.Contains(t, res.Errors, "Single d missing options/correct.")
	assert.Contains(t, res.Errors, "Unknown type essay for e.")
	assert.Contains(t, res.Errors, "Question missing id or type.")
	assert.Contains(t, res.Errors, "Question h missing prompt.")

	names := map[string]string{}
	for _, tp := range res.Topics {
		names[tp.ID] = tp.Name
	}
	assert.Equal(t, "Netz Werk", names["netz-werk"])
	assert.Equal(t, "Other Topic", names["other_topic"])

	for _, q := range res.Questions {
		if q.ID == "c" {
			assert.Equal(t, "k1, k2", q.Payload.(*question.ExplainPayload).ExpectedAnswer)
		}
	}
}

func TestLegacy_MatchingForms(t *testing.T) {
	res := normalize(t, map[string]any{
		"schema": "ap2-questionpack-v1",
		"questions": []any{
			map[string]any{"id": "m1", "type": "matching", "topic_slug": "t", "prompt": "P",
				"left": []string{"a", "b"}, "right": []string{"1", "2"}, "pairs": [][]int{{0, 1}, {1, 0}}},
			map[string]any{"id": "m2", "type": "matching", "topic_slug": "t", "prompt": "P",
				"left": []string{"a", "b"}, "right": []string{"1", "2"}},
			map[string]any{"id": "m3", "type": "matching", "topic_slug": "t", "prompt": "P",
				"left": []string{"a", "b"}, "right": []string{"1"}},
		},
	})
	require.Len(t, res.Questions, 2)
	assert.Equal(t, []question.MatchPair{{Left: "a", Right: "2"}, {Left: "b", Right: "1"}},
		res.Questions[0].Payload.(*question.MatchingPayload).Pairs)
	assert.Contains(t, res.Errors, "Matching m3 missing pairs.")
}

func TestLegacyV2_TopicParentsAndVariants(t *testing.T) {
	res := normalize(t, map[string]any{
		"schema": "ap2-questionpack-v2",
		"topics": []any{
			map[string]any{"slug": "net"},
			map[string]any{"slug": "ip", "parent": "net"},
		},
		"questions": []any{map[string]any{
			"id": "q", "type": "single", "topic_slug": "ip", "prompt": "P",
			"options": []string{"a", "b"}, "correct": 0,
			"variants": []any{map[string]any{"variant_id": "v1", "param_overrides": map[string]any{"prompt": "A"}}},
		}},
	})
	require.Empty(t, res.Errors)
	require.Len(t, res.Questions, 1)
	assert.True(t, res.Questions[0].Parametric())
	assert.Equal(t, "net/ip", res.Topics[1].Path)
	assert.Equal(t, 1, res.Topics[1].Depth)
}

func quiztabPack() map[string]any {
	q := func(id, method string, payload map[string]any) map[string]any {
		return map[string]any{"id": id, "topic_slug": "netzwerk", "method_id": method, "prompt": id + "?",
			"payload": payload, "solution": map[string]any{"final": "x"}, "support": map[string]any{}}
	}
	return map[string]any{
		"schema":   quiztab.Schema,
		"meta":     map[string]any{"title": "Test Pack", "created_at": "2026-02-23"},
		"settings": map[string]any{},
		"topics":   []any{map[string]any{"slug": "netzwerk", "title": "Netzwerk"}},
		"methods":  []any{},
		"assets": []any{map[string]any{"id": "asset_table", "type": "table",
			"content": map[string]any{"headers": []string{"A", "B"}, "rows": [][]string{{"1", "2"}}}}},
		"questions": []any{
			q("q_single", "single", map[string]any{"options": []string{"a", "b"}, "correct": []int{0}}),
			q("q_multi", "multi", map[string]any{"options": []string{"a", "b", "c"}, "correct": []int{0, 2}}),
			q("q_tf", "truefalse", map[string]any{"correct": true}),
			q("q_fill", "fillblank", map[string]any{"blanks": [][]string{{"a", "A"}}}),
			q("q_match", "matching", map[string]any{"pairs": []any{map[string]any{"left": "l1", "right": "r1"}}}),
			q("q_order", "ordering", map[string]any{"items": []string{"a", "b"}, "correct_order": []int{0, 1}}),
			q("q_guess", "guess", map[string]any{"answers": []string{"term"}}),
			q("q_explain", "explain", map[string]any{"expectedAnswer": "keywords"}),
			q("q_exam", "exam", map[string]any{"expectedAnswer": "key"}),
			q("q_calc", "calc_value", map[string]any{"expected_value": 0.26, "expected_unit": "A",
				"accept_units": []string{"A", "mA"}, "rounding_decimals": 2,
				"tolerance": map[string]any{"mode": "relative", "value": 0.02}}),
			q("q_calc_multi", "calc_multi", map[string]any{
				"fields": []any{
					map[string]any{"id": "p", "label": "P", "unit": "W", "decimals": 2},
					map[string]any{"id": "u", "label": "U", "unit": "V", "decimals": 2},
				},
				"answers": map[string]any{"p": map[string]any{"value": 10, "unit": "W"}, "u": map[string]any{"value": 5, "unit": "V"}},
			}),
			q("q_hot", "hotspot_svg", map[string]any{
				"svg":      "<svg><rect id='r1'/></svg>",
				"hotspots": []any{map[string]any{"id": "r1", "label": "R1", "svg_element_id": "r1"}},
				"correct":  []string{"r1"},
			}),
			q("q_flow", "troubleshoot_flow", map[string]any{
				"start": "n1", "success_node": "n2",
				"nodes": []any{
					map[string]any{"id": "n1", "text": "Start", "choices": []any{map[string]any{"id": "c1", "next": "n2"}}},
					map[string]any{"id": "n2", "text": "Done", "choices": []any{}},
				},
			}),
		},
	}
}

func TestQuiztab_AllTypesImport(t *testing.T) {
	res := normalize(t, quiztabPack())
	require.Empty(t, res.Errors)
	assert.Equal(t, 13, res.Summary.Valid)
	assert.Len(t, res.Assets, 1)

	calc := res.Questions[9].Payload.(*question.CalcValuePayload)
	assert.Equal(t, 0.26, calc.ExpectedValue)
	require.NotNil(t, calc.Tolerance)
	assert.Equal(t, "relative", calc.Tolerance.Mode)
	require.NotNil(t, calc.RoundingDecimals)
	assert.Equal(t, 2, *calc.RoundingDecimals)
}

func TestQuiztab_StemsMethodsAndTree(t *testing.T) {
	res := normalize(t, map[string]any{
		"schema": quiztab.Schema,
		"topics": []any{
			map[string]any{"slug": "root"},
			map[string]any{"slug": "leaf", "parent_topic_id": "root"},
			map[string]any{"slug": "lost", "parent_topic_id": "ghost"},
		},
		"methods": []any{map[string]any{"id": "pick_one", "type": "single"}},
		"stems": []any{map[string]any{"id": "s1", "prompt": "Stem prompt",
			"variants": []any{map[string]any{"variant_id": "v1", "param_overrides": map[string]any{"prompt": "V1"}}}}},
		"questions": []any{
			map[string]any{"id": "q1", "topic_slug": "leaf", "method_id": "pick_one", "stem_id": "s1",
				"payload": map[string]any{"options": []string{"a", "b"}, "correct": []int{1}}},
			map[string]any{"id": "q2", "topic_slug": "leaf", "method_id": "single", "prompt": "P"},
			map[string]any{"id": "q3", "topic_slug": "leaf", "method_id": "single", "stem_id": "nope",
				"payload": map[string]any{"options": []string{"a"}, "correct": []int{0}}},
		},
	})
	require.Len(t, res.Questions, 1)
	q := res.Questions[0]
	assert.Equal(t, question.TypeSingle, q.Type)
	assert.Equal(t, "Stem prompt", q.Prompt)
	require.True(t, q.Parametric())
	assert.Equal(t, "v1", q.Randomization.Variants[0].ID)

	assert.Equal(t, 2, res.Summary.Invalid)
	assert.Contains(t, res.Errors, "Question q2 missing payload.")
	assert.Contains(t, res.Errors, "Topic lost references unknown parent ghost.")

	paths := map[string]string{}
	for _, tp := range res.Topics {
		paths[tp.ID] = tp.Path
	}
	assert.Equal(t, "root/leaf", paths["leaf"])
	assert.Equal(t, "lost", paths["lost"])
}

func TestExport_RoundTrip(t *testing.T) {
	first := normalize(t, quiztabPack())
	require.Empty(t, first.Errors)
	bank := formats.Bank{Topics: first.Topics, Questions: first.Questions}

	for _, schema := range []string{legacy.SchemaV1, legacy.SchemaV2, quiztab.Schema} {
		t.Run(schema, func(t *testing.T) {
			doc, err := formats.Export(schema, bank)
			require.NoError(t, err)
			again := normalize(t, doc)
			require.Empty(t, again.Errors)
			require.Len(t, again.Questions, len(first.Questions))
			for i := range first.Questions {
				want, got := first.Questions[i], again.Questions[i]
				assert.Equal(t, want.Type, got.Type, want.ID)
				assert.Equal(t, want.Payload, got.Payload, want.ID)
				assert.Equal(t, want.Prompt, got.Prompt, want.ID)
			}
		})
	}
}

func TestExport_ExplainTextSurvives(t *testing.T) {
	texts := []string{"Ohm, Volt", "a,b", "V = I * R", "x ,y"}
	qs := make([]question.Question, len(texts))
	for i, s := range texts {
		qs[i] = question.Question{ID: fmt.Sprintf("e%d", i), TopicID: "t", Type: question.TypeExplain,
			Prompt: "P", Payload: &question.ExplainPayload{ExpectedAnswer: s}}
	}
	doc, err := formats.Export(legacy.SchemaV2, formats.Bank{
		Topics: []question.Topic{{ID: "t", Name: "T"}}, Questions: qs})
	require.NoError(t, err)

	again := normalize(t, doc)
	require.Empty(t, again.Errors)
	require.Len(t, again.Questions, len(texts))
	for i, s := range texts {
		assert.Equal(t, s, again.Questions[i].Payload.(*question.ExplainPayload).ExpectedAnswer)
	}
}

func TestExport_LegacyAliases(t *testing.T) {
	res := normalize(t, quiztabPack())
	doc, err := formats.Export(legacy.SchemaV1, formats.Bank{Topics: res.Topics, Questions: res.Questions})
	require.NoError(t, err)

	types := map[string]map[string]any{}
	for _, raw := range doc["questions"].([]any) {
		m := raw.(map[string]any)
		types[m["id"].(string)] = m
	}
	assert.Equal(t, "guessword", types["q_guess"]["type"])
	assert.Equal(t, "explainterm", types["q_explain"]["type"])
	assert.Equal(t, "self", types["q_exam"]["grading"])
	assert.Equal(t, "Quiztab Export", doc["meta"].(formats.Meta).Title)
}

func TestReadDocument_YAML(t *testing.T) {
	src := `
schema: ap2-questionpack-v1
questions:
  - id: q1
    type: truefalse
    topic_slug: basics
    prompt: Is it?
    correct: true
`
	raw, err := formats.ReadDocument(strings.NewReader(src), "pack.yaml")
	require.NoError(t, err)
	res := formats.Normalize(raw)
	require.Empty(t, res.Errors)
	require.Len(t, res.Questions, 1)
	assert.True(t, res.Questions[0].Payload.(*question.TrueFalsePayload).Correct)
}

func TestSlugToTitle(t *testing.T) {
	assert.Equal(t, "Ohm Law Basics", formats.SlugToTitle("ohm-law_basics"))
}
