package formats

import (
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"
)

const envelopeURL = "schema://quiztab/pack-envelope.json"

// envelopeSchema fixes the top-level shape shared by every dialect.
const envelopeSchema = `{
  "type": "object",
  "required": ["schema"],
  "properties": {
    "schema":    {"type": "string", "minLength": 1},
    "meta":      {"type": "object"},
    "settings":  {"type": "object"},
    "topics":    {"type": "array", "items": {"type": "object"}},
    "questions": {"type": "array", "items": {"type": "object"}},
    "stems":     {"type": "array", "items": {"type": "object"}},
    "methods":   {"type": "array", "items": {"type": "object"}},
    "assets":    {"type": "array"}
  }
}`

var (
	envelopeOnce sync.Once
	envelope     *jsonschema.Schema
	envelopeErr  error
)

func compiledEnvelope() (*jsonschema.Schema, error) {
	envelopeOnce.Do(func() {
		var def any
		if err := json.Unmarshal([]byte(envelopeSchema), &def); err != nil {
			envelopeErr = fmt.Errorf("parse envelope schema: %w", err)
			return
		}
		c := jsonschema.NewCompiler()
		if err := c.AddResource(envelopeURL, def); err != nil {
			envelopeErr = fmt.Errorf("add resource: %w", err)
			return
		}
		envelope, envelopeErr = c.Compile(envelopeURL)
	})
	return envelope, envelopeErr
}

// CheckEnvelope validates the document's top-level structure.
func CheckEnvelope(doc any) error {
	sch, err := compiledEnvelope()
	if err != nil {
		return err
	}
	if err := sch.Validate(doc); err != nil {
		return fmt.Errorf("%s", strings.Join(strings.Fields(err.Error()), " "))
	}
	return nil
}
