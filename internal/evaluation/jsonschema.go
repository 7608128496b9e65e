package evaluation

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-viper/mapstructure/v2"
	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/agentgauge/agentgauge/internal/models"
)

// schemaCriteria are the parameters the schema evaluator understands.
type schemaCriteria struct {
	// Schema is an inline JSON Schema the output must match.
	Schema map[string]any `mapstructure:"schema"`
}

// SchemaEvaluator scores output by validating it as JSON against a schema
// supplied in the test criteria. Useful for agents that must emit structured
// responses.
type SchemaEvaluator struct{}

// NewSchemaEvaluator creates a JSON Schema evaluator.
func NewSchemaEvaluator() *SchemaEvaluator {
	return &SchemaEvaluator{}
}

func (s *SchemaEvaluator) Name() string { return "json_schema" }

// Score parses the output as JSON and validates it against the criteria
// schema. Malformed output scores zero; a malformed schema fails the
// evaluation itself.
func (s *SchemaEvaluator) Score(ctx context.Context, output string, criteria map[string]any) (*models.Evaluation, error) {
	var c schemaCriteria
	if err := mapstructure.Decode(criteria, &c); err != nil {
		return nil, fmt.Errorf("decoding schema criteria: %w", err)
	}
	if c.Schema == nil {
		return nil, fmt.Errorf("schema criteria requires a 'schema' object")
	}

	var outputValue any
	if err := json.Unmarshal([]byte(output), &outputValue); err != nil {
		return &models.Evaluation{
			Passed:    false,
			Score:     0.0,
			Reasoning: fmt.Sprintf("output is not valid JSON: %v", err),
		}, nil
	}

	schema, err := compileCriteriaSchema(c.Schema)
	if err != nil {
		return nil, err
	}

	if err := schema.Validate(outputValue); err != nil {
		return &models.Evaluation{
			Passed:    false,
			Score:     0.0,
			Reasoning: fmt.Sprintf("schema validation failed: %v", err),
		}, nil
	}

	return &models.Evaluation{
		Passed:    true,
		Score:     1.0,
		Reasoning: "output matches JSON schema",
	}, nil
}

// compileCriteriaSchema round-trips the criteria map through JSON so YAML
// decoded values compile cleanly.
func compileCriteriaSchema(schemaMap map[string]any) (*jsonschema.Schema, error) {
	schemaJSON, err := json.Marshal(schemaMap)
	if err != nil {
		return nil, fmt.Errorf("serializing criteria schema: %w", err)
	}

	var schemaValue any
	if err := json.Unmarshal(schemaJSON, &schemaValue); err != nil {
		return nil, fmt.Errorf("parsing criteria schema: %w", err)
	}

	compiler := jsonschema.NewCompiler()
	if err := compiler.AddResource("criteria.schema.json", schemaValue); err != nil {
		return nil, fmt.Errorf("adding criteria schema resource: %w", err)
	}

	schema, err := compiler.Compile("criteria.schema.json")
	if err != nil {
		return nil, fmt.Errorf("compiling criteria schema: %w", err)
	}
	return schema, nil
}
