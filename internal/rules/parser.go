package rules

import (
	"bytes"
	"embed"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"messaging/internal/logger"
	"messaging/pkg/cel"
	"messaging/pkg/datareader"
	apperrors "messaging/pkg/errors"
)

//go:embed schemas/*.json
var schemaFS embed.FS

const (
	rulesetSchemaURL = "https://schemas.messaging.local/rules/ruleset.schema.json"
	ruleSchemaURL    = "https://schemas.messaging.local/rules/rule.schema.json"
)

// Parser turns rule-set JSON into compiled rules.
type Parser struct {
	evaluator     *cel.Evaluator
	rulesetSchema *jsonschema.Schema
	ruleSchema    *jsonschema.Schema
	logger        logger.Logger
}

func NewParser(evaluator *cel.Evaluator, log logger.Logger) (*Parser, error) {
	rulesetSchema, err := compileSchema(rulesetSchemaURL, "schemas/ruleset.schema.json")
	if err != nil {
		return nil, err
	}
	ruleSchema, err := compileSchema(ruleSchemaURL, "schemas/rule.schema.json")
	if err != nil {
		return nil, err
	}

	return &Parser{
		evaluator:     evaluator,
		rulesetSchema: rulesetSchema,
		ruleSchema:    ruleSchema,
		logger:        log,
	}, nil
}

func compileSchema(url, path string) (*jsonschema.Schema, error) {
	data, err := schemaFS.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read schema %s: %w", path, err)
	}

	c := jsonschema.NewCompiler()
	c.Draft = jsonschema.Draft2020
	if err := c.AddResource(url, bytes.NewReader(data)); err != nil {
		return nil, fmt.Errorf("failed to load schema %s: %w", path, err)
	}
	schema, err := c.Compile(url)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema %s: %w", path, err)
	}
	return schema, nil
}

// Parse reads a rule set. Individual rules that fail validation or whose
// condition cannot be compiled are skipped. An error is returned only when the
// content is not a rule set at all; a rule set without usable rules yields an
// empty slice.
func (p *Parser) Parse(content string) ([]Rule, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, apperrors.ErrDecode.WithMessage("rule content is empty")
	}

	var doc interface{}
	if err := json.Unmarshal([]byte(content), &doc); err != nil {
		return nil, apperrors.ErrDecode.WithMessage("rule content is not JSON").WithCause(err)
	}
	if err := p.rulesetSchema.Validate(doc); err != nil {
		return nil, apperrors.ErrDecode.WithMessage("content is not a rule set").WithCause(err)
	}

	ruleset := datareader.New(doc)
	raws := ruleset.Slice("rules")
	out := make([]Rule, 0, len(raws))
	for idx, raw := range raws {
		rule, err := p.parseRule(raw)
		if err != nil {
			p.logger.Debugw("Skipping rule", "index", idx, "error", err)
			continue
		}
		out = append(out, *rule)
	}
	return out, nil
}

func (p *Parser) parseRule(raw interface{}) (*Rule, error) {
	if err := p.ruleSchema.Validate(raw); err != nil {
		return nil, apperrors.ErrValidation.WithMessage("invalid rule").WithCause(err)
	}

	r := datareader.New(raw)
	condition := datareader.CopyMap(r.Map("condition"))
	compiled, err := p.evaluator.CompileCondition(condition)
	if err != nil {
		return nil, apperrors.ErrValidation.WithMessage("invalid rule condition").WithCause(err)
	}

	consequences := make([]Consequence, 0)
	for _, c := range r.Maps("consequences") {
		cr := datareader.Reader(c)
		consequences = append(consequences, Consequence{
			ID:     cr.String("id", ""),
			Type:   cr.String("type", ""),
			Detail: datareader.CopyMap(cr.Map("detail")),
		})
	}

	return &Rule{
		Condition:    condition,
		Consequences: consequences,
		compiled:     compiled,
	}, nil
}
