// Package template renders merge fields inside workflow action parameters.
package template

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"text/template"
	"time"

	"github.com/stagehandhq/stagehand/pkg/models"
)

// RenderWithContext renders input against the execution scope, exposing the
// triggering entity's fields, event data, execution metadata and the actor.
func RenderWithContext(input string, executionCtx *models.ExecutionContext) (any, error) {
	return Render(input, executionCtx.TemplateScope())
}

// RenderString is RenderWithContext for parameters that must stay strings,
// such as note bodies and notification titles. Structured render results are
// re-encoded as JSON text.
func RenderString(input string, executionCtx *models.ExecutionContext) (string, error) {
	result, err := RenderWithContext(input, executionCtx)
	if err != nil {
		return "", err
	}

	switch value := result.(type) {
	case string:
		return value, nil
	case nil:
		return "", nil
	default:
		encoded, err := json.Marshal(value)
		if err != nil {
			return "", fmt.Errorf("failed to encode rendered value for '%s': %w", input, err)
		}

		return string(encoded), nil
	}
}

func Render(templateStr string, data any) (any, error) {
	tmpl, err := template.
		New("transform").
		Funcs(template.FuncMap{
			"now": func() string {
				return time.Now().UTC().Format(time.RFC3339)
			},
			"upper": strings.ToUpper,
			"lower": strings.ToLower,
			"title": func(s string) string {
				if s == "" {
					return s
				}

				return strings.ToUpper(s[:1]) + s[1:]
			},
		}).Parse(templateStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse template '%s': %w", templateStr, err)
	}

	var buf strings.Builder

	err = tmpl.Execute(&buf, data)
	if err != nil {
		return nil, fmt.Errorf("failed to execute template '%s': %w", templateStr, err)
	}

	result := strings.TrimSpace(buf.String())

	// Templates that build JSON objects or arrays come back as structured data.
	if (strings.HasPrefix(result, "{") && strings.HasSuffix(result, "}")) ||
		(strings.HasPrefix(result, "[") && strings.HasSuffix(result, "]")) {
		var jsonResult any

		err := json.Unmarshal([]byte(result), &jsonResult)
		if err == nil {
			return jsonResult, nil
		}

		return jsonResult, fmt.Errorf("failed to parse json '%s': %w", templateStr, err)
	}

	if num, err := strconv.ParseFloat(result, 64); err == nil {
		return num, nil
	}

	if b, err := strconv.ParseBool(result); err == nil {
		return b, nil
	}

	return result, nil
}
