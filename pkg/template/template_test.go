package template

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stagehandhq/stagehand/pkg/models"
)

func TestRender_SimpleExpression(t *testing.T) {
	data := map[string]any{
		"name":    "Dana Reyes",
		"premium": true,
		"stage":   "quoted",
	}

	// Test simple field access
	result, err := Render("{{ .name }}", data)
	require.NoError(t, err)
	assert.Equal(t, "Dana Reyes", result)

	// Test boolean expression
	result, err = Render("{{ .premium }}", data)
	require.NoError(t, err)
	assert.Equal(t, true, result)

	// Test conditional expression
	result, err = Render("{{ if eq .stage \"quoted\" }}follow up{{ else }}wait{{ end }}", data)
	require.NoError(t, err)
	assert.Equal(t, "follow up", result)
}

func TestRender_StringInterpolation(t *testing.T) {
	data := map[string]any{
		"entity": map[string]any{
			"name":  "Acme Logistics",
			"stage": "negotiation",
		},
		"owner": "dana",
	}

	// Test string construction
	result, err := Render("Client {{.entity.name}} moved to {{.entity.stage}}", data)
	require.NoError(t, err)
	assert.Equal(t, "Client Acme Logistics moved to negotiation", result)

	// Test helper functions
	result, err = Render("{{ upper .owner }}", data)
	require.NoError(t, err)
	assert.Equal(t, "DANA", result)
}

func TestRender_ObjectConstruction(t *testing.T) {
	data := map[string]any{
		"entity": map[string]any{
			"name": "Acme Logistics",
		},
		"tasks": []any{
			map[string]any{"id": "t1"},
			map[string]any{"id": "t2"},
		},
	}

	result, err := Render(`{
		"client": "{{ .entity.name }}",
		"open_tasks": {{ len .tasks }}
	}`, data)
	require.NoError(t, err)

	resultMap, ok := result.(map[string]any)

	require.True(t, ok)
	assert.Equal(t, "Acme Logistics", resultMap["client"])
	assert.Equal(t, 2.0, resultMap["open_tasks"])
}

func TestRender_ErrorHandling(t *testing.T) {
	data := map[string]any{
		"test": "value",
	}

	// Test invalid template expression
	_, err := Render("{{ .test", data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "failed to parse template")

	// Test reference to an unknown function
	_, err = Render("{{ nonexistent .test }}", data)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "function \"nonexistent\" not defined")
}

func TestRenderWithContext_ExposesExecutionScope(t *testing.T) {
	executionCtx := models.NewExecutionContext("exec-1", &models.Workflow{
		ID:             "wf-1",
		OrganizationID: "org-1",
	}, models.TriggerEvent{
		Type:       models.TriggerStatusChanged,
		EntityType: "client",
		EntityID:   "client-9",
		Entity: map[string]any{
			"name":  "Acme Logistics",
			"stage": "won",
		},
		Data: map[string]any{
			"from_stage": "negotiation",
			"to_stage":   "won",
		},
	}, models.Causation{EventID: "evt-1", Source: models.SourceUser}, models.UserActor("user-7"))

	result, err := RenderWithContext("{{ .entity.name }} is now {{ .event.to_stage }}", executionCtx)
	require.NoError(t, err)
	assert.Equal(t, "Acme Logistics is now won", result)

	result, err = RenderWithContext("{{ .execution.workflow_id }}", executionCtx)
	require.NoError(t, err)
	assert.Equal(t, "wf-1", result)

	result, err = RenderWithContext("{{ .actor }}", executionCtx)
	require.NoError(t, err)
	assert.Equal(t, "user:user-7", result)
}

func TestRenderString_EncodesStructuredResults(t *testing.T) {
	executionCtx := models.NewExecutionContext("exec-1", &models.Workflow{
		ID:             "wf-1",
		OrganizationID: "org-1",
	}, models.TriggerEvent{
		Type:       models.TriggerStatusChanged,
		EntityType: "client",
		EntityID:   "client-9",
		Entity:     map[string]any{"priority": 3},
	}, models.Causation{EventID: "evt-1", Source: models.SourceUser}, models.SystemActor())

	// Numeric render results come back as their string form.
	rendered, err := RenderString("{{ .entity.priority }}", executionCtx)
	require.NoError(t, err)
	assert.Equal(t, "3", rendered)

	// Plain text passes through untouched.
	rendered, err = RenderString("priority review", executionCtx)
	require.NoError(t, err)
	assert.Equal(t, "priority review", rendered)
}
