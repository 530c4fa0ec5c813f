package sendemail

import (
	"context"
	"fmt"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
	"github.com/stagehandhq/stagehand/pkg/template"
)

// SendEmailAction queues an outbound email. The worker talks to the actual
// provider; executions never block on SMTP.
type SendEmailAction struct {
	params *models.SendEmailParams
}

// NewSendEmailAction creates a new email action from typed parameters.
func NewSendEmailAction(params models.ActionParams) (*SendEmailAction, error) {
	emailParams, ok := params.(*models.SendEmailParams)
	if !ok {
		return nil, fmt.Errorf("expected send_email params, got %T", params)
	}

	if err := emailParams.Validate(); err != nil {
		return nil, err
	}

	return &SendEmailAction{params: emailParams}, nil
}

// Execute checks the organization has an email provider, renders the
// message and enqueues a SEND_EMAIL job.
func (a *SendEmailAction) Execute(ctx context.Context, executionCtx models.ExecutionContext, deps protocol.Dependencies) (models.ActionResult, error) {
	result := models.ActionResult{ActionType: string(models.ActionSendEmail)}

	settings, err := deps.Settings.IntegrationSettings(ctx, executionCtx.OrganizationID)
	if err != nil {
		return result, fmt.Errorf("failed to load integration settings: %w", err)
	}

	if settings.EmailProvider == "" {
		return models.SkippedResult(models.ActionSendEmail, "no email provider configured"), nil
	}

	to, err := template.RenderString(a.params.To, &executionCtx)
	if err != nil {
		return result, fmt.Errorf("failed to render email recipient: %w", err)
	}

	if to == "" {
		return models.SkippedResult(models.ActionSendEmail, "recipient resolved to an empty address"), nil
	}

	subject, err := template.RenderString(a.params.Subject, &executionCtx)
	if err != nil {
		return result, fmt.Errorf("failed to render email subject: %w", err)
	}

	body, err := template.RenderString(a.params.Body, &executionCtx)
	if err != nil {
		return result, fmt.Errorf("failed to render email body: %w", err)
	}

	payload := map[string]any{
		"provider":    settings.EmailProvider,
		"from":        settings.EmailFromAddress,
		"to":          to,
		"subject":     subject,
		"body":        body,
		"entity_type": executionCtx.Event.EntityType,
		"entity_id":   executionCtx.Event.EntityID,
	}
	if a.params.TemplateID != "" {
		payload["template_id"] = a.params.TemplateID
		payload["merge_scope"] = executionCtx.TemplateScope()
	}

	err = deps.Jobs.Enqueue(ctx, models.QueuedJob{
		OrganizationID: executionCtx.OrganizationID,
		Type:           models.JobSendEmail,
		Payload:        payload,
	})
	if err != nil {
		return result, fmt.Errorf("failed to enqueue email: %w", err)
	}

	result.Success = true
	result.Queued = true
	result.Description = fmt.Sprintf("queued email to %s", to)

	return result, nil
}
