// Package registry holds the catalog of executable action types.
package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

// Registry maps action types to their factories. The action set is closed:
// factories are registered at startup and workflows can only reference types
// present here.
type Registry struct {
	logger          *slog.Logger
	actionFactories map[string]protocol.ActionFactory
}

func NewRegistry(log *slog.Logger) *Registry {
	return &Registry{
		logger:          log,
		actionFactories: make(map[string]protocol.ActionFactory),
	}
}

func (r *Registry) RegisterAction(actionFactory protocol.ActionFactory) {
	r.actionFactories[actionFactory.ID()] = actionFactory
}

// CreateAction builds an executable action for one workflow step.
func (r *Registry) CreateAction(ctx context.Context, spec models.ActionSpec) (protocol.Action, error) {
	factory, ok := r.actionFactories[string(spec.Kind)]
	if !ok {
		return nil, fmt.Errorf("action type '%s' not registered", spec.Kind)
	}

	return factory.Create(ctx, spec.Params)
}

// ValidateAction checks a step's parameters against the registered schema
// for its action type. Used at workflow save time so bad parameters are
// rejected before any trigger fires.
func (r *Registry) ValidateAction(spec models.ActionSpec) error {
	factory, ok := r.actionFactories[string(spec.Kind)]
	if !ok {
		return fmt.Errorf("action type '%s' not registered", spec.Kind)
	}

	if err := spec.Validate(); err != nil {
		return err
	}

	schemaLoader := gojsonschema.NewGoLoader(factory.Schema())
	dataLoader := gojsonschema.NewGoLoader(spec.Params)

	result, err := gojsonschema.Validate(schemaLoader, dataLoader)
	if err != nil {
		return fmt.Errorf("failed to validate action '%s': %w", spec.Kind, err)
	}

	if !result.Valid() {
		var errors []string
		for _, desc := range result.Errors() {
			errors = append(errors, desc.String())
		}

		return fmt.Errorf("action '%s' configuration invalid: %s", spec.Kind, strings.Join(errors, "; "))
	}

	return nil
}

// AvailableActions returns the registered action type IDs in stable order.
func (r *Registry) AvailableActions() []string {
	types := make([]string, 0, len(r.actionFactories))
	for actionType := range r.actionFactories {
		types = append(types, actionType)
	}

	sort.Strings(types)

	return types
}

// ActionFactory returns the factory for one action type, for surfacing
// names, descriptions and schemas through the API.
func (r *Registry) ActionFactory(actionType string) (protocol.ActionFactory, bool) {
	factory, ok := r.actionFactories[actionType]

	return factory, ok
}
