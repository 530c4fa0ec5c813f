package main

import (
	"context"
	"errors"
	"time"

	"github.com/stagehandhq/stagehand/pkg/models"
	"github.com/stagehandhq/stagehand/pkg/protocol"
)

var errEntitiesNotWired = errors.New("entity service not wired in this deployment")

// unwiredEntities stands in when no CRM core is attached to the binary.
// Schedule, task and approval sweeps run entirely from the engine's own
// store; only the inactivity sweep needs the CRM and it reports this error.
// Organization listing reports empty, so a standalone sweeper is idle until
// a deployment supplies a real EntityService.
type unwiredEntities struct{}

func newUnwiredEntities() protocol.EntityService {
	return unwiredEntities{}
}

func (unwiredEntities) Get(context.Context, string, string, string) (models.EntityRef, error) {
	return models.EntityRef{}, errEntitiesNotWired
}

func (unwiredEntities) AddNote(context.Context, string, string, string, string, bool, models.Actor) error {
	return errEntitiesNotWired
}

func (unwiredEntities) ChangeOwner(context.Context, string, string, string, string, models.Actor) error {
	return errEntitiesNotWired
}

func (unwiredEntities) AssignOwnerFromRole(context.Context, string, string, string, string, models.Actor) (string, error) {
	return "", errEntitiesNotWired
}

func (unwiredEntities) ChangeStage(context.Context, string, string, string, string, models.Actor) (models.EntityRef, error) {
	return models.EntityRef{}, errEntitiesNotWired
}

func (unwiredEntities) PromoteIntakeLead(context.Context, string, string, string, models.Actor) (models.EntityRef, error) {
	return models.EntityRef{}, errEntitiesNotWired
}

func (unwiredEntities) ListOrganizations(context.Context) ([]string, error) {
	return nil, nil
}

func (unwiredEntities) ListInactive(context.Context, string, string, time.Time) ([]models.EntityRef, error) {
	return nil, errEntitiesNotWired
}
