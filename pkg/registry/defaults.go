package registry

import (
	"github.com/stagehandhq/stagehand/pkg/actions/addnote"
	"github.com/stagehandhq/stagehand/pkg/actions/changeowner"
	"github.com/stagehandhq/stagehand/pkg/actions/changestage"
	"github.com/stagehandhq/stagehand/pkg/actions/createtask"
	"github.com/stagehandhq/stagehand/pkg/actions/promotelead"
	"github.com/stagehandhq/stagehand/pkg/actions/requestapproval"
	"github.com/stagehandhq/stagehand/pkg/actions/sendemail"
	"github.com/stagehandhq/stagehand/pkg/actions/sendnotification"
	"github.com/stagehandhq/stagehand/pkg/actions/zapierevent"
)

// RegisterDefaultActions registers all built-in action factories with the
// registry.
func (r *Registry) RegisterDefaultActions() {
	// Timeline and record actions
	r.RegisterAction(addnote.NewAddNoteActionFactory())
	r.RegisterAction(changeowner.NewChangeOwnerActionFactory())
	r.RegisterAction(changestage.NewChangeStageActionFactory())
	r.RegisterAction(promotelead.NewPromoteLeadActionFactory())

	// Task actions
	r.RegisterAction(createtask.NewCreateTaskActionFactory())
	r.RegisterAction(requestapproval.NewRequestApprovalActionFactory())

	// Outbound delivery actions
	r.RegisterAction(sendnotification.NewSendNotificationActionFactory())
	r.RegisterAction(sendemail.NewSendEmailActionFactory())
	r.RegisterAction(zapierevent.NewZapierEventActionFactory())
}
