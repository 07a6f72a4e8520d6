package outline

import (
	"context"

	models "tenderplan/internal/domain/models/outline"
)

// ChangeSubscriber delivers row-level change notifications.
type ChangeSubscriber interface {
	// Subscribe registers fn for changes of one project. The returned func
	// removes the subscription.
	Subscribe(projectID string, fn func(models.ChangeEvent)) (unsubscribe func())

	// SubscribeTaskInserts registers fn for task INSERT events of every project.
	SubscribeTaskInserts(fn func(models.ChangeEvent)) (unsubscribe func())
}

// EventPublisher pushes events to browser subscribers of a project.
type EventPublisher interface {
	Publish(projectID string, evt models.ClientEvent)
}

// ImageResolver turns a stored image reference into a URL the browser can fetch.
type ImageResolver interface {
	ResolveImageURL(ctx context.Context, raw string) (string, error)
}

// WebhookClient triggers remote generation.
type WebhookClient interface {
	Trigger(ctx context.Context, kind models.GenerationKind, req models.WebhookRequest) (*models.WebhookResponse, error)
}
