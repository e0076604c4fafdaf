package events

import (
	"context"
	"errors"
	"time"

	"github.com/alfredjeanlab/chainreg/internal/model"
)

// Event topic constants
const (
	TopicWorkflowTransitioned = "chainreg.workflow.transitioned"
	TopicWorkflowReported     = "chainreg.workflow.reported"

	TopicNotificationPushed    = "chainreg.notification.pushed"
	TopicNotificationDismissed = "chainreg.notification.dismissed"
	TopicNotificationExpired   = "chainreg.notification.expired"

	TopicReconcileCompleted = "chainreg.reconcile.completed"
)

// Event types

type WorkflowTransitioned struct {
	RunID    string    `json:"run_id"`
	Workflow string    `json:"workflow"`
	From     string    `json:"from"`
	To       string    `json:"to"`
	Status   string    `json:"status"`
	At       time.Time `json:"at"`
}

type WorkflowReported struct {
	Run *model.RunRecord `json:"run"`
}

type NotificationPushed struct {
	Notification model.Notification `json:"notification"`
}

type NotificationDismissed struct {
	ID int64 `json:"id"`
}

type NotificationExpired struct {
	ID int64 `json:"id"`
}

type ReconcileCompleted struct {
	Assets          int       `json:"assets"`
	Events          int       `json:"events"`
	Tickets         int       `json:"tickets"`
	Height          uint64    `json:"height"`
	HeightEstimated bool      `json:"height_estimated"`
	Duration        string    `json:"duration"`
	Error           string    `json:"error,omitempty"`
	At              time.Time `json:"at"`
}

// Publisher is the interface for emitting events.
type Publisher interface {
	Publish(ctx context.Context, topic string, event any) error
	Close() error
}

// MultiPublisher fans every event out to several publishers.
type MultiPublisher []Publisher

// Publish delivers to every publisher and joins their errors.
func (m MultiPublisher) Publish(ctx context.Context, topic string, event any) error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, topic, event); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Close closes every publisher.
func (m MultiPublisher) Close() error {
	var errs []error
	for _, p := range m {
		if p == nil {
			continue
		}
		if err := p.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
