package core

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type EventType string

// ProgressChanged event types
const (
	EventModuleCompleted EventType = "module.completed"
	EventCourseCompleted EventType = "course.completed"
	EventCourseAccessed  EventType = "course.accessed"
	EventCourseEnrolled  EventType = "course.enrolled"
	EventQuizRecorded    EventType = "quiz.recorded"
)

// Event is a ProgressChanged notification. Events are values: subscribers get their own copy.
type Event struct {
	ID         string                 `json:"id"`
	Type       EventType              `json:"type"`
	LearnerID  string                 `json:"learner_id"`
	CourseID   string                 `json:"course_id,omitempty"`
	ModuleID   string                 `json:"module_id,omitempty"`
	OccurredAt time.Time              `json:"occurred_at"`
	Data       map[string]interface{} `json:"data,omitempty"`
}

func NewEvent(typ EventType, learnerID, courseID, moduleID string, occurredAt time.Time) Event {
	return Event{
		ID:         uuid.New().String(),
		Type:       typ,
		LearnerID:  learnerID,
		CourseID:   courseID,
		ModuleID:   moduleID,
		OccurredAt: occurredAt.UTC(),
	}
}

// EventPublisher delivers events to whoever listens (in-process subscribers, other processes).
type EventPublisher interface {
	Publish(ctx context.Context, ev Event) error
}

// NopPublisher drops every event.
type NopPublisher struct{}

func (NopPublisher) Publish(context.Context, Event) error { return nil }
