package service

import "time"

// DeliveryType decides whether a notification is queued durably or pushed
// once and forgotten.
type DeliveryType string

const (
	DeliveryEphemeral  DeliveryType = "EPHEMERAL"
	DeliveryPersistent DeliveryType = "PERSISTENT"
)

// Notification categories used by the task application.
const (
	CategoryTaskAssignment = "TASK_ASSIGNMENT"
	CategoryTaskComment    = "TASK_COMMENT"
	CategoryTaskDueSoon    = "TASK_DUE_SOON"
	CategoryTaskOverdue    = "TASK_OVERDUE"
	CategoryMeetingAlert   = "MEETING_ALERT"
	CategoryReminder       = "REMINDER"
	CategoryPostPublished  = "POST_PUBLISHED"
	CategorySystem         = "SYSTEM"
)

// Strategy is the resolved delivery plan for a category.
type Strategy struct {
	Type        DeliveryType
	TTL         time.Duration
	ShouldStore bool
}

// defaultStrategy is the fail-safe for unknown categories: persist with a
// conservative TTL rather than silently dropping.
var defaultStrategy = Strategy{Type: DeliveryPersistent, TTL: 15 * time.Minute, ShouldStore: true}

var categoryStrategies = map[string]Strategy{
	CategoryTaskAssignment: {Type: DeliveryPersistent, TTL: 60 * time.Minute, ShouldStore: true},
	CategoryTaskComment:    {Type: DeliveryPersistent, TTL: 120 * time.Minute, ShouldStore: true},
	CategoryTaskDueSoon:    {Type: DeliveryEphemeral, TTL: 10 * time.Minute, ShouldStore: false},
	CategoryTaskOverdue:    {Type: DeliveryPersistent, TTL: 240 * time.Minute, ShouldStore: true},
	CategoryMeetingAlert:   {Type: DeliveryEphemeral, TTL: 5 * time.Minute, ShouldStore: false},
	CategoryReminder:       {Type: DeliveryEphemeral, TTL: 5 * time.Minute, ShouldStore: false},
	CategoryPostPublished:  {Type: DeliveryPersistent, TTL: 180 * time.Minute, ShouldStore: true},
	CategorySystem:         {Type: DeliveryPersistent, TTL: 24 * time.Hour, ShouldStore: true},
}

// ResolveStrategy maps a category to its delivery plan. Total function:
// unknown categories fall back to the persistent default.
func ResolveStrategy(category string) Strategy {
	if s, ok := categoryStrategies[category]; ok {
		return s
	}
	return defaultStrategy
}
