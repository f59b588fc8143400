package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestResolveStrategy(t *testing.T) {
	tests := []struct {
		category string
		wantType DeliveryType
		wantTTL  time.Duration
	}{
		{CategoryTaskAssignment, DeliveryPersistent, 60 * time.Minute},
		{CategoryTaskComment, DeliveryPersistent, 120 * time.Minute},
		{CategoryTaskDueSoon, DeliveryEphemeral, 10 * time.Minute},
		{CategoryTaskOverdue, DeliveryPersistent, 240 * time.Minute},
		{CategoryMeetingAlert, DeliveryEphemeral, 5 * time.Minute},
		{CategoryReminder, DeliveryEphemeral, 5 * time.Minute},
		{CategoryPostPublished, DeliveryPersistent, 180 * time.Minute},
		{CategorySystem, DeliveryPersistent, 24 * time.Hour},
	}
	for _, tt := range tests {
		s := ResolveStrategy(tt.category)
		assert.Equal(t, tt.wantType, s.Type, tt.category)
		assert.Equal(t, tt.wantTTL, s.TTL, tt.category)
		assert.Equal(t, tt.wantType == DeliveryPersistent, s.ShouldStore, tt.category)
	}
}

func TestResolveStrategyUnknownCategory(t *testing.T) {
	for _, category := range []string{"", "BANANA", "task_assignment"} {
		s := ResolveStrategy(category)
		assert.Equal(t, DeliveryPersistent, s.Type, category)
		assert.True(t, s.ShouldStore, category)
		assert.Greater(t, s.TTL, time.Duration(0), category)
	}
}
