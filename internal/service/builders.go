package service

import (
	"fmt"
	"time"

	"github.com/devshad-01/social-task-notify/internal/model"
)

// Convenience payload constructors for the common notification shapes of the
// task application. Each is a thin builder feeding into Send.

// TaskAssignmentRequest notifies a user they were assigned a task.
func TaskAssignmentRequest(userID, taskID, taskTitle, assignedBy string) SendRequest {
	return SendRequest{
		Category:  CategoryTaskAssignment,
		UserID:    userID,
		Title:     "New task assigned",
		Message:   fmt.Sprintf("%s assigned you \"%s\"", assignedBy, taskTitle),
		ActionURL: "/tasks/" + taskID,
		Data:      map[string]any{"taskId": taskID},
		Priority:  4,
	}
}

// TaskCommentRequest notifies a user of a new comment on their task.
func TaskCommentRequest(userID, taskID, taskTitle, author string) SendRequest {
	return SendRequest{
		Category:  CategoryTaskComment,
		UserID:    userID,
		Title:     "New comment",
		Message:   fmt.Sprintf("%s commented on \"%s\"", author, taskTitle),
		ActionURL: "/tasks/" + taskID,
		Data:      map[string]any{"taskId": taskID},
	}
}

// DueSoonRequest reminds a user a task is due shortly. Grouped with Replace
// so repeated reminders for the same task collapse to the latest.
func DueSoonRequest(userID, taskID, taskTitle string, dueAt time.Time) SendRequest {
	return SendRequest{
		Category:  CategoryTaskDueSoon,
		UserID:    userID,
		Title:     "Task due soon",
		Message:   fmt.Sprintf("\"%s\" is due at %s", taskTitle, dueAt.Format("15:04")),
		ActionURL: "/tasks/" + taskID,
		Data:      map[string]any{"taskId": taskID, "dueAt": dueAt.Format(time.RFC3339)},
		GroupKey:  "task-" + taskID + "-reminder",
		Replace:   true,
		Priority:  4,
	}
}

// OverdueAlertRequest alerts a user a task is overdue.
func OverdueAlertRequest(userID, taskID, taskTitle string) SendRequest {
	return SendRequest{
		Category:  CategoryTaskOverdue,
		UserID:    userID,
		Title:     "Task overdue",
		Message:   fmt.Sprintf("\"%s\" is past its due date", taskTitle),
		ActionURL: "/tasks/" + taskID,
		Data:      map[string]any{"taskId": taskID},
		GroupKey:  "task-" + taskID + "-overdue",
		Replace:   true,
		Priority:  model.PriorityMax,
	}
}

// MeetingAlertRequest reminds a user of an imminent meeting.
func MeetingAlertRequest(userID, meetingID, meetingTitle string, startsAt time.Time) SendRequest {
	return SendRequest{
		Category:  CategoryMeetingAlert,
		UserID:    userID,
		Title:     "Meeting starting",
		Message:   fmt.Sprintf("\"%s\" starts at %s", meetingTitle, startsAt.Format("15:04")),
		ActionURL: "/meetings/" + meetingID,
		Data:      map[string]any{"meetingId": meetingID},
		Priority:  model.PriorityMax,
	}
}
