package service

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/devshad-01/social-task-notify/internal/model"
	"github.com/devshad-01/social-task-notify/internal/storage"
)

// OpLogService provides filtering and coarse statistics over the queue
// audit log.
type OpLogService struct {
	store storage.Store
}

// NewOpLogService builds the audit log service.
func NewOpLogService(store storage.Store) *OpLogService {
	return &OpLogService{store: store}
}

// Query returns paginated audit records, newest first.
func (s *OpLogService) Query(ctx context.Context, filter model.OpLogFilter) (*model.OpLogPage, error) {
	logs, err := s.filteredLogs(ctx, filter)
	if err != nil {
		return nil, err
	}

	total := len(logs)
	if filter.PageSize <= 0 {
		filter.PageSize = 10
	}
	if filter.PageSize > 100 {
		filter.PageSize = 100
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	start := (filter.Page - 1) * filter.PageSize
	if start > total {
		start = total
	}
	end := start + filter.PageSize
	if end > total {
		end = total
	}

	pages := (total + filter.PageSize - 1) / filter.PageSize

	return &model.OpLogPage{
		Data:     logs[start:end],
		Total:    total,
		Pages:    pages,
		PageNum:  filter.Page,
		PageSize: filter.PageSize,
	}, nil
}

// CountByDate aggregates audit records per day/month/year.
func (s *OpLogService) CountByDate(ctx context.Context, dateType string, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.OpLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}

	layout := "2006-01-02"
	switch strings.ToLower(dateType) {
	case "year":
		layout = "2006"
	case "month":
		layout = "2006-01"
	}

	counter := make(map[string]int)
	for _, entry := range logs {
		counter[entry.CreatedAt.Format(layout)]++
	}
	return mapToKV(counter, "date"), nil
}

// CountByOperation aggregates by operation tag.
func (s *OpLogService) CountByOperation(ctx context.Context, begin, end *time.Time) ([]map[string]any, error) {
	logs, err := s.filteredLogs(ctx, model.OpLogFilter{BeginTime: begin, EndTime: end})
	if err != nil {
		return nil, err
	}
	counter := make(map[string]int)
	for _, entry := range logs {
		op := entry.Operation
		if op == "" {
			op = "UNKNOWN"
		}
		counter[op]++
	}
	return mapToKV(counter, "operation"), nil
}

func (s *OpLogService) filteredLogs(ctx context.Context, filter model.OpLogFilter) ([]*model.OpLogEntry, error) {
	all, err := s.store.ListOpLogs(ctx)
	if err != nil {
		return nil, err
	}
	matches := make([]*model.OpLogEntry, 0, len(all))
	for _, entry := range all {
		if filter.Operation != "" && !strings.EqualFold(entry.Operation, filter.Operation) {
			continue
		}
		if filter.EntryID != "" && entry.EntryID != filter.EntryID {
			continue
		}
		if filter.BeginTime != nil && entry.CreatedAt.Before(filter.BeginTime.UTC()) {
			continue
		}
		if filter.EndTime != nil && entry.CreatedAt.After(filter.EndTime.UTC()) {
			continue
		}
		matches = append(matches, entry)
	}
	sort.Slice(matches, func(i, j int) bool {
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	return matches, nil
}

func mapToKV(counter map[string]int, key string) []map[string]any {
	var result []map[string]any
	for k, v := range counter {
		result = append(result, map[string]any{
			key:     k,
			"count": v,
		})
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i][key].(string) < result[j][key].(string)
	})
	return result
}
