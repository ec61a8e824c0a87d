// Package task implements per-user task operations. Every store call carries
// the owner id as a mandatory filter term; ownership is never checked after
// the fact.
package task

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"taskflow/internal/apperr"
	"taskflow/internal/model"
	"taskflow/internal/repository"
	"taskflow/pkg/metrics"
)

const (
	maxTitleLen       = 200
	maxDescriptionLen = 1000
	defaultPageSize   = 10
	maxPageSize       = 100
	maxBulkIDs        = 50
)

// Store is the task persistence the service depends on.
type Store interface {
	Create(ctx context.Context, t *model.Task) error
	FindByID(ctx context.Context, id, userID int64) (*model.Task, error)
	List(ctx context.Context, userID int64, f repository.TaskFilter) ([]model.Task, int64, error)
	Update(ctx context.Context, id, userID int64, p repository.TaskPatch) (*model.Task, error)
	Delete(ctx context.Context, id, userID int64) error
	DeleteMany(ctx context.Context, userID int64, ids []int64) (int64, error)
	UpdateMany(ctx context.Context, userID int64, ids []int64, status *model.Status, priority *model.Priority) (int64, error)
	Stats(ctx context.Context, userID int64) (*model.TaskStats, error)
}

type Service struct {
	store  Store
	logger *zap.Logger
}

func NewService(store Store, logger *zap.Logger) *Service {
	return &Service{store: store, logger: logger}
}

// ListInput carries raw filter, sort and pagination parameters.
type ListInput struct {
	Status   string
	Priority string
	Search   string
	SortBy   string
	SortDir  string
	Page     int
	Limit    int
}

// ListResult is one page of tasks plus pagination metadata.
type ListResult struct {
	Items      []model.Task
	TotalCount int64
	Page       int
	Limit      int
	TotalPages int
}

// List returns the user's tasks filtered, sorted and paged.
func (s *Service) List(ctx context.Context, userID int64, in ListInput) (*ListResult, error) {
	if in.Page < 1 {
		in.Page = 1
	}
	if in.Limit < 1 {
		in.Limit = defaultPageSize
	}
	if in.Limit > maxPageSize {
		in.Limit = maxPageSize
	}

	filter := repository.TaskFilter{
		Search:   in.Search,
		SortBy:   "created_at",
		SortDesc: true,
		Limit:    in.Limit,
		Offset:   (in.Page - 1) * in.Limit,
	}

	if in.Status != "" {
		st, err := model.ParseStatus(in.Status)
		if err != nil {
			return nil, apperr.Validation("invalid filter",
				apperr.FieldError{Field: "status", Message: err.Error()})
		}
		filter.Status = &st
	}
	if in.Priority != "" {
		pr, err := model.ParsePriority(in.Priority)
		if err != nil {
			return nil, apperr.Validation("invalid filter",
				apperr.FieldError{Field: "priority", Message: err.Error()})
		}
		filter.Priority = &pr
	}
	if in.SortBy != "" {
		filter.SortBy = in.SortBy
	}
	if in.SortDir != "" {
		switch in.SortDir {
		case "asc":
			filter.SortDesc = false
		case "desc":
			filter.SortDesc = true
		default:
			return nil, apperr.Validation("invalid filter",
				apperr.FieldError{Field: "sort_dir", Message: "must be asc or desc"})
		}
	}

	items, total, err := s.store.List(ctx, userID, filter)
	if err != nil {
		return nil, apperr.Internal(err)
	}

	totalPages := int((total + int64(in.Limit) - 1) / int64(in.Limit))
	return &ListResult{
		Items:      items,
		TotalCount: total,
		Page:       in.Page,
		Limit:      in.Limit,
		TotalPages: totalPages,
	}, nil
}

// GetByID returns the task or NotFound when absent or owned by someone else.
func (s *Service) GetByID(ctx context.Context, id, userID int64) (*model.Task, error) {
	t, err := s.store.FindByID(ctx, id, userID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("task not found")
		}
		return nil, apperr.Internal(err)
	}
	return t, nil
}

// CreateInput is the client payload for a new task. The owner is always the
// authenticated caller, never taken from the payload.
type CreateInput struct {
	Title       string
	Description string
	Status      string
	Priority    string
	DueDate     *time.Time
}

// Create validates and persists a new task for userID.
func (s *Service) Create(ctx context.Context, userID int64, in CreateInput) (*model.Task, error) {
	var fields []apperr.FieldError

	if in.Title == "" || len(in.Title) > maxTitleLen {
		fields = append(fields, apperr.FieldError{
			Field: "title", Message: fmt.Sprintf("title must be 1-%d characters", maxTitleLen)})
	}
	if len(in.Description) > maxDescriptionLen {
		fields = append(fields, apperr.FieldError{
			Field: "description", Message: fmt.Sprintf("description must be at most %d characters", maxDescriptionLen)})
	}

	status := model.StatusPending
	if in.Status != "" {
		st, err := model.ParseStatus(in.Status)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "status", Message: err.Error()})
		} else {
			status = st
		}
	}
	priority := model.PriorityMedium
	if in.Priority != "" {
		pr, err := model.ParsePriority(in.Priority)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "priority", Message: err.Error()})
		} else {
			priority = pr
		}
	}
	if in.DueDate != nil && !in.DueDate.After(time.Now()) {
		fields = append(fields, apperr.FieldError{Field: "due_date", Message: "due date must be in the future"})
	}
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid task input", fields...)
	}

	t := &model.Task{
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		Status:      status,
		Priority:    priority,
		DueDate:     in.DueDate,
	}
	if status == model.StatusCompleted {
		now := time.Now()
		t.CompletedAt = &now
	}

	if err := s.store.Create(ctx, t); err != nil {
		return nil, apperr.Internal(err)
	}
	metrics.IncrementTaskOperation("create")
	s.logger.Info("task created", zap.Int64("task_id", t.ID), zap.Int64("user_id", userID))
	return t, nil
}

// UpdateInput is a partial update; nil fields are untouched.
type UpdateInput struct {
	Title       *string
	Description *string
	Status      *string
	Priority    *string
	DueDate     *time.Time
}

// Update applies a partial update, re-validating touched fields. The
// completion timestamp follows the status transition automatically.
func (s *Service) Update(ctx context.Context, id, userID int64, in UpdateInput) (*model.Task, error) {
	patch, fields := buildPatch(in)
	if len(fields) > 0 {
		return nil, apperr.Validation("invalid task input", fields...)
	}

	t, err := s.store.Update(ctx, id, userID, patch)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperr.NotFound("task not found")
		}
		return nil, apperr.Internal(err)
	}
	metrics.IncrementTaskOperation("update")
	return t, nil
}

// UpdateStatus is the narrow status-only mutation.
func (s *Service) UpdateStatus(ctx context.Context, id, userID int64, status string) (*model.Task, error) {
	return s.Update(ctx, id, userID, UpdateInput{Status: &status})
}

// UpdatePriority is the narrow priority-only mutation.
func (s *Service) UpdatePriority(ctx context.Context, id, userID int64, priority string) (*model.Task, error) {
	return s.Update(ctx, id, userID, UpdateInput{Priority: &priority})
}

// Delete hard-deletes the task when owned by userID.
func (s *Service) Delete(ctx context.Context, id, userID int64) error {
	if err := s.store.Delete(ctx, id, userID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("task not found")
		}
		return apperr.Internal(err)
	}
	metrics.IncrementTaskOperation("delete")
	s.logger.Info("task deleted", zap.Int64("task_id", id), zap.Int64("user_id", userID))
	return nil
}

// DeleteMany removes up to maxBulkIDs owned tasks. Ids the caller does not
// own are silently excluded.
func (s *Service) DeleteMany(ctx context.Context, userID int64, ids []int64) (int64, error) {
	if err := validateBulkIDs(ids); err != nil {
		return 0, err
	}
	deleted, err := s.store.DeleteMany(ctx, userID, ids)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	metrics.IncrementTaskOperation("bulk_delete")
	s.logger.Info("tasks bulk deleted",
		zap.Int64("user_id", userID), zap.Int("requested", len(ids)), zap.Int64("deleted", deleted))
	return deleted, nil
}

// BulkUpdateInput restricts bulk mutation to status and priority.
type BulkUpdateInput struct {
	Status   *string
	Priority *string
}

// BulkUpdate applies status/priority to up to maxBulkIDs owned tasks.
func (s *Service) BulkUpdate(ctx context.Context, userID int64, ids []int64, in BulkUpdateInput) (int64, error) {
	if err := validateBulkIDs(ids); err != nil {
		return 0, err
	}
	if in.Status == nil && in.Priority == nil {
		return 0, apperr.Validation("invalid bulk update",
			apperr.FieldError{Field: "updates", Message: "status or priority is required"})
	}

	var fields []apperr.FieldError
	var status *model.Status
	var priority *model.Priority

	if in.Status != nil {
		st, err := model.ParseStatus(*in.Status)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "status", Message: err.Error()})
		} else {
			status = &st
		}
	}
	if in.Priority != nil {
		pr, err := model.ParsePriority(*in.Priority)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "priority", Message: err.Error()})
		} else {
			priority = &pr
		}
	}
	if len(fields) > 0 {
		return 0, apperr.Validation("invalid bulk update", fields...)
	}

	modified, err := s.store.UpdateMany(ctx, userID, ids, status, priority)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	metrics.IncrementTaskOperation("bulk_update")
	return modified, nil
}

// Stats returns the user's aggregate counts.
func (s *Service) Stats(ctx context.Context, userID int64) (*model.TaskStats, error) {
	stats, err := s.store.Stats(ctx, userID)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return stats, nil
}

func buildPatch(in UpdateInput) (repository.TaskPatch, []apperr.FieldError) {
	var patch repository.TaskPatch
	var fields []apperr.FieldError

	if in.Title != nil {
		if *in.Title == "" || len(*in.Title) > maxTitleLen {
			fields = append(fields, apperr.FieldError{
				Field: "title", Message: fmt.Sprintf("title must be 1-%d characters", maxTitleLen)})
		} else {
			patch.Title = in.Title
		}
	}
	if in.Description != nil {
		if len(*in.Description) > maxDescriptionLen {
			fields = append(fields, apperr.FieldError{
				Field: "description", Message: fmt.Sprintf("description must be at most %d characters", maxDescriptionLen)})
		} else {
			patch.Description = in.Description
		}
	}
	if in.Status != nil {
		st, err := model.ParseStatus(*in.Status)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "status", Message: err.Error()})
		} else {
			patch.Status = &st
		}
	}
	if in.Priority != nil {
		pr, err := model.ParsePriority(*in.Priority)
		if err != nil {
			fields = append(fields, apperr.FieldError{Field: "priority", Message: err.Error()})
		} else {
			patch.Priority = &pr
		}
	}
	if in.DueDate != nil {
		if !in.DueDate.After(time.Now()) {
			fields = append(fields, apperr.FieldError{Field: "due_date", Message: "due date must be in the future"})
		} else {
			patch.DueDate = in.DueDate
		}
	}
	return patch, fields
}

func validateBulkIDs(ids []int64) error {
	if len(ids) == 0 {
		return apperr.Validation("invalid bulk request",
			apperr.FieldError{Field: "task_ids", Message: "at least one task id is required"})
	}
	if len(ids) > maxBulkIDs {
		return apperr.Validation("invalid bulk request",
			apperr.FieldError{Field: "task_ids", Message: fmt.Sprintf("at most %d task ids per request", maxBulkIDs)})
	}
	return nil
}
