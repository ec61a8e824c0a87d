package task

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"taskflow/internal/apperr"
	"taskflow/internal/model"
	"taskflow/internal/repository"
)

// fakeStore mirrors the repository contract in memory, including the
// ownership scoping and completed_at maintenance the SQL layer performs.
type fakeStore struct {
	tasks  map[int64]*model.Task
	nextID int64
}

func newFakeStore() *fakeStore {
	return &fakeStore{tasks: map[int64]*model.Task{}}
}

func (s *fakeStore) Create(_ context.Context, t *model.Task) error {
	s.nextID++
	t.ID = s.nextID
	t.CreatedAt = time.Now().Add(time.Duration(s.nextID) * time.Millisecond)
	t.UpdatedAt = t.CreatedAt
	clone := *t
	s.tasks[t.ID] = &clone
	return nil
}

func (s *fakeStore) FindByID(_ context.Context, id, userID int64) (*model.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	clone := *t
	return &clone, nil
}

func (s *fakeStore) List(_ context.Context, userID int64, f repository.TaskFilter) ([]model.Task, int64, error) {
	matched := []model.Task{}
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		if f.Status != nil && t.Status != *f.Status {
			continue
		}
		if f.Priority != nil && t.Priority != *f.Priority {
			continue
		}
		if f.Search != "" {
			needle := strings.ToLower(f.Search)
			if !strings.Contains(strings.ToLower(t.Title), needle) &&
				!strings.Contains(strings.ToLower(t.Description), needle) {
				continue
			}
		}
		matched = append(matched, *t)
	}

	sort.Slice(matched, func(i, j int) bool {
		if f.SortDesc {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].CreatedAt.Before(matched[j].CreatedAt)
	})

	total := int64(len(matched))
	start := f.Offset
	if start > len(matched) {
		start = len(matched)
	}
	end := start + f.Limit
	if end > len(matched) {
		end = len(matched)
	}
	return matched[start:end], total, nil
}

func (s *fakeStore) Update(_ context.Context, id, userID int64, p repository.TaskPatch) (*model.Task, error) {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return nil, repository.ErrNotFound
	}
	if p.Title != nil {
		t.Title = *p.Title
	}
	if p.Description != nil {
		t.Description = *p.Description
	}
	if p.Status != nil {
		t.Status = *p.Status
		if t.Status == model.StatusCompleted {
			if t.CompletedAt == nil {
				now := time.Now()
				t.CompletedAt = &now
			}
		} else {
			t.CompletedAt = nil
		}
	}
	if p.Priority != nil {
		t.Priority = *p.Priority
	}
	if p.DueDate != nil {
		t.DueDate = p.DueDate
	}
	t.UpdatedAt = time.Now()
	clone := *t
	return &clone, nil
}

func (s *fakeStore) Delete(_ context.Context, id, userID int64) error {
	t, ok := s.tasks[id]
	if !ok || t.UserID != userID {
		return repository.ErrNotFound
	}
	delete(s.tasks, id)
	return nil
}

func (s *fakeStore) DeleteMany(_ context.Context, userID int64, ids []int64) (int64, error) {
	var deleted int64
	for _, id := range ids {
		if t, ok := s.tasks[id]; ok && t.UserID == userID {
			delete(s.tasks, id)
			deleted++
		}
	}
	return deleted, nil
}

func (s *fakeStore) UpdateMany(_ context.Context, userID int64, ids []int64, status *model.Status, priority *model.Priority) (int64, error) {
	var modified int64
	for _, id := range ids {
		t, ok := s.tasks[id]
		if !ok || t.UserID != userID {
			continue
		}
		if status != nil {
			t.Status = *status
			if t.Status == model.StatusCompleted {
				if t.CompletedAt == nil {
					now := time.Now()
					t.CompletedAt = &now
				}
			} else {
				t.CompletedAt = nil
			}
		}
		if priority != nil {
			t.Priority = *priority
		}
		modified++
	}
	return modified, nil
}

func (s *fakeStore) Stats(_ context.Context, userID int64) (*model.TaskStats, error) {
	var st model.TaskStats
	now := time.Now()
	for _, t := range s.tasks {
		if t.UserID != userID {
			continue
		}
		st.Total++
		switch t.Status {
		case model.StatusPending:
			st.Pending++
		case model.StatusInProgress:
			st.InProgress++
		case model.StatusCompleted:
			st.Completed++
		}
		if t.DueDate != nil && t.DueDate.Before(now) && t.Status != model.StatusCompleted {
			st.Overdue++
		}
	}
	return &st, nil
}

func newTestService() (*Service, *fakeStore) {
	store := newFakeStore()
	return NewService(store, zap.NewNop()), store
}

func future() *time.Time {
	t := time.Now().Add(48 * time.Hour)
	return &t
}

func TestCreateDefaults(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateInput{Title: "Pay rent", DueDate: future()})
	require.NoError(t, err)

	assert.Equal(t, int64(1), created.UserID, "owner is server-assigned")
	assert.Equal(t, model.StatusPending, created.Status)
	assert.Equal(t, model.PriorityMedium, created.Priority)
	assert.Nil(t, created.CompletedAt)
	assert.NotZero(t, created.ID)
}

func TestCreateCompletedSetsTimestamp(t *testing.T) {
	svc, _ := newTestService()

	created, err := svc.Create(context.Background(), 1, CreateInput{Title: "Done already", Status: "completed"})
	require.NoError(t, err)
	assert.NotNil(t, created.CompletedAt)
}

func TestCreateValidation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	past := time.Now().Add(-time.Hour)

	tests := []struct {
		name  string
		in    CreateInput
		field string
	}{
		{name: "empty title", in: CreateInput{Title: ""}, field: "title"},
		{name: "overlong title", in: CreateInput{Title: strings.Repeat("x", 201)}, field: "title"},
		{name: "overlong description", in: CreateInput{Title: "t", Description: strings.Repeat("x", 1001)}, field: "description"},
		{name: "unknown status", in: CreateInput{Title: "t", Status: "done"}, field: "status"},
		{name: "unknown priority", in: CreateInput{Title: "t", Priority: "urgent"}, field: "priority"},
		{name: "past due date", in: CreateInput{Title: "t", DueDate: &past}, field: "due_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(ctx, 1, tt.in)
			require.Error(t, err)
			assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

			found := false
			for _, f := range apperr.FieldsOf(err) {
				if f.Field == tt.field {
					found = true
				}
			}
			assert.True(t, found, "expected field error for %s", tt.field)
		})
	}
}

func TestCompletionTimestampFollowsStatus(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateInput{Title: "Pay rent"})
	require.NoError(t, err)

	done, err := svc.UpdateStatus(ctx, created.ID, 1, "completed")
	require.NoError(t, err)
	require.NotNil(t, done.CompletedAt)

	reopened, err := svc.UpdateStatus(ctx, created.ID, 1, "in_progress")
	require.NoError(t, err)
	assert.Nil(t, reopened.CompletedAt)
}

func TestOwnershipScoping(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	created, err := svc.Create(ctx, 1, CreateInput{Title: "Mine"})
	require.NoError(t, err)

	// User 2 sees NotFound everywhere, never a different error revealing
	// the task exists.
	_, err = svc.GetByID(ctx, created.ID, 2)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	title := "Stolen"
	_, err = svc.Update(ctx, created.ID, 2, UpdateInput{Title: &title})
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	err = svc.Delete(ctx, created.ID, 2)
	assert.Equal(t, apperr.KindNotFound, apperr.KindOf(err))

	got, err := svc.GetByID(ctx, created.ID, 1)
	require.NoError(t, err)
	assert.Equal(t, "Mine", got.Title)
}

func TestListPagination(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	const n = 25
	for i := 0; i < n; i++ {
		_, err := svc.Create(ctx, 1, CreateInput{Title: fmt.Sprintf("task %02d", i)})
		require.NoError(t, err)
	}

	first, err := svc.List(ctx, 1, ListInput{Page: 1, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(n), first.TotalCount)
	assert.Equal(t, 3, first.TotalPages)
	assert.Len(t, first.Items, 10)

	// Concatenating all pages yields exactly n distinct tasks.
	seen := map[int64]bool{}
	for page := 1; page <= first.TotalPages; page++ {
		res, err := svc.List(ctx, 1, ListInput{Page: page, Limit: 10})
		require.NoError(t, err)
		for _, item := range res.Items {
			assert.False(t, seen[item.ID], "task %d appeared twice", item.ID)
			seen[item.ID] = true
		}
	}
	assert.Len(t, seen, n)
}

func TestListDefaultsAndCaps(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	res, err := svc.List(ctx, 1, ListInput{Page: -3, Limit: 0})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Page)
	assert.Equal(t, defaultPageSize, res.Limit)

	res, err = svc.List(ctx, 1, ListInput{Limit: 500})
	require.NoError(t, err)
	assert.Equal(t, maxPageSize, res.Limit)
}

func TestListFilters(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateInput{Title: "Pay rent", Status: "pending"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{Title: "Ship release", Status: "in_progress", Priority: "high"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{Title: "Water plants", Description: "the RENT ones", Status: "completed"})
	require.NoError(t, err)

	res, err := svc.List(ctx, 1, ListInput{Status: "pending"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)
	assert.Equal(t, "Pay rent", res.Items[0].Title)

	res, err = svc.List(ctx, 1, ListInput{Priority: "high"})
	require.NoError(t, err)
	require.Len(t, res.Items, 1)

	// Search is case-insensitive over title and description.
	res, err = svc.List(ctx, 1, ListInput{Search: "rent"})
	require.NoError(t, err)
	assert.Len(t, res.Items, 2)

	_, err = svc.List(ctx, 1, ListInput{Status: "nonsense"})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestDeleteMany(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	mine, err := svc.Create(ctx, 1, CreateInput{Title: "Mine"})
	require.NoError(t, err)
	theirs, err := svc.Create(ctx, 2, CreateInput{Title: "Theirs"})
	require.NoError(t, err)

	// Foreign and unknown ids are silently excluded, not errored.
	deleted, err := svc.DeleteMany(ctx, 1, []int64{mine.ID, theirs.ID, 9999})
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	_, err = svc.GetByID(ctx, theirs.ID, 2)
	assert.NoError(t, err, "other user's task must survive")
}

func TestDeleteManyBounds(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	_, err := svc.DeleteMany(ctx, 1, nil)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	ids := make([]int64, maxBulkIDs+1)
	for i := range ids {
		ids[i] = int64(i + 1)
	}
	_, err = svc.DeleteMany(ctx, 1, ids)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestBulkUpdate(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	a, err := svc.Create(ctx, 1, CreateInput{Title: "A"})
	require.NoError(t, err)
	b, err := svc.Create(ctx, 1, CreateInput{Title: "B"})
	require.NoError(t, err)
	foreign, err := svc.Create(ctx, 2, CreateInput{Title: "Foreign"})
	require.NoError(t, err)

	status := "completed"
	modified, err := svc.BulkUpdate(ctx, 1, []int64{a.ID, b.ID, foreign.ID}, BulkUpdateInput{Status: &status})
	require.NoError(t, err)
	assert.Equal(t, int64(2), modified)

	got, err := svc.GetByID(ctx, foreign.ID, 2)
	require.NoError(t, err)
	assert.Equal(t, model.StatusPending, got.Status, "foreign task untouched")

	_, err = svc.BulkUpdate(ctx, 1, []int64{a.ID}, BulkUpdateInput{})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))

	bad := "done"
	_, err = svc.BulkUpdate(ctx, 1, []int64{a.ID}, BulkUpdateInput{Status: &bad})
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
}

func TestStats(t *testing.T) {
	svc, store := newTestService()
	ctx := context.Background()

	_, err := svc.Create(ctx, 1, CreateInput{Title: "A", Status: "pending"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{Title: "B", Status: "in_progress"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 1, CreateInput{Title: "C", Status: "completed"})
	require.NoError(t, err)
	_, err = svc.Create(ctx, 2, CreateInput{Title: "Other user"})
	require.NoError(t, err)

	// An overdue task cannot be created through the service (due dates must
	// be in the future), so seed it directly.
	past := time.Now().Add(-time.Hour)
	require.NoError(t, store.Create(ctx, &model.Task{
		UserID: 1, Title: "Late", Status: model.StatusPending,
		Priority: model.PriorityLow, DueDate: &past,
	}))

	stats, err := svc.Stats(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, int64(4), stats.Total)
	assert.Equal(t, int64(2), stats.Pending)
	assert.Equal(t, int64(1), stats.InProgress)
	assert.Equal(t, int64(1), stats.Completed)
	assert.Equal(t, int64(1), stats.Overdue)
}
