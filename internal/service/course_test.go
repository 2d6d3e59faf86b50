package service

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/coursekit/admin-api/internal/data"
	"github.com/coursekit/admin-api/internal/domain/model"
	apperrors "github.com/coursekit/admin-api/internal/errors"
	"github.com/coursekit/admin-api/internal/testutil"
)

type mockCourseStore struct {
	mock.Mock
}

func (m *mockCourseStore) Create(ctx context.Context, req *model.CreateCourseRequest) (*model.Course, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *mockCourseStore) GetByID(ctx context.Context, id string) (*model.Course, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *mockCourseStore) ListWithOptions(ctx context.Context, opts model.CoursesListOptions) ([]*model.Course, int, error) {
	args := m.Called(ctx, opts)
	if args.Get(0) == nil {
		return nil, args.Int(1), args.Error(2)
	}
	return args.Get(0).([]*model.Course), args.Int(1), args.Error(2)
}

func (m *mockCourseStore) Update(ctx context.Context, id string, req model.UpdateCourseRequest) (*model.Course, error) {
	args := m.Called(ctx, id, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Course), args.Error(1)
}

func (m *mockCourseStore) Delete(ctx context.Context, id string) (bool, error) {
	args := m.Called(ctx, id)
	return args.Bool(0), args.Error(1)
}

func TestCourseService_Create(t *testing.T) {
	store := &mockCourseStore{}
	svc := NewCourseService(CourseServiceOptions{Store: store})

	created := &model.Course{ID: uuid.NewString(), Title: "Intro to Go", Status: model.CourseStatusDraft}
	store.On("Create", mock.Anything, mock.MatchedBy(func(req *model.CreateCourseRequest) bool {
		return req.Title == "Intro to Go" && req.Status == model.CourseStatusDraft
	})).Return(created, nil)

	course, err := svc.Create(context.Background(), &model.CreateCourseRequest{Title: "Intro to Go", PriceCents: 4999})

	require.NoError(t, err)
	assert.Equal(t, created, course)
	store.AssertExpectations(t)
}

func TestCourseService_Create_Validation(t *testing.T) {
	store := &mockCourseStore{}
	svc := NewCourseService(CourseServiceOptions{Store: store})

	tests := []struct {
		name string
		req  *model.CreateCourseRequest
	}{
		{"nil request", nil},
		{"empty title", &model.CreateCourseRequest{Title: "  "}},
		{"negative price", &model.CreateCourseRequest{Title: "Go", PriceCents: -1}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Create(context.Background(), tt.req)
			require.Error(t, err)
			assert.True(t, apperrors.IsValidation(err))
		})
	}
	store.AssertNotCalled(t, "Create")
}

func TestCourseService_Create_DuplicateTitle(t *testing.T) {
	store := &mockCourseStore{}
	store.On("Create", mock.Anything, mock.Anything).Return(nil, data.ErrCourseTitleExists)
	svc := NewCourseService(CourseServiceOptions{Store: store})

	_, err := svc.Create(context.Background(), &model.CreateCourseRequest{Title: "Intro to Go"})

	require.Error(t, err)
	assert.True(t, apperrors.IsConflict(err))
}

func TestCourseService_GetByID(t *testing.T) {
	store := &mockCourseStore{}
	id := uuid.NewString()
	course := &model.Course{ID: id, Title: "Intro to Go"}
	store.On("GetByID", mock.Anything, id).Return(course, nil)
	svc := NewCourseService(CourseServiceOptions{Store: store})

	got, err := svc.GetByID(context.Background(), id)

	require.NoError(t, err)
	assert.Equal(t, course, got)
}

func TestCourseService_GetByID_NotFound(t *testing.T) {
	store := &mockCourseStore{}
	id := uuid.NewString()
	store.On("GetByID", mock.Anything, id).Return(nil, data.ErrCourseNotFound)
	svc := NewCourseService(CourseServiceOptions{Store: store})

	_, err := svc.GetByID(context.Background(), id)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCourseService_GetByID_InvalidID(t *testing.T) {
	store := &mockCourseStore{}
	svc := NewCourseService(CourseServiceOptions{Store: store})

	_, err := svc.GetByID(context.Background(), "not-a-uuid")

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	store.AssertNotCalled(t, "GetByID")
}

func TestCourseService_List_Pagination(t *testing.T) {
	store := &mockCourseStore{}
	courses := []*model.Course{{ID: uuid.NewString()}, {ID: uuid.NewString()}}
	store.On("ListWithOptions", mock.Anything, mock.MatchedBy(func(opts model.CoursesListOptions) bool {
		return opts.Limit == 10 && opts.Offset == 0 && opts.Sort == "created_at" && opts.Dir == "desc"
	})).Return(courses, 25, nil)
	svc := NewCourseService(CourseServiceOptions{Store: store})

	page, err := svc.List(context.Background(), model.CoursesListOptions{Limit: 10})

	require.NoError(t, err)
	assert.Equal(t, courses, page.Courses)
	assert.Equal(t, 25, page.Total)
	assert.Equal(t, 3, page.TotalPages)
}

func TestCourseService_List_Defaults(t *testing.T) {
	store := &mockCourseStore{}
	store.On("ListWithOptions", mock.Anything, mock.MatchedBy(func(opts model.CoursesListOptions) bool {
		return opts.Limit == 50 && opts.Offset == 0
	})).Return([]*model.Course{}, 0, nil)
	svc := NewCourseService(CourseServiceOptions{Store: store})

	page, err := svc.List(context.Background(), model.CoursesListOptions{Limit: -5, Offset: -1})

	require.NoError(t, err)
	assert.Empty(t, page.Courses)
	assert.Equal(t, 0, page.Total)
	assert.Equal(t, 0, page.TotalPages)
}

func TestCourseService_Update(t *testing.T) {
	store := &mockCourseStore{}
	id := uuid.NewString()
	title := "Advanced Go"
	updated := &model.Course{ID: id, Title: title}
	store.On("Update", mock.Anything, id, mock.Anything).Return(updated, nil)
	svc := NewCourseService(CourseServiceOptions{Store: store})

	got, err := svc.Update(context.Background(), id, model.UpdateCourseRequest{Title: &title})

	require.NoError(t, err)
	assert.Equal(t, updated, got)
}

func TestCourseService_Update_NoFields(t *testing.T) {
	store := &mockCourseStore{}
	svc := NewCourseService(CourseServiceOptions{Store: store})

	_, err := svc.Update(context.Background(), uuid.NewString(), model.UpdateCourseRequest{})

	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	store.AssertNotCalled(t, "Update")
}

func TestCourseService_Update_NotFound(t *testing.T) {
	store := &mockCourseStore{}
	id := uuid.NewString()
	store.On("Update", mock.Anything, id, mock.Anything).Return(nil, data.ErrCourseNotFound)
	svc := NewCourseService(CourseServiceOptions{Store: store})

	_, err := svc.Update(context.Background(), id, model.UpdateCourseRequest{PriceCents: testutil.IntPtr(100)})

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCourseService_Delete(t *testing.T) {
	store := &mockCourseStore{}
	id := uuid.NewString()
	store.On("Delete", mock.Anything, id).Return(true, nil)
	svc := NewCourseService(CourseServiceOptions{Store: store})

	require.NoError(t, svc.Delete(context.Background(), id))
}

func TestCourseService_Delete_NotFound(t *testing.T) {
	store := &mockCourseStore{}
	id := uuid.NewString()
	store.On("Delete", mock.Anything, id).Return(false, nil)
	svc := NewCourseService(CourseServiceOptions{Store: store})

	err := svc.Delete(context.Background(), id)

	require.Error(t, err)
	assert.True(t, apperrors.IsNotFound(err))
}

func TestCourseService_Delete_StoreError(t *testing.T) {
	store := &mockCourseStore{}
	id := uuid.NewString()
	store.On("Delete", mock.Anything, id).Return(false, errors.New("connection reset"))
	svc := NewCourseService(CourseServiceOptions{Store: store})

	err := svc.Delete(context.Background(), id)

	require.Error(t, err)
	assert.False(t, apperrors.IsNotFound(err))
}
