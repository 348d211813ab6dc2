package mocks

import (
	"context"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"storyboard-server/internal/models"
	"storyboard-server/internal/repository"
)

// MockStoryboardRepository is a mock type for the repository.StoryboardRepository type
type MockStoryboardRepository struct {
	mock.Mock
}

// Create provides a mock function with given fields: ctx, storyboard
func (_m *MockStoryboardRepository) Create(ctx context.Context, storyboard *models.Storyboard) error {
	ret := _m.Called(ctx, storyboard)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *models.Storyboard) error); ok {
		r0 = rf(ctx, storyboard)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// GetByID provides a mock function with given fields: ctx, id
func (_m *MockStoryboardRepository) GetByID(ctx context.Context, id uuid.UUID) (*models.Storyboard, error) {
	ret := _m.Called(ctx, id)

	var r0 *models.Storyboard
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID) *models.Storyboard); ok {
		r0 = rf(ctx, id)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*models.Storyboard)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, uuid.UUID) error); ok {
		r1 = rf(ctx, id)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// SetBreakdown provides a mock function with given fields: ctx, id, title, characterPersona, scenes
func (_m *MockStoryboardRepository) SetBreakdown(ctx context.Context, id uuid.UUID, title string, characterPersona string, scenes []models.Scene) error {
	ret := _m.Called(ctx, id, title, characterPersona, scenes)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID, string, string, []models.Scene) error); ok {
		r0 = rf(ctx, id, title, characterPersona, scenes)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// UpdateScene provides a mock function with given fields: ctx, id, scene
func (_m *MockStoryboardRepository) UpdateScene(ctx context.Context, id uuid.UUID, scene models.Scene) error {
	ret := _m.Called(ctx, id, scene)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID, models.Scene) error); ok {
		r0 = rf(ctx, id, scene)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// UpdateStatus provides a mock function with given fields: ctx, id, status
func (_m *MockStoryboardRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status models.StoryboardStatus) error {
	ret := _m.Called(ctx, id, status)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID, models.StoryboardStatus) error); ok {
		r0 = rf(ctx, id, status)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// Delete provides a mock function with given fields: ctx, id
func (_m *MockStoryboardRepository) Delete(ctx context.Context, id uuid.UUID) error {
	ret := _m.Called(ctx, id)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, uuid.UUID) error); ok {
		r0 = rf(ctx, id)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockStoryboardRepository creates a new instance of MockStoryboardRepository. It also registers a testing interface on the mock.
// The first argument is typically a *testing.T value.
func NewMockStoryboardRepository(t interface {
	mock.TestingT
	Helper()
}) *MockStoryboardRepository {
	m := &MockStoryboardRepository{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ repository.StoryboardRepository = (*MockStoryboardRepository)(nil)
