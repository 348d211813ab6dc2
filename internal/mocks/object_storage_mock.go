package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storyboard-server/internal/storage"
)

// MockObjectStorage is a mock type for the storage.ObjectStorage type
type MockObjectStorage struct {
	mock.Mock
}

// Upload provides a mock function with given fields: ctx, objectPath, data, contentType
func (_m *MockObjectStorage) Upload(ctx context.Context, objectPath string, data []byte, contentType string) (string, error) {
	ret := _m.Called(ctx, objectPath, data, contentType)

	var r0 string
	if rf, ok := ret.Get(0).(func(context.Context, string, []byte, string) string); ok {
		r0 = rf(ctx, objectPath, data, contentType)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(string)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string, []byte, string) error); ok {
		r1 = rf(ctx, objectPath, data, contentType)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// DeletePrefix provides a mock function with given fields: ctx, prefix
func (_m *MockObjectStorage) DeletePrefix(ctx context.Context, prefix string) error {
	ret := _m.Called(ctx, prefix)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		r0 = rf(ctx, prefix)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

// NewMockObjectStorage creates a new instance of MockObjectStorage. It also registers a testing interface on the mock.
// The first argument is typically a *testing.T value.
func NewMockObjectStorage(t interface {
	mock.TestingT
	Helper()
}) *MockObjectStorage {
	m := &MockObjectStorage{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ storage.ObjectStorage = (*MockObjectStorage)(nil)
