package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"storyboard-server/internal/imagegen"
)

// MockGenerator is a mock type for the imagegen.Generator type
type MockGenerator struct {
	mock.Mock
}

// GenerateImage provides a mock function with given fields: ctx, req
func (_m *MockGenerator) GenerateImage(ctx context.Context, req imagegen.GenerateRequest) ([]byte, error) {
	ret := _m.Called(ctx, req)

	var r0 []byte
	if rf, ok := ret.Get(0).(func(context.Context, imagegen.GenerateRequest) []byte); ok {
		r0 = rf(ctx, req)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]byte)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, imagegen.GenerateRequest) error); ok {
		r1 = rf(ctx, req)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

// NewMockGenerator creates a new instance of MockGenerator. It also registers a testing interface on the mock.
// The first argument is typically a *testing.T value.
func NewMockGenerator(t interface {
	mock.TestingT
	Helper()
}) *MockGenerator {
	m := &MockGenerator{}
	m.Mock.Test(t)
	t.Helper()
	return m
}

var _ imagegen.Generator = (*MockGenerator)(nil)
