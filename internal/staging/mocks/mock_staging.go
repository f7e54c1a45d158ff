package mocks

import (
	"context"
	"io"

	"mediarelay/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockStaging struct {
	mock.Mock
}

func (m *MockStaging) Stage(ctx context.Context, r io.Reader, originalFilename, contentType string, size int64) (*model.Upload, error) {
	args := m.Called(ctx, r, originalFilename, contentType, size)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Upload), args.Error(1)
}

func (m *MockStaging) Open(ctx context.Context, up *model.Upload) (io.ReadCloser, error) {
	args := m.Called(ctx, up)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(io.ReadCloser), args.Error(1)
}

func (m *MockStaging) Remove(ctx context.Context, up *model.Upload) error {
	args := m.Called(ctx, up)
	return args.Error(0)
}
