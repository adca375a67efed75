// Package mocks provides mock implementations for testing HTTP handlers.
package mocks

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
)

// MockPanUseCase is a mock implementation of PanUseCase for testing.
type MockPanUseCase struct {
	mock.Mock
}

// Ingest mocks the Ingest method of PanUseCase.
func (m *MockPanUseCase) Ingest(ctx context.Context, hpan, pan string, seenAt time.Time) error {
	args := m.Called(ctx, hpan, pan, seenAt)
	return args.Error(0)
}

// DecryptByHpan mocks the DecryptByHpan method of PanUseCase.
func (m *MockPanUseCase) DecryptByHpan(
	ctx context.Context,
	hpan, requestedBy, reason string,
) (string, error) {
	args := m.Called(ctx, hpan, requestedBy, reason)
	return args.String(0), args.Error(1)
}
