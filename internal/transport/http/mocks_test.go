package http

import (
	"context"

	"github.com/devkudos/ingest-service/internal/domain"
	"github.com/stretchr/testify/mock"
)

type EventProcessorMock struct {
	mock.Mock
}

var _ EventProcessor = (*EventProcessorMock)(nil)

func (m *EventProcessorMock) ProcessEvent(ctx context.Context, env domain.Envelope) error {
	args := m.Called(ctx, env)
	return args.Error(0)
}
