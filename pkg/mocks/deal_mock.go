package mocks

import (
	"context"

	"github.com/dukex/ledgerflow/pkg/nodes/createdeal"
	"github.com/stretchr/testify/mock"
)

// MockDealCollaborators implements the lookups and writer used by the create deal node.
type MockDealCollaborators struct {
	mock.Mock
}

func (m *MockDealCollaborators) ClientExists(ctx context.Context, clientID string) (bool, error) {
	args := m.Called(ctx, clientID)

	return args.Bool(0), args.Error(1)
}

func (m *MockDealCollaborators) DefaultStage(ctx context.Context) (string, error) {
	args := m.Called(ctx)

	return args.String(0), args.Error(1)
}

func (m *MockDealCollaborators) InsertDeal(ctx context.Context, deal createdeal.Deal) (string, error) {
	args := m.Called(ctx, deal)

	return args.String(0), args.Error(1)
}
