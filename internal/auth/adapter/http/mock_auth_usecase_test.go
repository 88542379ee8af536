package http_test

import (
	"context"

	"mission-control/internal/auth/domain/model"
	"mission-control/internal/auth/domain/repository"
	"mission-control/internal/auth/usecase"

	"github.com/stretchr/testify/mock"
)

// mockAuthUsecase is a shared mock type for the AuthUsecaseInterface
type mockAuthUsecase struct {
	mock.Mock
}

func (m *mockAuthUsecase) Login(ctx context.Context, req usecase.LoginRequest) (*model.Operator, string, error) {
	args := m.Called(ctx, req)
	op, _ := args.Get(0).(*model.Operator)
	return op, args.String(1), args.Error(2)
}

func (m *mockAuthUsecase) Register(ctx context.Context, req usecase.RegisterRequest) (*model.Operator, string, error) {
	args := m.Called(ctx, req)
	op, _ := args.Get(0).(*model.Operator)
	return op, args.String(1), args.Error(2)
}

func (m *mockAuthUsecase) ValidateToken(ctx context.Context, tokenString string) (*repository.Claims, error) {
	args := m.Called(ctx, tokenString)
	claims, _ := args.Get(0).(*repository.Claims)
	return claims, args.Error(1)
}

func (m *mockAuthUsecase) GetOperator(ctx context.Context, userID string) (*model.Operator, error) {
	args := m.Called(ctx, userID)
	op, _ := args.Get(0).(*model.Operator)
	return op, args.Error(1)
}

var _ usecase.AuthUsecaseInterface = (*mockAuthUsecase)(nil)
