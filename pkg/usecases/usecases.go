package usecases

import (
	"context"

	"google.golang.org/api/walletobjects/v1"

	"passbridge/pkg/repo"
)

// ApplePusher delivers silent pushes to registered Apple devices.
type ApplePusher interface {
	PushUpdate(context.Context, string) error
}

// WalletObjectMutator mutates Google Wallet loyalty objects server-side.
type WalletObjectMutator interface {
	EnsureClass(context.Context, *walletobjects.LoyaltyClass) error
	UpsertObject(context.Context, *walletobjects.LoyaltyObject) error
	AddMessage(context.Context, string, string, string) error
}

type UseCases struct {
	repo repo.RepoImply
}

type UseCaseImply interface {
	DatabaseHealth(context.Context) error
}

func NewUseCases(repo repo.RepoImply) UseCaseImply {
	return &UseCases{repo: repo}
}

func (usecase *UseCases) DatabaseHealth(ctx context.Context) error {
	return usecase.repo.DatabaseHealth(ctx)
}
