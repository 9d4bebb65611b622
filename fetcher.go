package main

import (
	"context"

	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/models"
	"github.com/RushiK8626/ConvoHub-Chat-Messaging-App/internal/repositories"
)

// userFetcher backs the user cache with the two repositories that together
// cover profiles, memberships and friendships.
type userFetcher struct {
	users repositories.UserRepository
	chats repositories.ChatRepository
}

func (f *userFetcher) GetProfile(ctx context.Context, userID int) (models.UserProfile, error) {
	return f.users.GetProfile(ctx, userID)
}

func (f *userFetcher) MemberChats(ctx context.Context, userID int) ([]models.ChatSummary, error) {
	return f.chats.MemberChats(ctx, userID)
}

func (f *userFetcher) Friends(ctx context.Context, userID int) ([]int, error) {
	return f.users.Friends(ctx, userID)
}
