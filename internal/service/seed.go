package service

import (
	"context"
	"time"

	"github.com/Talha-Khalil/bet-you-can-t/internal/models"
	"github.com/Talha-Khalil/bet-you-can-t/internal/repository"
	"go.uber.org/zap"
)

// Seed makes sure the demo users exist and adds one demo challenge between
// them. Running it twice adds a second challenge but no extra users.
func (s *Service) Seed(ctx context.Context) (*models.Challenge, error) {
	var challenge *models.Challenge
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		challenger, err := ensureUser(ctx, tx, "challenger@example.com", models.UserDefaults{
			Name:       "Challenger User",
			ProfilePic: "https://example.com/challenger-pic.jpg",
		})
		if err != nil {
			return err
		}

		challenged, err := ensureUser(ctx, tx, "challenged@example.com", models.UserDefaults{
			Name:       "Challenged User",
			ProfilePic: "https://example.com/challenged-pic.jpg",
		})
		if err != nil {
			return err
		}

		deadline := time.Date(2024, time.December, 31, 0, 0, 0, 0, time.UTC)
		challenge, err = tx.CreateChallenge(ctx, "30-Day Coding Challenge", "Code for Good", deadline, challenger.ID, challenged.ID)
		if err != nil {
			return persistence("seed challenge", err)
		}
		return nil
	})
	if err != nil {
		return nil, persistence("seed", err)
	}

	s.log.Info("✅ Seeding completed", zap.String("challenge", challenge.ID))
	return challenge, nil
}
