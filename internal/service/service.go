package service

import (
	"context"
	"errors"
	"strings"

	"github.com/Talha-Khalil/bet-you-can-t/internal/models"
	"github.com/Talha-Khalil/bet-you-can-t/internal/repository"
	"go.uber.org/zap"
)

const (
	// FeedLimit caps the public feed.
	FeedLimit = 6
	// SearchLimit caps user search results.
	SearchLimit = 5

	minSearchQuery = 2
)

// EventSink receives committed challenges. Sinks run after the transaction
// and cannot fail the workflow.
type EventSink interface {
	ChallengeCreated(ctx context.Context, ev models.ChallengeCreated)
}

// ProfileSink is implemented by sinks that also track name and picture
// changes of existing users.
type ProfileSink interface {
	ProfileChanged(ctx context.Context, user models.User)
}

type Service struct {
	repo  *repository.Repository
	log   *zap.Logger
	sinks []EventSink
}

func NewService(repo *repository.Repository, log *zap.Logger, sinks ...EventSink) *Service {
	return &Service{repo: repo, log: log, sinks: sinks}
}

// EnsureUser resolves a challenge target, creating it on first sight.
// An existing row is never modified.
func (s *Service) EnsureUser(ctx context.Context, email string, defaults models.UserDefaults) (*models.User, error) {
	return ensureUser(ctx, s.repo, email, defaults)
}

func ensureUser(ctx context.Context, repo *repository.Repository, email string, defaults models.UserDefaults) (*models.User, error) {
	if defaults.Name == "" {
		defaults.Name = LocalPart(email)
	}
	user, err := repo.EnsureUser(ctx, email, defaults)
	if err != nil {
		return nil, persistence("resolve user", err)
	}
	return user, nil
}

// SyncUser records the authenticated caller, refreshing name and picture
// when the identity provider supplies them.
func (s *Service) SyncUser(ctx context.Context, id models.Identity) (*models.User, error) {
	if id.Email == "" {
		return nil, ErrUnauthenticated
	}
	user, changed, err := s.repo.SyncUser(ctx, id.Email, id.FullName(), id.Picture)
	if err != nil {
		return nil, persistence("sync user", err)
	}
	if changed {
		for _, sink := range s.sinks {
			if ps, ok := sink.(ProfileSink); ok {
				ps.ProfileChanged(ctx, *user)
			}
		}
	}
	return user, nil
}

// CreateChallenge resolves both parties, stores the challenge and notifies
// the challenged user. All writes share one transaction.
func (s *Service) CreateChallenge(ctx context.Context, id models.Identity, in models.NewChallenge) (*models.Challenge, error) {
	if id.Email == "" {
		return nil, ErrUnauthenticated
	}

	var created models.ChallengeCreated
	err := s.repo.InTx(ctx, func(tx *repository.Repository) error {
		challenged, err := ensureUser(ctx, tx, in.ChallengedEmail, models.UserDefaults{})
		if err != nil {
			return err
		}

		challenger, err := tx.GetUserByEmail(ctx, id.Email)
		if errors.Is(err, repository.ErrNotFound) {
			return ErrChallengerNotFound
		}
		if err != nil {
			return persistence("find challenger", err)
		}

		challenge, err := tx.CreateChallenge(ctx, in.Description, in.Charity, in.Deadline, challenger.ID, challenged.ID)
		if err != nil {
			return persistence("create challenge", err)
		}

		if _, err := tx.CreateNotification(ctx, challenged.ID, NotificationMessage(in.Description)); err != nil {
			return persistence("create notification", err)
		}

		created = models.ChallengeCreated{
			Challenge:      *challenge,
			Challenger:     *challenger,
			Challenged:     *challenged,
			RequesterEmail: id.Email,
		}
		return nil
	})
	if err != nil {
		if !errors.Is(err, ErrChallengerNotFound) {
			err = persistence("create challenge", err)
		}
		s.log.Error("Error creating challenge", zap.String("challenger", id.Email), zap.Error(err))
		return nil, err
	}

	for _, sink := range s.sinks {
		sink.ChallengeCreated(ctx, created)
	}

	s.log.Info("Challenge created",
		zap.String("id", created.Challenge.ID),
		zap.String("challenger", created.Challenger.Email),
		zap.String("challenged", created.Challenged.Email))
	return &created.Challenge, nil
}

// Feed returns the latest challenges across all users.
func (s *Service) Feed(ctx context.Context) ([]models.FeedEntry, error) {
	entries, err := s.repo.ListRecentChallenges(ctx, FeedLimit)
	if err != nil {
		s.log.Error("Error fetching challenges", zap.Error(err))
		return nil, persistence("feed", err)
	}
	return entries, nil
}

// MyChallenges returns the challenges the caller has issued. Challenges the
// caller has received are not included.
func (s *Service) MyChallenges(ctx context.Context, id models.Identity) ([]models.DashboardEntry, error) {
	if id.Email == "" {
		return nil, ErrUnauthenticated
	}
	entries, err := s.repo.ListChallengesByChallenger(ctx, id.Email)
	if err != nil {
		s.log.Error("Error fetching challenges", zap.String("email", id.Email), zap.Error(err))
		return nil, persistence("my challenges", err)
	}
	return entries, nil
}

// SearchUsers powers the challenge form typeahead. Queries shorter than two
// characters return nothing.
func (s *Service) SearchUsers(ctx context.Context, query string) ([]models.User, error) {
	if len(query) < minSearchQuery {
		return []models.User{}, nil
	}
	users, err := s.repo.SearchUsers(ctx, query, SearchLimit)
	if err != nil {
		return nil, persistence("search users", err)
	}
	return users, nil
}

// NotificationMessage is the text sent to a challenged user.
func NotificationMessage(description string) string {
	return "You have been challenged to: " + description
}

// LocalPart returns the part of an email before the first "@".
func LocalPart(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}
