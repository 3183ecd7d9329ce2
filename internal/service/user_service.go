package service

import (
	"context"

	"creditbot/internal/domain"
	"creditbot/internal/models"
	"creditbot/internal/repository"

	"github.com/sirupsen/logrus"
)

type UserService struct {
	users *repository.UserRepository
	log   *logrus.Logger
}

func NewUserService(users *repository.UserRepository, log *logrus.Logger) *UserService {
	return &UserService{users: users, log: log}
}

// EnsureUser returns the user, creating it on first contact. created is true only for
// the call that inserted the row.
func (s *UserService) EnsureUser(ctx context.Context, userID int64, username string) (u *models.User, created bool, err error) {
	u, err = s.users.GetByID(ctx, userID)
	if err == nil {
		if username != "" && u.Username != username {
			if err := s.users.Updates(ctx, userID, map[string]interface{}{"username": username}); err != nil {
				s.log.WithError(err).WithField("user_id", userID).Warn("username not updated")
			} else {
				u.Username = username
			}
		}
		return u, false, nil
	}
	if !repository.IsNotFound(err) {
		return nil, false, repository.StoreErr(err)
	}
	u = &models.User{ID: userID, Username: username}
	if err := s.users.Create(ctx, u); err != nil {
		if repository.IsDuplicateKey(err) {
			u, err = s.users.GetByID(ctx, userID)
			return u, false, repository.StoreErr(err)
		}
		return nil, false, repository.StoreErr(err)
	}
	s.log.WithField("user_id", userID).Info("user created")
	return u, true, nil
}

func (s *UserService) Get(ctx context.Context, userID int64) (*models.User, error) {
	u, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, domain.ErrUserNotFound
		}
		return nil, repository.StoreErr(err)
	}
	return u, nil
}

func (s *UserService) AcceptRules(ctx context.Context, userID int64) error {
	if _, err := s.Get(ctx, userID); err != nil {
		return err
	}
	return repository.StoreErr(s.users.Updates(ctx, userID, map[string]interface{}{"accepted_rules": true}))
}
