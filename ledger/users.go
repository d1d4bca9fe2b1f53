package ledger

import (
	"context"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/toxnroot/trans-invoice-v3/models"
	"github.com/toxnroot/trans-invoice-v3/store"
)

type profileInput struct {
	UID   string `json:"uid" validate:"required"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"required,email"`
}

// CreateUserProfile registers a profile with the default role. Registering
// an existing uid returns the stored profile unchanged.
func (s *Service) CreateUserProfile(ctx context.Context, in models.NewUserProfile) (*models.UserProfile, error) {
	pi := profileInput{
		UID:   strings.TrimSpace(in.UID),
		Name:  strings.TrimSpace(in.Name),
		Email: strings.TrimSpace(in.Email),
	}
	if err := s.validateStruct(pi); err != nil {
		return nil, err
	}

	profile := &models.UserProfile{UID: pi.UID, Name: pi.Name, Email: pi.Email, Role: models.DefaultRole}
	created := false

	err := store.RunTransaction(ctx, s.store, func(tx *store.Tx) error {
		snap, err := tx.Get(userKey(pi.UID))
		if err != nil {
			return err
		}
		if snap.Exists() {
			return snap.DataTo(profile)
		}
		fields, err := store.EncodeFields(profile)
		if err != nil {
			return err
		}
		tx.Set(userKey(pi.UID), fields)
		created = true
		return nil
	})
	if err != nil {
		return nil, storeErr(err, ErrUserNotFound, userKey(pi.UID))
	}

	if created {
		s.logger.WithFields(logrus.Fields{"uid": pi.UID, "role": profile.Role}).Info("user registered")
	}
	return profile, nil
}

func (s *Service) GetUserProfile(ctx context.Context, uid string) (*models.UserProfile, error) {
	snap, err := store.Get(ctx, s.store, userKey(uid))
	if err != nil {
		return nil, storeErr(err, ErrUserNotFound, userKey(uid))
	}
	var profile models.UserProfile
	if err := snap.DataTo(&profile); err != nil {
		return nil, err
	}
	profile.UID = uid
	return &profile, nil
}

func (s *Service) GetAllUsers(ctx context.Context) ([]models.UserProfile, error) {
	snaps, err := s.store.List(ctx, collUsers)
	if err != nil {
		return nil, err
	}
	users := make([]models.UserProfile, 0, len(snaps))
	for _, snap := range snaps {
		var u models.UserProfile
		if err := snap.DataTo(&u); err != nil {
			return nil, err
		}
		u.UID = snap.Key.ID
		users = append(users, u)
	}
	return users, nil
}

// UpdateUserRole sets the role of targetUID. The core does not know who is
// asking, so refusing self-demotion or non-admin callers is up to the caller.
func (s *Service) UpdateUserRole(ctx context.Context, targetUID string, role models.Role) error {
	if !role.Valid() {
		return invalid("role", "must be admin or deploy")
	}
	err := store.Update(ctx, s.store, userKey(targetUID), store.Fields{"role": string(role)})
	if err != nil {
		return storeErr(err, ErrUserNotFound, userKey(targetUID))
	}
	s.logger.WithFields(logrus.Fields{"uid": targetUID, "role": role}).Info("user role changed")
	return nil
}
