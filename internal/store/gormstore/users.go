package gormstore

import (
	"context"
	"errors"
	"strings"

	"github.com/MarkoPoloResearchLab/turf/internal/auth"
	"gorm.io/gorm"
)

// UserStore implements auth.UserStore using GORM.
type UserStore struct {
	db *gorm.DB
}

func (store *UserStore) CreateUser(ctx context.Context, user auth.User) error {
	model := User{
		UserID:       user.ID,
		Name:         user.Name,
		Email:        strings.ToLower(user.Email),
		Mobile:       user.Mobile,
		PasswordHash: user.PasswordHash,
		Role:         user.Role.String(),
		CreatedAt:    user.CreatedAt.UTC(),
		UpdatedAt:    user.UpdatedAt.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if constraint, conflict := uniqueViolation(err); conflict && (constraint == "" || strings.Contains(constraint, constraintUserEmail)) {
		return wrapStoreError(errorSubjectUser, errorCodeDuplicate, auth.ErrDuplicateEmail)
	}
	if err != nil {
		return wrapStoreError(errorSubjectUser, errorCodeInsert, err)
	}
	return nil
}

func (store *UserStore) FindUserByEmail(ctx context.Context, email string) (auth.User, error) {
	return store.findUser(store.db.WithContext(ctx).Where("email = ?", strings.ToLower(strings.TrimSpace(email))))
}

func (store *UserStore) GetUser(ctx context.Context, id string) (auth.User, error) {
	return store.findUser(store.db.WithContext(ctx).Where("user_id = ?", id))
}

func (store *UserStore) findUser(query *gorm.DB) (auth.User, error) {
	var model User
	err := query.Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return auth.User{}, wrapStoreError(errorSubjectUser, errorCodeGet, auth.ErrUserNotFound)
	}
	if err != nil {
		return auth.User{}, wrapStoreError(errorSubjectUser, errorCodeGet, err)
	}
	role, err := auth.ParseRole(model.Role)
	if err != nil {
		return auth.User{}, wrapStoreError(errorSubjectUser, errorCodeInvalid, err)
	}
	return auth.User{
		ID:           model.UserID,
		Name:         model.Name,
		Email:        model.Email,
		Mobile:       model.Mobile,
		PasswordHash: model.PasswordHash,
		Role:         role,
		CreatedAt:    model.CreatedAt.UTC(),
		UpdatedAt:    model.UpdatedAt.UTC(),
	}, nil
}
