package postgres

import (
	"errors"

	"gorm.io/gorm"

	internal "github.com/thaiGO2003/DigiGO-sub000/internal"
	userDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/user"
	userpkg "github.com/thaiGO2003/DigiGO-sub000/internal/user"
)

type UserRepository struct {
	db *gorm.DB
}

func NewUserRepository(db *gorm.DB) userpkg.Repository {
	return &UserRepository{
		db: db,
	}
}

func (r *UserRepository) GetByID(id string) (*userDatamodel.User, error) {
	var u userDatamodel.User
	err := r.db.Where("id = ?", id).First(&u).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, internal.ErrUserNotFound
		}
		return nil, err
	}
	return &u, nil
}

func (r *UserRepository) Create(u *userDatamodel.User) error {
	return r.db.Create(u).Error
}
