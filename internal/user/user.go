package user

import (
	"time"

	userDatamodel "github.com/thaiGO2003/DigiGO-sub000/internal/core/datamodel/user"
)

type User struct {
	ID             string    `json:"id"`
	DisplayName    string    `json:"display_name"`
	Balance        int64     `json:"balance"`
	TotalDeposited int64     `json:"total_deposited"`
	ReferrerID     *string   `json:"referrer_id,omitempty"`
	IsAdmin        bool      `json:"is_admin"`
	CreatedAt      time.Time `json:"created_at"`
}

func FromDataModel(u *userDatamodel.User) *User {
	return &User{
		ID:             u.ID,
		DisplayName:    u.DisplayName,
		Balance:        u.Balance,
		TotalDeposited: u.TotalDeposited,
		ReferrerID:     u.ReferrerID,
		IsAdmin:        u.IsAdmin,
		CreatedAt:      u.CreatedAt,
	}
}
