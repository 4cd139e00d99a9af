package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with sample data",
	Long:  `Seed the database with sample data for development and testing purposes.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init gorm: %v", err)
		}

		if clearData {
			for _, table := range []string{"referral_earnings", "purchases", "topups", "users"} {
				if err := db.Exec(fmt.Sprintf("DELETE FROM %s", table)).Error; err != nil {
					log.Fatalf("failed to clear table %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		// A referral chain for exercising the commission cascade:
		// ops-admin (internal), anh <- binh <- chau.
		users := []struct {
			ID          string
			DisplayName string
			Balance     int64
			ReferrerID  *string
			IsAdmin     bool
		}{
			{"ops-admin", "DigiGO Ops", 0, nil, true},
			{"anh", "Anh Nguyen", 500000, nil, false},
			{"binh", "Binh Tran", 250000, strPtr("anh"), false},
			{"chau", "Chau Le", 100000, strPtr("binh"), false},
		}

		for _, u := range users {
			var exists int
			row := db.Raw("SELECT 1 FROM users WHERE id = ?", u.ID).Row()
			if err := row.Scan(&exists); err == nil {
				fmt.Printf("user %s already exists, skipping\n", u.ID)
				continue
			}

			err := db.Exec(
				"INSERT INTO users (id, display_name, balance, total_deposited, referrer_id, is_admin, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, now(), now())",
				u.ID, u.DisplayName, u.Balance, u.Balance, u.ReferrerID, u.IsAdmin,
			).Error
			if err != nil {
				log.Fatalf("failed to insert user %s: %v", u.ID, err)
			}
			fmt.Printf("Seeded user: %s\n", u.ID)
		}

		fmt.Println("Sample users seeded successfully")
	},
}

func strPtr(s string) *string {
	return &s
}
