package cmd

import (
	"fmt"
	"log"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
	gormpostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"

	catalogmodel "github.com/stempede/stempede-api/internal/core/datamodel/catalog"
	datamodel "github.com/stempede/stempede-api/internal/core/datamodel/user"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Seed the database with reference and sample data",
	Long:  `Seed roles, role permissions, an admin account and sample catalog rows.`,
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadConfig(".")
		if err != nil {
			log.Fatalf("failed to load config: %v", err)
		}

		sqlDB, err := initDB(cfg.Database)
		if err != nil {
			log.Fatalf("failed to init db: %v", err)
		}
		defer sqlDB.Close()

		db, err := gorm.Open(gormpostgres.New(gormpostgres.Config{Conn: sqlDB.DB}), &gorm.Config{})
		if err != nil {
			log.Fatalf("failed to init orm: %v", err)
		}

		if clearData {
			for _, table := range []string{"user_permissions", "user_roles", "refresh_tokens", "cart_items", "carts", "order_details", "deliveries", "orders"} {
				if err := db.Exec("DELETE FROM " + table).Error; err != nil {
					log.Fatalf("failed to clear %s: %v", table, err)
				}
			}
			fmt.Println("Cleared existing data")
		}

		// Every login path assumes these roles and their same-named
		// permissions exist.
		roleIDs := map[string]int64{}
		for _, name := range []string{"Customer", "Staff", "Manager"} {
			var role datamodel.Role
			err := db.Where("role_name = ?", name).First(&role).Error
			if err == gorm.ErrRecordNotFound {
				role = datamodel.Role{RoleName: name}
				if err := db.Create(&role).Error; err != nil {
					log.Fatalf("failed to seed role %s: %v", name, err)
				}
				fmt.Println("Seeded role:", name)
			} else if err != nil {
				log.Fatalf("failed to lookup role %s: %v", name, err)
			}
			roleIDs[name] = role.RoleID

			var permission datamodel.Permission
			err = db.Where("permission_name = ?", name).First(&permission).Error
			if err == gorm.ErrRecordNotFound {
				desc := name + " role permission"
				if err := db.Create(&datamodel.Permission{PermissionName: name, Description: &desc}).Error; err != nil {
					log.Fatalf("failed to seed permission %s: %v", name, err)
				}
				fmt.Println("Seeded permission:", name)
			} else if err != nil {
				log.Fatalf("failed to lookup permission %s: %v", name, err)
			}
		}

		adminEmail := "admin@stempede.local"
		var admin datamodel.User
		err = db.Where("email = ?", adminEmail).First(&admin).Error
		if err == gorm.ErrRecordNotFound {
			hash, _ := bcrypt.GenerateFromPassword([]byte("ChangeMe123!"), cfg.Security.BCryptCost)
			digest := string(hash)
			fullName := "Stempede Admin"
			admin = datamodel.User{
				Username:     "admin",
				Email:        adminEmail,
				PasswordHash: &digest,
				FullName:     &fullName,
				Status:       true,
			}
			if err := db.Create(&admin).Error; err != nil {
				log.Fatalf("failed to seed admin user: %v", err)
			}
			if err := db.Create(&datamodel.UserRole{UserID: admin.UserID, RoleID: roleIDs["Manager"]}).Error; err != nil {
				log.Fatalf("failed to assign admin role: %v", err)
			}
			fmt.Println("Seeded admin user:", adminEmail)
		} else if err != nil {
			log.Fatalf("failed to lookup admin user: %v", err)
		}

		var subCount int64
		if err := db.Model(&catalogmodel.Subcategory{}).Count(&subCount).Error; err != nil {
			log.Fatalf("failed to count subcategories: %v", err)
		}
		if subCount == 0 {
			for _, name := range []string{"Chemistry", "Physics", "Biology", "Robotics"} {
				if err := db.Create(&catalogmodel.Subcategory{SubcategoryName: name}).Error; err != nil {
					log.Fatalf("failed to seed subcategory %s: %v", name, err)
				}
			}
			fmt.Println("Seeded subcategories")
		}

		fmt.Println("Seeding complete")
	},
}
