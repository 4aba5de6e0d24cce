package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"kiramate-backend/internal/auth"
	"kiramate-backend/internal/config"
	"kiramate-backend/internal/database"
	"kiramate-backend/internal/models"
	"kiramate-backend/internal/validation"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

type newUser struct {
	Username string `validate:"required,min=3,max=50" label:"Username"`
	Email    string `validate:"required,email,max=100" label:"Email"`
	Password string `validate:"required,min=8" label:"Password"`
	Role     string `validate:"required,oneof=user admin" label:"Role"`
}

func createUser(db *gorm.DB, in newUser) (models.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.ToLower(strings.TrimSpace(in.Email))
	if err := validation.Struct(in); err != nil {
		return models.User{}, err
	}

	var count int64
	if err := db.Model(&models.User{}).
		Where("username = ? OR email = ?", in.Username, in.Email).
		Count(&count).Error; err != nil {
		return models.User{}, err
	}
	if count > 0 {
		return models.User{}, fmt.Errorf("a user with username %q or email %q already exists", in.Username, in.Email)
	}

	hash, err := auth.HashPassword(in.Password)
	if err != nil {
		return models.User{}, err
	}
	u := models.User{
		Username:     in.Username,
		Email:        in.Email,
		PasswordHash: hash,
		Role:         models.UserRole(in.Role),
		IsActive:     true,
	}
	if err := db.Create(&u).Error; err != nil {
		return models.User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}

func setPassword(db *gorm.DB, username, password string) error {
	if err := validation.Var("Password", password, "required,min=8"); err != nil {
		return err
	}
	var u models.User
	if err := db.Where("username = ?", username).First(&u).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("user %q not found", username)
		}
		return err
	}
	hash, err := auth.HashPassword(password)
	if err != nil {
		return err
	}
	return db.Model(&u).Update("password_hash", hash).Error
}

// readPassword returns flag when set, otherwise the first line of r.
func readPassword(flag string, r io.Reader) (string, error) {
	if flag != "" {
		return flag, nil
	}
	line, err := bufio.NewReader(r).ReadString('\n')
	if err != nil && !errors.Is(err, io.EOF) {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func openDB() (*gorm.DB, error) {
	return database.Open(config.LoadDatabase())
}

func createUserCmd() *cobra.Command {
	var in newUser
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Create an active user (password from --password or stdin)",
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(in.Password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			in.Password = pw

			db, err := openDB()
			if err != nil {
				return err
			}
			u, err := createUser(db, in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Created %s user %s (id %d).\n", u.Role, u.Username, u.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&in.Username, "username", "", "login name")
	cmd.Flags().StringVar(&in.Email, "email", "", "email address")
	cmd.Flags().StringVar(&in.Role, "role", string(models.RoleAdmin), "user or admin")
	cmd.Flags().StringVar(&in.Password, "password", "", "password, read from stdin when empty")
	return cmd
}

func setPasswordCmd() *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "set-password <username>",
		Short: "Reset a user's password",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			pw, err := readPassword(password, cmd.InOrStdin())
			if err != nil {
				return err
			}
			db, err := openDB()
			if err != nil {
				return err
			}
			if err := setPassword(db, args[0], pw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Password updated for %s.\n", args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password, read from stdin when empty")
	return cmd
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print a bcrypt hash for seeding users by hand",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var flag string
			if len(args) == 1 {
				flag = args[0]
			}
			pw, err := readPassword(flag, cmd.InOrStdin())
			if err != nil {
				return err
			}
			if len(pw) < auth.MinPasswordLength {
				return fmt.Errorf("password must be at least %d characters", auth.MinPasswordLength)
			}
			hash, err := auth.HashPassword(pw)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
