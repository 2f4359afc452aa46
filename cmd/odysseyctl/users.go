package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/odyssey-erp/odyssey-mill/internal/auth"
	"github.com/odyssey-erp/odyssey-mill/internal/platform/db"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manage login accounts",
}

var usersCreateCmd = &cobra.Command{
	Use:     "create",
	Short:   "Create an active account",
	Example: "  odysseyctl users create --username budi --password rahasia123",
	RunE:    runUsersCreate,
}

func init() {
	rootCmd.AddCommand(usersCmd)
	usersCmd.AddCommand(usersCreateCmd)
	usersCreateCmd.Flags().String("username", "", "login name, also the inventory owner key")
	usersCreateCmd.Flags().String("password", "", "password, at least 8 characters")
	_ = usersCreateCmd.MarkFlagRequired("username")
	_ = usersCreateCmd.MarkFlagRequired("password")
}

func runUsersCreate(cmd *cobra.Command, _ []string) error {
	username, _ := cmd.Flags().GetString("username")
	password, _ := cmd.Flags().GetString("password")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	pool, err := db.New(ctx, cfg.PGDSN, 2)
	if err != nil {
		return fmt.Errorf("connect postgres: %w", err)
	}
	defer pool.Close()

	user, err := auth.NewService(auth.NewRepository(pool)).CreateUser(ctx, username, password)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created user %s (%s)\n", user.Username, user.ID)
	return nil
}
