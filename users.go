package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"guides-server/core"
	"guides-server/handlers/auth"
	"guides-server/stores"
)

func userCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "user",
		Short: "Manage accounts",
	}
	cmd.AddCommand(userCreateCmd())
	cmd.AddCommand(userApproveCmd())
	return cmd
}

func userCreateCmd() *cobra.Command {
	var (
		password string
		email    string
		role     string
	)

	cmd := &cobra.Command{
		Use:   "create [username]",
		Short: "Create an approved account, e.g. the first owner",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			r := core.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			if len(password) < 6 {
				return fmt.Errorf("password must be at least 6 characters")
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}

			store := stores.GetStore()
			defer store.Close()

			user := &core.User{
				Username:     args[0],
				Email:        email,
				PasswordHash: hash,
				Role:         r,
				Approved:     true,
			}
			if err := store.CreateUser(context.Background(), user); err != nil {
				return err
			}
			fmt.Printf("Created %s %s (%s)\n", user.Role, user.Username, user.ID)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "account password")
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&role, "role", string(core.RoleOwner), "user, moderator or owner")
	cmd.MarkFlagRequired("password")
	return cmd
}

func userApproveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "approve [username]",
		Short: "Approve a pending account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store := stores.GetStore()
			defer store.Close()

			ctx := context.Background()
			user, err := store.GetUserByUsername(ctx, args[0])
			if err != nil {
				return err
			}
			user.Approved = true
			if err := store.UpdateUser(ctx, user); err != nil {
				return err
			}
			fmt.Printf("Approved %s\n", user.Username)
			return nil
		},
	}
}
