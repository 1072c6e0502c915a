package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	removeRoleUserID int64
	removeRoleID     int64
)

var deleteUserRoleCmd = &cobra.Command{
	Use:   "delete-user-role",
	Short: "Remove a role from a user",
	Long: `Detach one role from a user. Stripping the admin role from the
last remaining administrator is refused.`,
	Run: func(cmd *cobra.Command, args []string) {
		core := mustBuildCoreServices()

		if err := core.Users.RemoveRole(context.Background(), removeRoleUserID, removeRoleID); err != nil {
			fmt.Fprintf(os.Stderr, "failed to remove role %d from user %d: %v\n", removeRoleID, removeRoleUserID, err)
			os.Exit(1)
		}
		fmt.Printf("Removed role %d from user %d.\n", removeRoleID, removeRoleUserID)
	},
}

func init() {
	deleteUserRoleCmd.Flags().Int64Var(&removeRoleUserID, "user", 0, "ID of the user")
	deleteUserRoleCmd.Flags().Int64Var(&removeRoleID, "role", 0, "ID of the role to remove")
	deleteUserRoleCmd.MarkFlagRequired("user")
	deleteUserRoleCmd.MarkFlagRequired("role")
}
