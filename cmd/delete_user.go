package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	deleteUserID      int64
	deleteUserActorID int64
)

var deleteUserCmd = &cobra.Command{
	Use:   "delete-user",
	Short: "Delete a user, their role memberships, and their tokens",
	Long: `Delete a user account. Protected users, the last administrator,
and the acting administrator's own account are refused, matching the
HTTP API.`,
	Run: func(cmd *cobra.Command, args []string) {
		core := mustBuildCoreServices()

		if err := core.Users.Delete(context.Background(), deleteUserActorID, deleteUserID); err != nil {
			fmt.Fprintf(os.Stderr, "failed to delete user %d: %v\n", deleteUserID, err)
			os.Exit(1)
		}
		fmt.Printf("Deleted user %d.\n", deleteUserID)
	},
}

func init() {
	deleteUserCmd.Flags().Int64Var(&deleteUserID, "user", 0, "ID of the user to delete")
	deleteUserCmd.Flags().Int64Var(&deleteUserActorID, "actor", 0, "ID of the administrator performing the action")
	deleteUserCmd.MarkFlagRequired("user")
}
