package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var logoutAllUserID int64

var logoutAllCmd = &cobra.Command{
	Use:   "logout-all",
	Short: "Revoke every API token a user holds",
	Run: func(cmd *cobra.Command, args []string) {
		core := mustBuildCoreServices()

		revoked, err := core.Users.LogoutAll(context.Background(), logoutAllUserID)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to revoke tokens for user %d: %v\n", logoutAllUserID, err)
			os.Exit(1)
		}
		fmt.Printf("Revoked %d token(s) for user %d.\n", revoked, logoutAllUserID)
	},
}

func init() {
	logoutAllCmd.Flags().Int64Var(&logoutAllUserID, "user", 0, "ID of the user whose tokens to revoke")
	logoutAllCmd.MarkFlagRequired("user")
}
