package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	detachRoleID      int64
	detachPrivilegeID int64
)

var detachPrivilegeCmd = &cobra.Command{
	Use:   "detach-privilege",
	Short: "Detach a privilege from a role",
	Run: func(cmd *cobra.Command, args []string) {
		core := mustBuildCoreServices()

		if err := core.Roles.DetachPrivilege(context.Background(), detachRoleID, detachPrivilegeID); err != nil {
			fmt.Fprintf(os.Stderr, "failed to detach privilege %d from role %d: %v\n", detachPrivilegeID, detachRoleID, err)
			os.Exit(1)
		}
		fmt.Printf("Detached privilege %d from role %d.\n", detachPrivilegeID, detachRoleID)
	},
}

func init() {
	detachPrivilegeCmd.Flags().Int64Var(&detachRoleID, "role", 0, "ID of the role")
	detachPrivilegeCmd.Flags().Int64Var(&detachPrivilegeID, "privilege", 0, "ID of the privilege to detach")
	detachPrivilegeCmd.MarkFlagRequired("role")
	detachPrivilegeCmd.MarkFlagRequired("privilege")
}
