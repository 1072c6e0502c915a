package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var purgeForce bool

var purgePrivilegesCmd = &cobra.Command{
	Use:   "purge-privileges",
	Short: "Delete every privilege and all role attachments",
	Run: func(cmd *cobra.Command, args []string) {
		if !purgeForce {
			fmt.Fprintln(os.Stderr, "this deletes every privilege in the system; re-run with --force to confirm")
			os.Exit(1)
		}

		core := mustBuildCoreServices()

		result, err := core.Privs.Purge(context.Background())
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to purge privileges: %v\n", err)
			os.Exit(1)
		}
		fmt.Printf("Purged %d privilege(s), detached %d role attachment(s).\n", result.DeletedPrivileges, result.DetachedRoles)
	},
}

func init() {
	purgePrivilegesCmd.Flags().BoolVar(&purgeForce, "force", false, "confirm the purge")
}
