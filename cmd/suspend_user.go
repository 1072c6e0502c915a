package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	suspendUserID    int64
	suspendActorID   int64
	suspendReason    string
	suspendUnsuspend bool
)

var suspendUserCmd = &cobra.Command{
	Use:   "suspend-user",
	Short: "Suspend a user and revoke all of their tokens",
	Long: `Suspend a user, recording the reason and revoking every API token
they hold. With --unsuspend the suspension is lifted; revoked tokens are
not restored. The same guards apply as on the HTTP API: the last
administrator cannot be suspended, and --actor cannot target itself.`,
	Run: func(cmd *cobra.Command, args []string) {
		core := mustBuildCoreServices()
		ctx := context.Background()

		if suspendUnsuspend {
			u, err := core.Users.Unsuspend(ctx, suspendUserID)
			if err != nil {
				fmt.Fprintf(os.Stderr, "failed to unsuspend user %d: %v\n", suspendUserID, err)
				os.Exit(1)
			}
			fmt.Printf("User %d (%s) is %s. Revoked tokens are not restored.\n", u.ID, u.Email, u.Status)
			return
		}

		result, err := core.Users.Suspend(ctx, suspendActorID, suspendUserID, suspendReason)
		if err != nil {
			fmt.Fprintf(os.Stderr, "failed to suspend user %d: %v\n", suspendUserID, err)
			os.Exit(1)
		}
		fmt.Printf("User %d suspended (%s), revoked %d token(s).\n", suspendUserID, result.Status, result.RevokedTokens)
	},
}

func init() {
	suspendUserCmd.Flags().Int64Var(&suspendUserID, "user", 0, "ID of the user to suspend")
	suspendUserCmd.Flags().Int64Var(&suspendActorID, "actor", 0, "ID of the administrator performing the action")
	suspendUserCmd.Flags().StringVar(&suspendReason, "reason", "", "reason recorded on the suspension")
	suspendUserCmd.Flags().BoolVar(&suspendUnsuspend, "unsuspend", false, "lift an existing suspension")
	suspendUserCmd.MarkFlagRequired("user")
}

// mustBuildCoreServices loads config and wires the service layer for a
// one-shot CLI invocation.
func mustBuildCoreServices() *coreServices {
	cfg, err := loadConfig(".")
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	core, err := buildCoreServices(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to connect: %v\n", err)
		os.Exit(1)
	}
	return core
}
