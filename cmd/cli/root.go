package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/turtacn/mfagate/internal/application/service"
)

// Opener builds the admin service for the configuration at configPath. The returned func releases it.
type Opener func(ctx context.Context, configPath string) (service.AdminService, func() error, error)

// NewRootCommand builds the `mfagate-admin` command tree.
// NewRootCommand 构建 `mfagate-admin` 命令树。
func NewRootCommand(open Opener) *cobra.Command {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "mfagate-admin",
		Short: "A CLI tool for administering stored second-factor state.",
		Long: `mfagate-admin inspects and repairs the attributes mfagate keeps per user:
the one-time-code secret, its confirmation flag and the push transaction marker.`,
		SilenceUsage: true,
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to the mfagate config file")

	withAdmin := func(fn func(ctx context.Context, admin service.AdminService, args []string) error) func(*cobra.Command, []string) error {
		return func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			admin, closeFn, err := open(ctx, configPath)
			if err != nil {
				return err
			}
			defer closeFn()
			return fn(ctx, admin, args)
		}
	}

	rootCmd.AddCommand(
		newStatusCommand(withAdmin),
		newResetCommand(withAdmin),
		newClearTransactionCommand(withAdmin),
	)
	return rootCmd
}

// Execute is the main entry point for the CLI application.
// Execute 是 CLI 应用程序的主入口点。
func Execute() {
	if err := NewRootCommand(OpenAdminService).Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

//Personal.AI order the ending
