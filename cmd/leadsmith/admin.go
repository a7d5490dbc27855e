package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/storage"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Read and change persisted settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get [KEY]",
	Short: "Print a persisted setting",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		value, ok, err := env.store.GetSetting(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if !ok {
			return fmt.Errorf("setting %s is not set", args[0])
		}
		fmt.Fprintln(cmd.OutOrStdout(), value)
		return nil
	},
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [KEY] [VALUE]",
	Short: "Change a persisted setting",
	Long: `Change a persisted setting. Supported keys:

  max_searches  daily search ceiling overriding search.daily_limit (0 = unlimited)`,
	Args: cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		key, value := args[0], args[1]
		if key != storage.SettingMaxSearches {
			return fmt.Errorf("unknown setting %q", key)
		}
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("%s must be an integer: %w", key, err)
		}
		if err := env.store.SetMaxSearches(cmd.Context(), n); err != nil {
			return err
		}
		env.log.Info("Setting changed", logger.String("key", key), logger.Int("value", n))

		stats, err := env.tracker().Stats(cmd.Context())
		if err != nil {
			return err
		}
		return env.report.Render(stats)
	},
}

var marketplaceCmd = &cobra.Command{
	Use:   "marketplace",
	Short: "Manage the marketplace registry",
}

var marketplaceAddCmd = &cobra.Command{
	Use:   "add [DOMAIN] [NAME]",
	Short: "Register a marketplace domain",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[0]
		if len(args) == 2 {
			name = args[1]
		}
		added, err := env.store.AddMarketplace(cmd.Context(), args[0], name, false)
		if err != nil {
			return err
		}
		if !added {
			fmt.Fprintf(cmd.ErrOrStderr(), "Marketplace %s is already registered\n", args[0])
		}
		entries, err := env.store.ListMarketplaces(cmd.Context())
		if err != nil {
			return err
		}
		return env.report.Render(entries)
	},
}

var marketplaceListCmd = &cobra.Command{
	Use:   "list",
	Short: "List registered marketplace domains",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		entries, err := env.store.ListMarketplaces(cmd.Context())
		if err != nil {
			return err
		}
		return env.report.Render(entries)
	},
}

var marketplaceRemoveCmd = &cobra.Command{
	Use:   "remove [DOMAIN]",
	Short: "Remove a user-registered marketplace domain",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := env.store.DeleteMarketplace(cmd.Context(), args[0]); err != nil {
			return fmt.Errorf("remove marketplace %s: %w", args[0], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Marketplace %s removed\n", args[0])
		return nil
	},
}

func init() {
	settingsCmd.AddCommand(settingsGetCmd, settingsSetCmd)
	marketplaceCmd.AddCommand(marketplaceAddCmd, marketplaceListCmd, marketplaceRemoveCmd)
}
