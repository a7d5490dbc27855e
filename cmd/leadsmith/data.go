package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/internal/storage"
)

var marketCmd = &cobra.Command{
	Use:   "market",
	Short: "Manage markets",
}

var marketAddCmd = &cobra.Command{
	Use:   "add [CODE] [NAME]",
	Short: "Add a market",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		language, _ := cmd.Flags().GetString("language")
		m := &models.Market{Code: args[0], Name: args[1], Language: language, Active: true}
		if err := env.store.CreateMarket(cmd.Context(), m); err != nil {
			return err
		}
		return env.report.Render([]models.Market{*m})
	},
}

var marketListCmd = &cobra.Command{
	Use:   "list",
	Short: "List markets",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		all, _ := cmd.Flags().GetBool("all")
		markets, err := env.store.ListMarkets(cmd.Context(), !all)
		if err != nil {
			return err
		}
		return env.report.Render(markets)
	},
}

// setMarketActive builds the enable and disable subcommands.
func setMarketActive(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [MARKET]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			market, err := env.market(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if err := env.store.SetMarketActive(cmd.Context(), market.ID, active); err != nil {
				return err
			}
			market.Active = active
			return env.report.Render([]models.Market{*market})
		},
	}
}

var marketDeleteCmd = &cobra.Command{
	Use:   "delete [MARKET]",
	Short: "Delete a market with its keywords, leads and suggestions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		if err := env.store.DeleteMarket(cmd.Context(), market.ID); err != nil {
			return fmt.Errorf("delete market %s: %w", market.Code, err)
		}
		env.log.Info("Market deleted", logger.Int64("market_id", market.ID), logger.String("code", market.Code))
		fmt.Fprintf(cmd.OutOrStdout(), "Market %s deleted\n", market.Code)
		return nil
	},
}

var keywordCmd = &cobra.Command{
	Use:   "keyword",
	Short: "Manage search keywords",
}

var keywordAddCmd = &cobra.Command{
	Use:   "add [MARKET] [TEXT]",
	Short: "Add a keyword to a market",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		category, _ := cmd.Flags().GetString("category")
		results, _ := cmd.Flags().GetInt("results")

		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		existing, err := env.store.FindKeywordByText(cmd.Context(), market.ID, args[1])
		switch {
		case err == nil:
			fmt.Fprintf(cmd.ErrOrStderr(), "Keyword %q already exists in %s\n", existing.Text, market.Code)
			return env.report.Render([]models.Keyword{*existing})
		case !errors.Is(err, storage.ErrNotFound):
			return err
		}

		k := &models.Keyword{
			MarketID:         market.ID,
			Text:             args[1],
			Category:         category,
			ResultsPerSearch: results,
			Active:           true,
		}
		if err := env.store.CreateKeyword(cmd.Context(), k); err != nil {
			return err
		}
		return env.report.Render([]models.Keyword{*k})
	},
}

var keywordListCmd = &cobra.Command{
	Use:   "list [MARKET]",
	Short: "List a market's keywords",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		all, _ := cmd.Flags().GetBool("all")
		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		keywords, err := env.store.ListKeywords(cmd.Context(), market.ID, !all)
		if err != nil {
			return err
		}
		return env.report.Render(keywords)
	},
}

func setKeywordActive(use, short string, active bool) *cobra.Command {
	return &cobra.Command{
		Use:   use + " [ID]",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			if err := env.store.SetKeywordActive(cmd.Context(), id, active); err != nil {
				return err
			}
			k, err := env.store.GetKeyword(cmd.Context(), id)
			if err != nil {
				return err
			}
			return env.report.Render([]models.Keyword{*k})
		},
	}
}

var leadCmd = &cobra.Command{
	Use:   "lead",
	Short: "Inspect and review leads",
}

var leadListCmd = &cobra.Command{
	Use:   "list [MARKET]",
	Short: "List a market's leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		tabName, _ := cmd.Flags().GetString("tab")
		limit, _ := cmd.Flags().GetInt("limit")

		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		filter := storage.LeadFilter{MarketID: market.ID, Limit: limit}
		if tabName != "" {
			if filter.Tab, err = models.ParseTab(tabName); err != nil {
				return err
			}
		}
		leads, err := env.store.ListLeads(cmd.Context(), filter)
		if err != nil {
			return err
		}
		return env.report.Render(leads)
	},
}

var leadReviewCmd = &cobra.Command{
	Use:   "review [ID] [TAB]",
	Short: "Move a lead to another tab",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		tab, err := models.ParseTab(args[1])
		if err != nil {
			return err
		}
		lead, err := env.store.ReviewLead(cmd.Context(), id, tab)
		if err != nil {
			return fmt.Errorf("review lead %d: %w", id, err)
		}
		return env.report.Render([]models.Lead{*lead})
	},
}

var leadDeleteCmd = &cobra.Command{
	Use:   "delete [ID]",
	Short: "Delete a lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := env.store.DeleteLead(cmd.Context(), id); err != nil {
			return fmt.Errorf("delete lead %d: %w", id, err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Lead %d deleted\n", id)
		return nil
	},
}

var leadStatsCmd = &cobra.Command{
	Use:   "stats [MARKET]",
	Short: "Count a market's leads per tab",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		counts, err := env.store.CountLeadsByTab(cmd.Context(), market.ID)
		if err != nil {
			return err
		}
		return env.report.Render(counts)
	},
}

func init() {
	marketAddCmd.Flags().String("language", "es", "Search language of the market")
	marketListCmd.Flags().Bool("all", false, "Include inactive markets")
	marketCmd.AddCommand(
		marketAddCmd,
		marketListCmd,
		setMarketActive("enable", "Include a market in batch runs", true),
		setMarketActive("disable", "Exclude a market from batch runs", false),
		marketDeleteCmd,
	)

	keywordAddCmd.Flags().String("category", "", "Keyword category")
	keywordAddCmd.Flags().Int("results", 10, "Results requested per search (max 10)")
	keywordListCmd.Flags().Bool("all", false, "Include inactive keywords")
	keywordCmd.AddCommand(
		keywordAddCmd,
		keywordListCmd,
		setKeywordActive("enable", "Include a keyword in batch runs", true),
		setKeywordActive("disable", "Exclude a keyword from batch runs", false),
	)

	leadListCmd.Flags().String("tab", "", "Only leads in this tab")
	leadListCmd.Flags().Int("limit", 100, "Maximum leads to list")
	leadCmd.AddCommand(leadListCmd, leadReviewCmd, leadDeleteCmd, leadStatsCmd)
}
