package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/amosWeiskopf/leadsmith/internal/logger"
	"github.com/amosWeiskopf/leadsmith/internal/models"
	"github.com/amosWeiskopf/leadsmith/internal/scheduler"
	"github.com/amosWeiskopf/leadsmith/pkg/crawler"
)

var searchCmd = &cobra.Command{
	Use:   "search",
	Short: "Run keyword searches",
}

var searchKeywordCmd = &cobra.Command{
	Use:   "keyword [ID]",
	Short: "Search a single keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		o, err := env.orchestrator()
		if err != nil {
			return err
		}
		result, err := o.RunSearch(cmd.Context(), id)
		if err != nil {
			return err
		}
		return env.report.Render(result)
	},
}

var searchMarketCmd = &cobra.Command{
	Use:   "market [MARKET]",
	Short: "Search every active keyword of a market",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		o, err := env.orchestrator()
		if err != nil {
			return err
		}
		stats, err := o.RunForMarket(cmd.Context(), market.ID)
		if err != nil {
			return err
		}
		return env.report.Render(stats)
	},
}

var searchAllCmd = &cobra.Command{
	Use:   "all",
	Short: "Search every active keyword of every active market",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		o, err := env.orchestrator()
		if err != nil {
			return err
		}
		stats, err := o.RunForAllMarkets(cmd.Context())
		if err != nil {
			return err
		}
		return env.report.Render(stats)
	},
}

var searchHistoryCmd = &cobra.Command{
	Use:   "history [MARKET]",
	Short: "Show a market's most recent search attempts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		audits, err := env.store.ListAudits(cmd.Context(), market.ID, limit)
		if err != nil {
			return err
		}
		return env.report.Render(audits)
	},
}

var contactsCmd = &cobra.Command{
	Use:   "contacts",
	Short: "Crawl lead websites for contact details",
}

var contactsLeadCmd = &cobra.Command{
	Use:   "lead [ID]",
	Short: "Extract contacts for one lead",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		e, err := env.enricher()
		if err != nil {
			return err
		}
		result, err := e.EnrichLead(cmd.Context(), id)
		if err != nil {
			return err
		}
		return env.report.Render(result)
	},
}

var contactsMarketCmd = &cobra.Command{
	Use:   "market [MARKET]",
	Short: "Extract contacts for a market's accepted leads",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		e, err := env.enricher()
		if err != nil {
			return err
		}
		stats, err := e.EnrichMarket(cmd.Context(), market.ID, limit)
		if err != nil {
			return err
		}
		return env.report.Render(stats)
	},
}

var suggestCmd = &cobra.Command{
	Use:   "suggest",
	Short: "Mine and manage keyword suggestions",
}

var suggestAnalyzeCmd = &cobra.Command{
	Use:   "analyze [MARKET]",
	Short: "Mine accepted leads' websites for keyword suggestions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		result, err := env.analyzer().AnalyzeAccepted(cmd.Context(), market, limit)
		if err != nil {
			return err
		}
		return env.report.Render(result)
	},
}

var suggestListCmd = &cobra.Command{
	Use:   "list [MARKET]",
	Short: "List pending suggestions by frequency",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		suggestions, err := env.store.ListSuggestions(cmd.Context(), market.ID, limit)
		if err != nil {
			return err
		}
		return env.report.Render(suggestions)
	},
}

var suggestShowCmd = &cobra.Command{
	Use:   "show [ID]",
	Short: "Show one suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		sg, err := env.store.GetSuggestion(cmd.Context(), id)
		if err != nil {
			return err
		}
		return env.report.Render([]models.KeywordSuggestion{*sg})
	},
}

var suggestIgnoreCmd = &cobra.Command{
	Use:   "ignore [ID]",
	Short: "Hide a suggestion",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		if err := env.store.IgnoreSuggestion(cmd.Context(), id); err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Suggestion %d ignored\n", id)
		return nil
	},
}

var suggestAddCmd = &cobra.Command{
	Use:   "add [ID]",
	Short: "Promote a suggestion to a search keyword",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := parseID(args[0])
		if err != nil {
			return err
		}
		kw, created, err := env.store.PromoteSuggestion(cmd.Context(), id)
		if err != nil {
			return err
		}
		env.log.Info("Suggestion promoted",
			logger.Int64("suggestion_id", id),
			logger.Int64("keyword_id", kw.ID),
			logger.Bool("created", created),
		)
		return env.report.Render([]models.Keyword{*kw})
	},
}

var suggestRankingCmd = &cobra.Command{
	Use:   "ranking [MARKET]",
	Short: "Show current keywords by results next to the top suggestions",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		limit, _ := cmd.Flags().GetInt("limit")
		market, err := env.market(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		keywords, err := env.store.ListKeywordsByResults(cmd.Context(), market.ID)
		if err != nil {
			return err
		}
		suggestions, err := env.store.RankSuggestions(cmd.Context(), market.ID, limit)
		if err != nil {
			return err
		}
		if err := env.report.Render(keywords); err != nil {
			return err
		}
		return env.report.Render(suggestions)
	},
}

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run the all-markets search on the configured cron schedule",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		spec, _ := cmd.Flags().GetString("spec")
		if spec == "" {
			spec = env.cfg.Scheduler.Spec
		}
		o, err := env.orchestrator()
		if err != nil {
			return err
		}
		s, err := scheduler.New(spec, o, env.log)
		if err != nil {
			return err
		}

		if runNow, _ := cmd.Flags().GetBool("run-now"); runNow {
			stats, err := s.RunNow(cmd.Context())
			if err != nil {
				return err
			}
			if err := env.report.Render(stats); err != nil {
				return err
			}
		}

		s.Start()
		<-cmd.Context().Done()
		s.Stop()

		if last := s.Last(); last != nil {
			env.log.Info("Last scheduled run",
				logger.String("run_id", last.RunID),
				logger.Time("finished_at", last.FinishedAt),
			)
		}
		return nil
	},
}

func init() {
	searchHistoryCmd.Flags().Int("limit", 20, "Maximum attempts to show")
	searchCmd.AddCommand(searchKeywordCmd, searchMarketCmd, searchAllCmd, searchHistoryCmd)

	contactsMarketCmd.Flags().Int("limit", crawler.DefaultEnrichLimit, "Maximum leads to process")
	contactsCmd.AddCommand(contactsLeadCmd, contactsMarketCmd)

	suggestAnalyzeCmd.Flags().Int("limit", 0, "Accepted leads to analyze (0 uses miner.batch_size)")
	suggestListCmd.Flags().Int("limit", 50, "Maximum suggestions to list")
	suggestRankingCmd.Flags().Int("limit", 30, "Maximum suggestions to rank")
	suggestCmd.AddCommand(suggestAnalyzeCmd, suggestListCmd, suggestShowCmd, suggestIgnoreCmd, suggestAddCmd, suggestRankingCmd)

	scheduleCmd.Flags().String("spec", "", "Cron expression overriding scheduler.spec")
	scheduleCmd.Flags().Bool("run-now", false, "Run once immediately before waiting for the schedule")
}
