package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/helixir/scholar-aggregator/internal/recommend"
	"github.com/helixir/scholar-aggregator/internal/search"
)

func newSearchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <query>",
		Short: "Search one or more sources and merge the results",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			sources, _ := cmd.Flags().GetStringSlice("sources")
			limit, _ := cmd.Flags().GetInt("limit")
			asJSON, _ := cmd.Flags().GetBool("json")

			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			papers, err := svc.Papers.Search(cmd.Context(), strings.Join(args, " "), sources, limit)
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), papers)
			}
			return writePapers(cmd.OutOrStdout(), papers)
		},
	}
	cmd.Flags().StringSlice("sources", nil, "sources to query (comma-separated); default source when empty")
	cmd.Flags().Int("limit", 10, "maximum number of results")
	cmd.Flags().Bool("json", false, "output results as JSON")
	return cmd
}

func newFetchCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch <id>",
		Short: "Fetch a single paper, falling back across sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")

			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			paper, err := svc.Papers.Fetch(cmd.Context(), args[0], source)
			if err != nil {
				return err
			}
			if paper == nil {
				return fmt.Errorf("paper %q not found", args[0])
			}
			return writeJSON(cmd.OutOrStdout(), paper)
		},
	}
	cmd.Flags().String("source", "", "source to try first")
	return cmd
}

func newFetchOrderCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "fetch-order <id>",
		Short: "Print the order in which sources would be tried for an id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			source, _ := cmd.Flags().GetString("source")

			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), svc.Papers.FetchOrder(args[0], source))
		},
	}
	cmd.Flags().String("source", "", "source to try first")
	return cmd
}

func newAdvancedCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "advanced <query>",
		Short: "Run a parsed, filtered and ranked search",
		Long: `advanced accepts inline field filters in the query, for example:

  scholarctl advanced 'graph neural networks author:"Kipf" year:2017'`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			semantic, _ := cmd.Flags().GetBool("semantic")
			rank, _ := cmd.Flags().GetString("rank")
			limit, _ := cmd.Flags().GetInt("limit")
			sources, _ := cmd.Flags().GetStringSlice("sources")
			asJSON, _ := cmd.Flags().GetBool("json")

			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			resp, err := svc.Advanced.AdvancedSearch(cmd.Context(), search.Request{
				Query:       strings.Join(args, " "),
				Sources:     sources,
				Limit:       limit,
				Semantic:    semantic,
				RankingMode: search.RankingMode(rank),
			})
			if err != nil {
				return err
			}
			if asJSON {
				return writeJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "found %d, %d after filters, showing %d (ranked by %s)\n",
				resp.TotalFound, resp.TotalFiltered, resp.TotalReturned, resp.Metadata.RankingMethod)
			return writePapers(cmd.OutOrStdout(), resp.Results)
		},
	}
	cmd.Flags().Bool("semantic", false, "expand the query with synonyms and recent years")
	cmd.Flags().String("rank", string(search.RankRelevance), "ranking: relevance, date or citations")
	cmd.Flags().Int("limit", search.DefaultLimit, "maximum number of results")
	cmd.Flags().StringSlice("sources", nil, "sources to query (comma-separated); all when empty")
	cmd.Flags().Bool("json", false, "output the full response as JSON")
	return cmd
}

func newParseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "parse <query>",
		Short: "Show how a query's inline filters are parsed",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			clean, filters := search.ParseQuery(strings.Join(args, " "))
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"clean_query": clean,
				"filters":     filters,
			})
		},
	}
}

func newRecommendCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "recommend",
		Short: "Recommend papers from liked papers and interests",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			user, _ := cmd.Flags().GetString("user")
			liked, _ := cmd.Flags().GetStringSlice("liked")
			read, _ := cmd.Flags().GetStringSlice("read")
			interests, _ := cmd.Flags().GetStringSlice("interests")
			algorithm, _ := cmd.Flags().GetString("algorithm")
			limit, _ := cmd.Flags().GetInt("limit")

			if len(liked) == 0 && len(read) == 0 && len(interests) == 0 {
				return errors.New("at least one of --liked, --read or --interests is required")
			}
			algo, err := recommend.ParseAlgorithm(algorithm)
			if err != nil {
				return err
			}

			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			resp, err := svc.Recommender.GetRecommendations(cmd.Context(), recommend.Request{
				UserID:      user,
				LikedPapers: liked,
				ReadPapers:  read,
				Interests:   interests,
				Limit:       limit,
				Algorithm:   algo,
			})
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), resp)
		},
	}
	cmd.Flags().String("user", "", "user id stamped on the recommendation event")
	cmd.Flags().StringSlice("liked", nil, "ids of liked papers")
	cmd.Flags().StringSlice("read", nil, "ids of read papers")
	cmd.Flags().StringSlice("interests", nil, "interest terms")
	cmd.Flags().String("algorithm", string(recommend.AlgorithmHybrid), "content, collaborative, citation or hybrid")
	cmd.Flags().Int("limit", recommend.DefaultLimit, "maximum number of recommendations")
	return cmd
}

func newSourcesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "List the registered sources in fallback order",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			return writeLines(cmd.OutOrStdout(), svc.Papers.AvailableSources())
		},
	}
}

func newCacheCmd(c *cli) *cobra.Command {
	cacheCmd := &cobra.Command{
		Use:   "cache",
		Short: "Maintain the search cache",
	}
	cacheCmd.AddCommand(&cobra.Command{
		Use:   "purge",
		Short: "Delete expired entries from the postgres cache",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := c.services(cmd)
			if err != nil {
				return err
			}
			if svc.Purger == nil {
				return errors.New("cache purge requires the postgres cache backend (--cache postgres)")
			}
			n, err := svc.Purger.PurgeExpired(cmd.Context())
			if err != nil {
				return fmt.Errorf("purge cache: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d expired entries\n", n)
			return nil
		},
	})
	return cacheCmd
}
