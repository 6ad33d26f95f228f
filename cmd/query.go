// =============================================================================
// govfin - Query Command
// =============================================================================
//
// Reads materialized reports back from the report store.
//
// COMMAND USAGE:
//   govfin query report --type expenditure --scope local --state AL [--json]
//   govfin query entity 01201001000000 --year 2017
//   govfin query trend --type revenue --scope state --metric per_capita
//
// Local reports default to cities and townships; pass --gov-type all for
// every government type.
//
// =============================================================================

package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/ginjaninja78/govfin/internal/query"
	"github.com/ginjaninja78/govfin/internal/store"
	"github.com/ginjaninja78/govfin/internal/types"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	queryType     string
	queryScope    string
	queryState    string
	queryCategory string
	querySubcat   string
	queryGovType  string
	queryYear     int
	queryMetric   string
	queryYears    []int
	queryJSON     bool
)

// =============================================================================
// COMMAND DEFINITIONS
// =============================================================================

var queryCmd = &cobra.Command{
	Use:   "query",
	Short: "Query stored reports",
}

var queryReportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print the rows of a report",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *query.Service) error {
			rt, scope, err := reportSelection()
			if err != nil {
				return err
			}
			rows, err := svc.GetReport(cmd.Context(), rt, scope, queryFilters())
			if err != nil {
				return err
			}
			if queryJSON {
				return writeJSON(cmd.OutOrStdout(), rows)
			}
			return printRows(cmd.OutOrStdout(), rows)
		})
	},
}

var queryEntityCmd = &cobra.Command{
	Use:   "entity <id>",
	Short: "Print the directory profile of a government unit",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if queryYear == 0 {
			return fmt.Errorf("--year is required")
		}
		return withService(cmd.Context(), func(svc *query.Service) error {
			p, err := svc.GetEntityProfile(cmd.Context(), args[0], queryYear)
			if err != nil {
				return err
			}
			if queryJSON {
				return writeJSON(cmd.OutOrStdout(), p)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(w, "ID\t%s\n", p.EntityID)
			fmt.Fprintf(w, "Name\t%s\n", p.DisplayName)
			fmt.Fprintf(w, "State\t%s (%s)\n", p.StateName, p.StateAbbr)
			fmt.Fprintf(w, "County\t%s\n", p.CountyName)
			fmt.Fprintf(w, "Type\t%s\n", p.GovernmentType.Name())
			fmt.Fprintf(w, "Population\t%d\n", p.Population)
			fmt.Fprintf(w, "Enrollment\t%d\n", p.Enrollment)
			if p.SpecialDistrictType != "" {
				fmt.Fprintf(w, "Function\t%s\n", p.SpecialDistrictType)
			}
			return w.Flush()
		})
	},
}

var queryTrendCmd = &cobra.Command{
	Use:   "trend",
	Short: "Print the sparkline encoding of every report row",
	RunE: func(cmd *cobra.Command, args []string) error {
		return withService(cmd.Context(), func(svc *query.Service) error {
			rt, scope, err := reportSelection()
			if err != nil {
				return err
			}
			metric, err := types.ParseMetric(queryMetric)
			if err != nil {
				return err
			}
			lines, err := svc.GetTrends(cmd.Context(), rt, scope, queryFilters(), metric, queryYears)
			if err != nil {
				return err
			}
			if queryJSON {
				return writeJSON(cmd.OutOrStdout(), lines)
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ST\tName\tCategory\tDescription\tLevel\tTrend")
			for _, l := range lines {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
					l.StateAbbr, l.DisplayName, l.Key.Category, l.Key.Description, l.Key.Level, l.Trend)
			}
			return w.Flush()
		})
	},
}

func init() {
	rootCmd.AddCommand(queryCmd)
	queryCmd.AddCommand(queryReportCmd, queryEntityCmd, queryTrendCmd)

	for _, c := range []*cobra.Command{queryReportCmd, queryTrendCmd} {
		c.Flags().StringVar(&queryType, "type", "expenditure", "Report type: expenditure or revenue")
		c.Flags().StringVar(&queryScope, "scope", "local", "Report scope: state or local")
		c.Flags().StringVar(&queryState, "state", "", "Two-letter state abbreviation")
		c.Flags().StringVar(&queryCategory, "category", "", "Category name")
		c.Flags().StringVar(&querySubcat, "subcategory", "", "Line description")
		c.Flags().StringVar(&queryGovType, "gov-type", "", "county, city, township, special, school, all or a type code")
	}
	queryReportCmd.Flags().IntVar(&queryYear, "year", 0, "Survey year (default: every year)")
	queryEntityCmd.Flags().IntVar(&queryYear, "year", 0, "Survey year")
	queryTrendCmd.Flags().StringVar(&queryMetric, "metric", string(types.MetricAmount), "amount, per_capita or per_student")
	queryTrendCmd.Flags().IntSliceVar(&queryYears, "years", nil, "Trend years (default: every stored year)")

	queryCmd.PersistentFlags().BoolVar(&queryJSON, "json", false, "Print JSON")
}

// =============================================================================
// HELPER FUNCTIONS
// =============================================================================

// withService opens the store and optional cache for the duration of fn.
func withService(ctx context.Context, fn func(*query.Service) error) error {
	st, err := store.Open(ctx, appConfig.DatabasePath, logger)
	if err != nil {
		return err
	}
	defer st.Close()

	var cache *query.Cache
	if appConfig.RedisAddr != "" {
		client := redis.NewClient(&redis.Options{Addr: appConfig.RedisAddr})
		defer client.Close()
		cache = query.NewCache(client, appConfig.CacheTTL)
	}

	return fn(query.NewService(st, cache, logger))
}

func reportSelection() (types.ReportType, types.Scope, error) {
	rt, err := types.ParseReportType(queryType)
	if err != nil {
		return "", "", err
	}
	scope, err := types.ParseScope(queryScope)
	if err != nil {
		return "", "", err
	}
	return rt, scope, nil
}

func queryFilters() query.Filters {
	return query.Filters{
		State:          queryState,
		Category:       queryCategory,
		Subcategory:    querySubcat,
		GovernmentType: queryGovType,
		Year:           queryYear,
	}
}

func writeJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printRows(w io.Writer, rows []types.AggregatedReportRow) error {
	if len(rows) == 0 {
		fmt.Fprintln(os.Stderr, "no rows")
		return nil
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Year\tID\tST\tName\tLevel\tCategory\tLine\tDescription\tAmount\tPer capita\tPer student\t")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%d\t%s\t%s\t%s\t%s\t\n",
			r.Year, r.EntityID, r.StateAbbr, r.DisplayName, r.Level, r.Category, r.Line, r.Description,
			r.Amount.StringFixed(0), r.PerCapita.StringFixed(2), r.PerStudent.StringFixed(2))
	}
	return tw.Flush()
}
