package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"travelkit/catalog"
	"travelkit/core"
	"travelkit/recommend"
)

type rootOptions struct {
	snapshot string
	catalog  string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "travelkit",
		Short: "Travel score, levels, achievements and recommendations",
		Long: `travelkit evaluates a traveler's activity snapshot offline.

Snapshots are JSON or YAML files (use - for stdin). The catalog defaults to the
embedded destination and plan list.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.snapshot, "snapshot", "s", "", "activity snapshot file (JSON or YAML, - for stdin)")
	root.PersistentFlags().StringVarP(&opts.catalog, "catalog", "c", "", "catalog YAML file or directory")

	root.AddCommand(
		newScoreCmd(opts),
		newLevelCmd(),
		newAchievementsCmd(opts),
		newProfileCmd(opts),
		newRecommendCmd(opts),
		newValidateCmd(),
		newSchemaCmd(),
	)
	return root
}

func newScoreCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "score",
		Short: "Print the travel score of a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := opts.requireSnapshot(cmd)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"user_id":      snap.UserID,
				"travel_score": core.CalculateTravelScore(snap),
			})
		},
	}
}

func newLevelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "level [score]",
		Short: "Resolve the level and next milestone for a score, or list all levels",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				return writeJSON(cmd.OutOrStdout(), core.Levels())
			}
			score, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("score must be an integer: %w", err)
			}
			return writeJSON(cmd.OutOrStdout(), map[string]any{
				"score":     score,
				"level":     core.TravelerLevel(score),
				"milestone": core.NextMilestone(score),
			})
		},
	}
}

func newAchievementsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "achievements",
		Short: "List unlocked achievements, or every achievement without --snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := opts.loadSnapshot(cmd)
			if err != nil {
				return err
			}
			if snap == nil {
				return writeJSON(cmd.OutOrStdout(), core.DefaultEvaluator().Catalog())
			}
			return writeJSON(cmd.OutOrStdout(), core.GetAchievements(*snap))
		},
	}
}

func newProfileCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "profile",
		Short: "Print score, level, milestone and achievements of a snapshot",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			snap, err := opts.requireSnapshot(cmd)
			if err != nil {
				return err
			}
			return writeJSON(cmd.OutOrStdout(), core.BuildProfile(snap, nil))
		},
	}
}

func newRecommendCmd(opts *rootOptions) *cobra.Command {
	var (
		limit  int
		output string
	)
	cmd := &cobra.Command{
		Use:       "recommend destinations|plans",
		Short:     "Rank catalog entries for a snapshot, or by popularity without one",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"destinations", "plans"},
		RunE: func(cmd *cobra.Command, args []string) error {
			if output != "json" && output != "table" {
				return fmt.Errorf("unknown output %q (json or table)", output)
			}
			snap, err := opts.loadSnapshot(cmd)
			if err != nil {
				return err
			}
			cat, err := opts.loadCatalog()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			switch args[0] {
			case "destinations":
				ranked := recommend.Destinations(snap, cat.Destinations, limit)
				if output == "table" {
					return destinationTable(out, ranked)
				}
				return writeJSON(out, ranked)
			case "plans":
				ranked := recommend.Plans(snap, cat.Plans, limit)
				if output == "table" {
					return planTable(out, ranked)
				}
				return writeJSON(out, ranked)
			}
			return fmt.Errorf("unknown target %q (destinations or plans)", args[0])
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 6, "maximum number of results")
	cmd.Flags().StringVarP(&output, "output", "o", "json", "output format: json or table")
	return cmd
}

func (o *rootOptions) requireSnapshot(cmd *cobra.Command) (core.ActivitySnapshot, error) {
	snap, err := o.loadSnapshot(cmd)
	if err != nil {
		return core.ActivitySnapshot{}, err
	}
	if snap == nil {
		return core.ActivitySnapshot{}, fmt.Errorf("--snapshot is required for %s", cmd.Name())
	}
	return *snap, nil
}

// loadSnapshot returns nil when no snapshot flag was given.
func (o *rootOptions) loadSnapshot(cmd *cobra.Command) (*core.ActivitySnapshot, error) {
	if o.snapshot == "" {
		return nil, nil
	}
	var (
		data []byte
		err  error
	)
	if o.snapshot == "-" {
		data, err = io.ReadAll(cmd.InOrStdin())
	} else {
		data, err = os.ReadFile(o.snapshot)
	}
	if err != nil {
		return nil, fmt.Errorf("read snapshot: %w", err)
	}

	var snap core.ActivitySnapshot
	if strings.EqualFold(filepath.Ext(o.snapshot), ".json") {
		err = json.Unmarshal(data, &snap)
	} else {
		// YAML is a superset of JSON, so stdin accepts either.
		err = yaml.Unmarshal(data, &snap)
	}
	if err != nil {
		return nil, fmt.Errorf("parse snapshot %s: %w", o.snapshot, err)
	}
	return &snap, nil
}

func (o *rootOptions) loadCatalog() (*catalog.Catalog, error) {
	if o.catalog == "" {
		return catalog.Default(), nil
	}
	return catalog.Load(o.catalog)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func destinationTable(w io.Writer, ranked []core.RankedDestination) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tHYPE\tSCORE")
	for _, d := range ranked {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.0f%%\t%.1f\n", d.ID, d.Name, d.Type, d.HypePercentage, d.RecommendationScore)
	}
	return tw.Flush()
}

func planTable(w io.Writer, ranked []core.RankedPlan) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tDIFFICULTY\tBUDGET\tSCORE")
	for _, p := range ranked {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d-%d\t%.1f\n", p.ID, p.Title, p.Difficulty, p.Budget.Min, p.Budget.Max, p.RecommendationScore)
	}
	return tw.Flush()
}
