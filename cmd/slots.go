package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kilianp07/crewplan/app"
	"github.com/kilianp07/crewplan/core/model"
	"github.com/kilianp07/crewplan/core/scheduler"
	"github.com/kilianp07/crewplan/pkg/export"
)

var slotsOpts struct {
	item    string
	workers []string
	mode    string
	format  string
}

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Resolve a work item's duration and list candidate windows",
	RunE:  runSlots,
}

func init() {
	f := slotsCmd.Flags()
	f.StringVar(&slotsOpts.item, "item", "", "work item id (see catalog)")
	f.StringSliceVar(&slotsOpts.workers, "worker", nil, "worker email, repeatable")
	f.StringVar(&slotsOpts.mode, "mode", "", "parallelization mode: sequential, standard or fully_parallel")
	f.StringVar(&slotsOpts.format, "format", "json", "output format: json or csv")
	_ = slotsCmd.MarkFlagRequired("item")
	_ = slotsCmd.MarkFlagRequired("worker")
	rootCmd.AddCommand(slotsCmd)
}

func runSlots(cmd *cobra.Command, args []string) error {
	return withService(func(svc *app.Service) error {
		ctx := cmd.Context()
		p := svc.NewPlanner()
		mode := p.DefaultMode()
		if slotsOpts.mode != "" {
			m, ok := model.ParseParallelizationMode(slotsOpts.mode)
			if !ok {
				return fmt.Errorf("unknown mode %q", slotsOpts.mode)
			}
			mode = m
		}
		d, err := p.Resolve(ctx, slotsOpts.item, slotsOpts.workers, mode)
		if err != nil {
			return fmt.Errorf("resolve duration: %w", err)
		}
		res, err := p.Search(ctx, slotsOpts.item, slotsOpts.workers, d)
		if err != nil && !errors.Is(err, scheduler.ErrNoFeasibleSlot) {
			return fmt.Errorf("search: %w", err)
		}
		if errors.Is(err, scheduler.ErrNoFeasibleSlot) {
			_, _ = fmt.Fprintln(cmd.ErrOrStderr(), "no feasible slot in the horizon")
		}
		return export.Write(cmd.OutOrStdout(), slotsOpts.format, res)
	})
}
