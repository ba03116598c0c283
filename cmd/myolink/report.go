package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/banshee-data/myolink/internal/classifier"
	"github.com/banshee-data/myolink/internal/recorder"
	"github.com/banshee-data/myolink/internal/report"
)

type reportOptions struct {
	timingPath   string
	truthPath    string
	latencyPlot  string
	accuracyPlot string
}

func newReportCmd() *cobra.Command {
	var opts reportOptions
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Summarise a timing log",
		Long: `Report prints latency statistics and the prediction histogram of a timing log.

With --truth, the file lists the movements actually performed (one label per
line or comma separated); the sequence repeats over the log and cumulative
accuracy is reported.

Examples:
  myolink report --log performance_log.csv
  myolink report --truth session.labels --accuracy-plot accuracy.png`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runReport(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.timingPath, "log", "performance_log.csv", "timing log to read")
	cmd.Flags().StringVar(&opts.truthPath, "truth", "", "ground truth label sequence")
	cmd.Flags().StringVar(&opts.latencyPlot, "latency-plot", "", "write a processing time plot to this image file")
	cmd.Flags().StringVar(&opts.accuracyPlot, "accuracy-plot", "", "write a cumulative accuracy plot to this image file (needs --truth)")
	return cmd
}

func runReport(cmd *cobra.Command, opts reportOptions) error {
	f, err := os.Open(opts.timingPath)
	if err != nil {
		return fmt.Errorf("failed to open timing log: %w", err)
	}
	records, err := recorder.ReadTimingLog(f)
	f.Close()
	if err != nil {
		return fmt.Errorf("failed to read timing log %s: %w", opts.timingPath, err)
	}

	var truth []classifier.Label
	if opts.truthPath != "" {
		tf, err := os.Open(opts.truthPath)
		if err != nil {
			return fmt.Errorf("failed to open ground truth: %w", err)
		}
		truth, err = report.ParseLabels(tf)
		tf.Close()
		if err != nil {
			return fmt.Errorf("failed to read ground truth %s: %w", opts.truthPath, err)
		}
	}

	r, err := report.Build(records, truth)
	if err != nil {
		return err
	}
	if err := r.WriteText(cmd.OutOrStdout()); err != nil {
		return err
	}

	if opts.latencyPlot != "" {
		if err := r.SaveLatencyPlot(opts.latencyPlot); err != nil {
			return err
		}
	}
	if opts.accuracyPlot != "" {
		if err := r.SaveAccuracyPlot(opts.accuracyPlot); err != nil {
			return err
		}
	}
	return nil
}
