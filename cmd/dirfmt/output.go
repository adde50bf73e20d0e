package main

import (
	"fmt"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/jsvensson/dirfmt/internal/driver"
	"github.com/jsvensson/dirfmt/internal/policy"
)

var (
	failColor = color.New(color.FgRed, color.Bold)
	warnColor = color.New(color.FgYellow)
)

// printReport writes changed paths to stdout and problems to stderr.
func printReport(cmd *cobra.Command, p policy.Policy, report *driver.Report) {
	for _, res := range report.Results {
		printResult(cmd, p, res)
	}
}

func printResult(cmd *cobra.Command, p policy.Policy, res driver.Result) {
	switch res.Status {
	case driver.StatusFormatted, driver.StatusPromoted, driver.StatusRemoved:
		fmt.Fprintln(cmd.OutOrStdout(), res.Path)
	case driver.StatusFailed:
		failure(cmd, "%s: %v", res.Path, res.Err)
	case driver.StatusIntermediate:
		// Two-pass runs promote these instead.
		if !flagTwoPass && p.Intermediate(filepath.Base(res.Path)) {
			warnColor.Fprintf(cmd.ErrOrStderr(), "%s: left by an interrupted run, remove with 'dirfmt clean'\n", res.Path)
		}
	}
}

func failure(cmd *cobra.Command, format string, args ...any) {
	failColor.Fprintf(cmd.ErrOrStderr(), format+"\n", args...)
}
