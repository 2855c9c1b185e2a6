package main

import (
	"fmt"
	"os"

	"github.com/ethpandaops/testoor/pkg/config"
	"github.com/ethpandaops/testoor/pkg/driver"
	"github.com/ethpandaops/testoor/pkg/reporter"
	"github.com/ethpandaops/testoor/pkg/runner"
	"github.com/spf13/cobra"
)

var listTestsCmd = &cobra.Command{
	Use:   "list-tests",
	Short: "List the test cases of the given suites",
	Long:  `Discover and print the qualified test case names of every given suite without executing anything.`,
	RunE:  listTests,
}

var listTargetsCmd = &cobra.Command{
	Use:   "list-targets",
	Short: "List the targets declared by the given suites",
	RunE:  listTargets,
}

func init() {
	rootCmd.AddCommand(listTestsCmd)
	rootCmd.AddCommand(listTargetsCmd)

	for _, cmd := range []*cobra.Command{listTestsCmd, listTargetsCmd} {
		cmd.Flags().StringSliceVarP(&suiteDirs, "suite-dir", "d", nil,
			"suite directory containing a suite manifest (can be repeated)")
		cmd.Flags().StringSliceVarP(&targets, "target", "t", nil,
			"target to resolve the test matrix against (can be repeated)")
		cmd.Flags().StringVar(&testFilter, "filter", "",
			"only list test cases whose qualified name contains this substring")
	}
}

func listTests(cmd *cobra.Command, args []string) error {
	r, err := buildListRunner()
	if err != nil {
		return err
	}

	return r.ListTests(cmd.Context())
}

func listTargets(cmd *cobra.Command, args []string) error {
	r, err := buildListRunner()
	if err != nil {
		return err
	}

	return r.ListTargets()
}

// buildListRunner assembles a runner for the read-only list commands.
// Listing never touches the output directory or the run index.
func buildListRunner() (runner.Runner, error) {
	if len(suiteDirs) == 0 {
		return nil, fmt.Errorf("at least one suite directory is required (use --suite-dir)")
	}

	settings := &config.Settings{
		SuiteDirs: suiteDirs,
		OutDir:    config.DefaultOutDir,
		Targets:   targets,
		Filter:    testFilter,
		Workers:   1,
	}

	r, err := runner.New(log, settings, driver.NewRegistry(log), reporter.NewConsole(os.Stdout), nil)
	if err != nil {
		return nil, err
	}

	for _, dir := range suiteDirs {
		if err := r.AddSuite(dir); err != nil {
			return nil, err
		}
	}

	return r, nil
}
