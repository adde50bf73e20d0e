package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"
	"github.com/tliron/commonlog"

	_ "github.com/tliron/commonlog/simple"

	"github.com/jsvensson/dirfmt"
	"github.com/jsvensson/dirfmt/internal/driver"
	"github.com/jsvensson/dirfmt/internal/format"
	"github.com/jsvensson/dirfmt/internal/policy"
	"github.com/jsvensson/dirfmt/internal/watch"
)

var (
	flagRoot        string
	flagPolicy      string
	flagTwoPass     bool
	flagCheck       bool
	flagJobs        int
	flagFormatter   string
	flagVerbose     int
	flagQuiet       bool
	flagPolicyCheck bool
	version         = "dev" // Injected at build time via ldflags
)

// errReported means the problems were already printed; main only sets the
// exit status.
var errReported = errors.New("reported")

var rootCmd = &cobra.Command{
	Use:   "dirfmt",
	Short: "Run clang-format over the source directories of a tree",
	Long: "Format every eligible file in the policy directories in place. " +
		"Prints the path of each file that was modified.",
	Version:           version,
	Args:              cobra.NoArgs,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: configureLogging,
	RunE:              runFormat,
}

var cleanCmd = &cobra.Command{
	Use:   "clean",
	Short: "Remove intermediates and temporary files left by interrupted runs",
	Args:  cobra.NoArgs,
	RunE:  runClean,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Format files as they change until interrupted",
	Args:  cobra.NoArgs,
	RunE:  runWatch,
}

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Inspect and format policy files",
}

var policyFmtCmd = &cobra.Command{
	Use:   "fmt [files...]",
	Short: "Format policy files",
	Long: "Format policy files in-place. Without arguments the policy file in the root " +
		"directory is formatted. Prints the name of each file that was modified.",
	RunE: runPolicyFmt,
}

var policyShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective policy",
	Args:  cobra.NoArgs,
	RunE:  runPolicyShow,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Fprintln(cmd.OutOrStdout(), version)
	},
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&flagRoot, "root", ".", "root directory holding the policy directories")
	pf.StringVar(&flagPolicy, "policy", "", "path to policy HCL file (default <root>/"+dirfmt.PolicyFileName+")")
	pf.IntVarP(&flagJobs, "jobs", "j", 0, "files formatted concurrently (0 means one per CPU, default from policy)")
	pf.StringVar(&flagFormatter, "formatter", "", "formatter command line, overriding the policy")
	pf.CountVarP(&flagVerbose, "verbose", "v", "log more (can be repeated)")
	pf.BoolVarP(&flagQuiet, "quiet", "q", false, "log errors only")

	rootCmd.Flags().BoolVar(&flagTwoPass, "two-pass", false, "write intermediates for every file before replacing any")
	rootCmd.Flags().BoolVarP(&flagCheck, "check", "c", false, "check if files are formatted (do not write changes)")
	policyFmtCmd.Flags().BoolVarP(&flagPolicyCheck, "check", "c", false, "check if files are formatted (do not write changes)")

	policyCmd.AddCommand(policyFmtCmd)
	policyCmd.AddCommand(policyShowCmd)
	rootCmd.AddCommand(cleanCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(policyCmd)
	rootCmd.AddCommand(versionCmd)
}

func verbosity() int {
	if flagQuiet {
		return -1
	}
	return flagVerbose
}

func configureLogging(_ *cobra.Command, _ []string) error {
	commonlog.Configure(verbosity(), nil)
	return nil
}

// parseFormatter splits a command line such as "clang-format -style=file"
// into a formatter. Quoting is not supported.
func parseFormatter(s string) (policy.Formatter, error) {
	fields := strings.Fields(s)
	if len(fields) == 0 {
		return policy.Formatter{}, errors.New("--formatter must name a command")
	}
	return policy.Formatter{Command: fields[0], Args: fields[1:]}, nil
}

// loadPolicy layers the command line flags over the policy file.
func loadPolicy(cmd *cobra.Command) (policy.Policy, error) {
	p, err := dirfmt.Load(flagRoot, flagPolicy)
	if err != nil {
		return policy.Policy{}, err
	}
	if flagFormatter != "" {
		if p.Formatter, err = parseFormatter(flagFormatter); err != nil {
			return policy.Policy{}, err
		}
	}
	if cmd.Flags().Changed("jobs") {
		p.Jobs = flagJobs
	}
	if err := p.Validate(); err != nil {
		return policy.Policy{}, err
	}
	return p, nil
}

func newDriver(cmd *cobra.Command, opts ...driver.Option) (*driver.Driver, error) {
	p, err := loadPolicy(cmd)
	if err != nil {
		return nil, err
	}
	f := format.Command{Name: p.Formatter.Command, Args: p.Formatter.Args}
	opts = append([]driver.Option{driver.WithRoot(flagRoot)}, opts...)
	return driver.New(p, f, opts...), nil
}

func runFormat(cmd *cobra.Command, args []string) error {
	if flagTwoPass && flagCheck {
		return errors.New("--check cannot be combined with --two-pass")
	}

	d, err := newDriver(cmd, driver.WithCheck(flagCheck))
	if err != nil {
		return err
	}

	run := d.Run
	if flagTwoPass {
		run = d.RunTwoPass
	}
	report, err := run(cmd.Context())
	if report != nil {
		printReport(cmd, d.Policy(), report)
	}
	if err != nil {
		return err
	}

	if len(report.Failed()) > 0 || (flagCheck && len(report.Changed()) > 0) {
		return errReported
	}
	return nil
}

func runClean(cmd *cobra.Command, args []string) error {
	d, err := newDriver(cmd)
	if err != nil {
		return err
	}

	report, err := d.Clean(cmd.Context())
	if report != nil {
		printReport(cmd, d.Policy(), report)
	}
	if err != nil {
		return err
	}
	if len(report.Failed()) > 0 {
		return errReported
	}
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	d, err := newDriver(cmd, driver.WithLogger(commonlog.GetLogger("dirfmt.watch")))
	if err != nil {
		return err
	}

	w := watch.New(d, watch.WithResults(func(res driver.Result) {
		printResult(cmd, d.Policy(), res)
	}))
	return w.Watch(cmd.Context())
}

func runPolicyFmt(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{filepath.Join(flagRoot, dirfmt.PolicyFileName)}
	}

	hasErrors := false
	needsFormatting := false

	for _, path := range args {
		data, err := os.ReadFile(path)
		if err != nil {
			failure(cmd, "Error reading %s: %v", path, err)
			hasErrors = true
			continue
		}

		if diags := policy.Diagnose(data, path); diags.HasErrors() {
			failure(cmd, "Error parsing %s: %s", path, diags.Error())
			hasErrors = true
			continue
		}

		formatted := policy.FormatHCL(data)
		if string(formatted) == string(data) {
			continue
		}

		fmt.Fprintln(cmd.OutOrStdout(), path)
		needsFormatting = true

		if !flagPolicyCheck {
			if err := os.WriteFile(path, formatted, 0o644); err != nil {
				failure(cmd, "Error writing %s: %v", path, err)
				hasErrors = true
			}
		}
	}

	if hasErrors || (flagPolicyCheck && needsFormatting) {
		return errReported
	}
	return nil
}

func runPolicyShow(cmd *cobra.Command, args []string) error {
	p, err := loadPolicy(cmd)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(policy.Encode(p))
	return err
}

func main() {
	color.NoColor = os.Getenv("NO_COLOR") != "" || !isatty.IsTerminal(os.Stderr.Fd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()

	if err != nil {
		if !errors.Is(err, errReported) {
			failure(rootCmd, "dirfmt: %v", err)
		}
		os.Exit(1)
	}
}
