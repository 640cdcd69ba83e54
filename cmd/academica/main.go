// Package main provides the CLI entry point for academica.
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/fatih/color"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/eeyn/academica/pkg/academica"
	"github.com/eeyn/academica/pkg/academica/layout"
	"github.com/eeyn/academica/pkg/academica/models"
	"github.com/eeyn/academica/pkg/academica/report"
	"github.com/eeyn/academica/pkg/academica/store"
	"github.com/eeyn/academica/pkg/configuration"
)

var (
	dbPath      string
	layoutsPath string
	logLevel    string

	inputPath string
	sheet     string
	codesPath string
	anio      string
	periodo   string
	policy    string
	dryRun    bool
	jsonOut   bool

	fromYear  int
	toYear    int
	reportDir string

	conf *configuration.Configuration
)

func main() {
	rootCmd := newRootCmd()
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		color.Red("error: %v", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "academica",
		Short: "Import student-records exports into the academic database",
		Long: `academica parses the spreadsheet reports exported by the student-records
system, normalizes them and upserts them into a single SQLite database.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}
	rootCmd.PersistentFlags().StringVar(&dbPath, "db", "", "Database file (default: $ACADEMICA_DB_PATH)")
	rootCmd.PersistentFlags().StringVar(&layoutsPath, "layouts", "", "Layouts file (default: embedded layouts)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level: silent, error, warn, info, debug")

	importCmd := &cobra.Command{
		Use:   "import <table>",
		Short: "Import one report into a table",
		Args:  cobra.ExactArgs(1),
		RunE:  runImport,
	}
	importCmd.Flags().StringVarP(&inputPath, "input", "i", "", "Report file (.xlsx or .csv)")
	importCmd.Flags().StringVar(&sheet, "sheet", "", "Worksheet name (default: first sheet)")
	importCmd.Flags().StringVar(&codesPath, "codes", "", "Career codes csv (default: $ACADEMICA_CODES_PATH, then the carreras table)")
	importCmd.Flags().StringVar(&anio, "anio", "", "Academic year stamped on every record")
	importCmd.Flags().StringVar(&periodo, "periodo", "", "Period stamped on every record")
	importCmd.Flags().StringVar(&policy, "policy", "", "Override the conflict policy")
	importCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Parse and validate without writing")
	importCmd.Flags().BoolVar(&jsonOut, "json", false, "Print the result as JSON")
	_ = importCmd.MarkFlagRequired("input")

	yearsCmd := &cobra.Command{
		Use:   "academic-years",
		Short: "Populate the anio_academico table",
		Args:  cobra.NoArgs,
		RunE:  runAcademicYears,
	}
	yearsCmd.Flags().IntVar(&fromYear, "from", 1994, "First academic year")
	yearsCmd.Flags().IntVar(&toYear, "to", 2050, "Last academic year")

	reportCmd := &cobra.Command{
		Use:   "report",
		Short: "Regenerate the enrolment dashboard extracts",
		Args:  cobra.NoArgs,
		RunE:  runReport,
	}
	reportCmd.Flags().StringVarP(&reportDir, "output", "o", "", "Output directory (default: $ACADEMICA_REPORT_DIR)")

	layoutsCmd := &cobra.Command{
		Use:   "layouts",
		Short: "List the configured table layouts",
		Args:  cobra.NoArgs,
		RunE:  runLayouts,
	}

	rootCmd.AddCommand(importCmd, yearsCmd, reportCmd, layoutsCmd)
	return rootCmd
}

func setup(cmd *cobra.Command, args []string) error {
	c, err := configuration.Load(configuration.DefaultEnvFiles...)
	if err != nil {
		return err
	}
	if dbPath != "" {
		c.DBPath = dbPath
	}
	if layoutsPath != "" {
		c.LayoutsPath = layoutsPath
	}
	if logLevel != "" {
		if err := c.SetLogLevel(logLevel); err != nil {
			return err
		}
	}
	conf = c
	return nil
}

func loadLayouts() (*layout.Registry, error) {
	if conf.LayoutsPath != "" {
		return layout.LoadFile(conf.LayoutsPath)
	}
	return layout.Default()
}

func runImport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	reg, err := loadLayouts()
	if err != nil {
		return err
	}

	opts := academica.DefaultOptions(args[0], inputPath)
	opts.Sheet = sheet
	opts.Layouts = reg
	opts.DryRun = dryRun
	opts.Logger = conf.Logger()
	opts.CodesPath = codesPath
	if opts.CodesPath == "" {
		opts.CodesPath = conf.CodesPath
	}
	if anio != "" {
		opts.Metadata["anio"] = anio
	}
	if periodo != "" {
		opts.Metadata["periodo"] = periodo
	}
	if policy != "" {
		p, err := models.ParsePolicy(policy)
		if err != nil {
			return err
		}
		opts.Policy = &p
	}

	res, err := importTable(ctx, conf, opts)
	if err != nil {
		return err
	}
	if jsonOut {
		data, err := json.MarshalIndent(res, "", "  ")
		if err != nil {
			return errors.Wrap(err, "serialization failed")
		}
		fmt.Println(string(data))
		return nil
	}
	printResult(os.Stdout, res)
	return nil
}

// importTable checks opts before the store is opened, so a failed
// precondition leaves the database untouched. A dry run never creates the
// database: codes come from the codes file or from a read-only store.
func importTable(ctx context.Context, c *configuration.Configuration, opts academica.Options) (*models.Result, error) {
	l, err := academica.Validate(opts)
	if err != nil {
		return nil, err
	}
	storeCodes := academica.NeedsCodes(l) && opts.Codes == nil && opts.CodesPath == ""

	if opts.DryRun {
		if !storeCodes {
			return academica.Import(ctx, nil, opts)
		}
		st, err := store.OpenReadOnly(ctx, c.DBPath, c.Logger())
		if errors.Is(err, store.ErrNotFound) {
			return academica.Import(ctx, nil, opts)
		}
		if err != nil {
			return nil, err
		}
		defer st.Close()
		return academica.Import(ctx, st, opts)
	}

	if academica.NeedsCodes(l) && opts.Codes == nil && opts.CodesPath != "" {
		codes, err := academica.LoadCodesCSV(opts.CodesPath)
		if err != nil {
			return nil, academica.NewImportError(opts.Table, academica.StageReference, err)
		}
		opts.Codes = &codes
	}

	st, err := store.Open(ctx, c.DBPath, c.Logger())
	if err != nil {
		return nil, err
	}
	defer st.Close()
	return academica.Import(ctx, st, opts)
}

func runAcademicYears(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	st, err := store.Open(ctx, conf.DBPath, conf.Logger())
	if err != nil {
		return err
	}
	defer st.Close()

	stats, err := academica.ImportAcademicYears(ctx, st, fromYear, toYear)
	if err != nil {
		return err
	}
	printResult(os.Stdout, &models.Result{
		Table:  academica.AcademicYearsTable,
		Policy: string(models.PolicyInsertOrIgnore),
		Upsert: stats,
	})
	return nil
}

func runReport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	dir := reportDir
	if dir == "" {
		dir = conf.ReportDir
	}
	st, err := store.OpenReadOnly(ctx, conf.DBPath, conf.Logger())
	if err != nil {
		return err
	}
	defer st.Close()

	sum, err := report.Generate(ctx, st, dir, conf.Logger())
	if err != nil {
		return err
	}
	printReport(os.Stdout, sum)
	return nil
}

func runLayouts(cmd *cobra.Command, args []string) error {
	reg, err := loadLayouts()
	if err != nil {
		return err
	}
	color.Cyan("Layouts (version %d)", reg.Version)
	rows := make([][]string, 0, len(reg.Names()))
	for _, name := range reg.Names() {
		l, err := reg.Get(name)
		if err != nil {
			return err
		}
		rows = append(rows, []string{
			name,
			string(l.Source),
			l.Policy,
			strings.Join(l.NaturalKey, ", "),
			l.PartitionKey,
		})
	}
	printTable(os.Stdout, []string{"Table", "Source", "Policy", "Natural key", "Partition"}, rows)
	return nil
}
