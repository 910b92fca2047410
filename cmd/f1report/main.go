package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"f1report/internal/config"
	"f1report/internal/di"
	"f1report/internal/models"
	"f1report/internal/service"

	"github.com/fatih/color"
	"github.com/olekukonko/tablewriter"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

const (
	ExitCodeOK            = 0
	ExitCodeSetupFailed   = 1
	ExitCodeReportsFailed = 2
)

const (
	FlagConfig = "config"
	FlagOnly   = "only"
	FlagPage   = "page"
	FlagStatus = "status"
)

var (
	cfgPath string

	bold   = color.New(color.Bold)
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
)

// exitError carries the process exit code out of a command.
type exitError struct {
	code int
}

func (e exitError) Error() string { return "exit code " + strconv.Itoa(e.code) }

func main() {
	rootCmd := &cobra.Command{
		Use:           "f1report",
		Short:         "Runs the race-result reports against the warehouse",
		Long:          "Runs the fixed catalog of race-result reports against the warehouse and saves their charts to one XLSX workbook",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVarP(&cfgPath, FlagConfig, "c", "", "configuration file path")

	rootCmd.AddCommand(newRunCmd(), newListCmd(), newHistoryCmd())

	if err := rootCmd.Execute(); err != nil {
		var exit exitError
		if errors.As(err, &exit) {
			os.Exit(exit.code)
		}
		red.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(ExitCodeSetupFailed)
	}
}

func loadConfig() (config.Config, error) {
	if cfgPath != "" {
		return config.LoadFile(cfgPath)
	}
	return config.Load()
}

// startApp builds the dependency graph and fills targets from it.
func startApp(ctx context.Context, targets ...interface{}) (*fx.App, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}

	app := fx.New(
		fx.NopLogger,
		fx.Supply(cfg),
		di.Core,
		fx.Populate(targets...),
	)
	if err := app.Start(ctx); err != nil {
		return nil, err
	}
	return app, nil
}

func stopApp(app *fx.App) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := app.Stop(ctx); err != nil {
		logrus.WithError(err).Warn("Ошибка при завершении работы")
	}
}

func newRunCmd() *cobra.Command {
	var only []string
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the report catalog and save the workbook",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			var (
				runner *service.Runner
				cfg    config.Config
			)
			app, err := startApp(ctx, &runner, &cfg)
			if err != nil {
				return err
			}
			defer stopApp(app)

			if len(only) == 0 {
				only = cfg.Runner.Reports
			}
			run, err := runner.Run(ctx, service.RunOptions{Only: only})
			if run != nil {
				printRun(cmd.OutOrStdout(), run)
			}
			if err != nil {
				red.Fprintf(cmd.ErrOrStderr(), "Run failed: %v\n", err)
			}

			if code := service.ExitCode(run, err); code != ExitCodeOK {
				return exitError{code: code}
			}
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&only, FlagOnly, nil, "comma-separated report names to run (default: all)")
	return cmd
}

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the report catalog",
		RunE: func(cmd *cobra.Command, args []string) error {
			var runner *service.Runner
			app, err := startApp(cmd.Context(), &runner)
			if err != nil {
				return err
			}
			defer stopApp(app)

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"#", "Name", "Chart", "Title"})
			table.SetAutoWrapText(false)
			for i, def := range runner.Catalog() {
				table.Append([]string{strconv.Itoa(i + 1), def.Name, string(def.Chart), def.Title})
			}
			table.Render()
			return nil
		},
	}
}

func newHistoryCmd() *cobra.Command {
	var (
		page   int
		status string
	)
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent runs from the run history database",
		RunE: func(cmd *cobra.Command, args []string) error {
			var history service.RunRepository
			app, err := startApp(cmd.Context(), &history)
			if err != nil {
				return err
			}
			defer stopApp(app)

			params := service.ListRunParams{Page: page}
			if status != "" {
				st := models.RunStatus(status)
				params.Status = &st
			}
			list, err := service.ListRuns(cmd.Context(), history, params)
			if err != nil {
				return err
			}

			table := tablewriter.NewWriter(cmd.OutOrStdout())
			table.SetHeader([]string{"Run", "Started", "Status", "Failed", "File"})
			for _, run := range list.Runs {
				table.Append([]string{
					run.ID,
					run.StartedAt.Local().Format(time.DateTime),
					string(run.Status),
					fmt.Sprintf("%d/%d", run.Failed(), len(run.Reports)),
					run.FileKey,
				})
			}
			table.Render()
			bold.Fprintf(cmd.OutOrStdout(), "Page %d of %d, %d runs\n", list.Page, list.TotalPages, list.Total)
			return nil
		},
	}
	cmd.Flags().IntVar(&page, FlagPage, 1, "page number")
	cmd.Flags().StringVar(&status, FlagStatus, "", "filter by run status")
	return cmd
}

// printRun prints one line per report and the run summary.
func printRun(w io.Writer, run *models.Run) {
	if len(run.Reports) > 0 {
		table := tablewriter.NewWriter(w)
		table.SetHeader([]string{"#", "Report", "Chart", "Status", "Rows", "Time", "Error"})
		table.SetAutoWrapText(false)
		for _, res := range run.Reports {
			table.Append([]string{
				strconv.Itoa(res.Position),
				res.Name,
				res.Chart,
				string(res.Status),
				strconv.Itoa(res.Rows),
				(time.Duration(res.DurationMs) * time.Millisecond).String(),
				res.Error,
			})
		}
		table.Render()
	}

	bold.Fprintf(w, "Run %s: ", run.ID)
	switch run.Status {
	case models.RunStatusSucceeded:
		green.Fprintln(w, run.Status)
	case models.RunStatusPartial:
		yellow.Fprintf(w, "%s (%d of %d reports failed)\n", run.Status, run.Failed(), len(run.Reports))
	default:
		red.Fprintln(w, run.Status)
	}
	if run.HasFile() {
		fmt.Fprintf(w, "Workbook: %s\n", run.FileKey)
	}
	if run.Error != "" {
		red.Fprintf(w, "Error: %s\n", run.Error)
	}
	if run.Warning != "" {
		yellow.Fprintf(w, "Warning: %s\n", run.Warning)
	}
}
