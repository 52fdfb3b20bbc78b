package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dmitrijs2005/medreport/internal/client/client"
	"github.com/dmitrijs2005/medreport/internal/client/config"
	"github.com/spf13/cobra"
)

var version = "dev"

type globalFlags struct {
	configFile string
	server     string
	tokenFile  string
	timeout    time.Duration
}

// builder creates the App once flags are parsed. Tests swap it for one
// that returns an App over a fake API.
type builder func(cmd *cobra.Command, f *globalFlags) (*App, error)

func defaultBuilder(cmd *cobra.Command, f *globalFlags) (*App, error) {
	cfg, err := config.Load(f.configFile, os.LookupEnv)
	if err != nil {
		return nil, err
	}
	flags := cmd.Flags()
	if flags.Changed("server") {
		cfg.ServerURL = f.server
	}
	if flags.Changed("token-file") {
		cfg.TokenFile = f.tokenFile
	}
	if flags.Changed("timeout") {
		cfg.Timeout = f.timeout
	}

	api := client.New(cfg.ServerURL, cfg.Timeout)
	return NewApp(cfg, api, client.NewTokenFile(cfg.TokenFile), cmd.InOrStdin(), cmd.OutOrStdout())
}

// NewRootCommand returns the medreport command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(defaultBuilder)
}

func newRootCommand(build builder) *cobra.Command {
	var (
		f   globalFlags
		app *App
	)

	root := &cobra.Command{
		Use:   "medreport",
		Short: "MedReport CLI - analyze and track medical lab reports",
		Long: `MedReport CLI talks to a MedReport server. It can extract text from
scanned reports, have the AI summarize them, store the results and
compare lab values between your two latest reports.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			a, err := build(cmd, &f)
			if err != nil {
				return err
			}
			app = a
			return nil
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&f.configFile, "config", "c", "", "path to a JSON config file")
	pf.StringVarP(&f.server, "server", "a", "", "server base URL")
	pf.StringVar(&f.tokenFile, "token-file", "", "where the session token is stored")
	pf.DurationVar(&f.timeout, "timeout", 0, "request timeout")

	appFn := func() *App { return app }

	root.AddCommand(
		registerCmd(appFn),
		loginCmd(appFn),
		logoutCmd(appFn),
		deleteAccountCmd(appFn),
		reportsCmd(appFn),
		analyzeCmd(appFn),
		askCmd(appFn),
		ocrCmd(appFn),
		healthCmd(appFn),
	)
	return root
}

// Execute runs the CLI until it finishes or is interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		printError(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func printError(w io.Writer, err error) {
	fmt.Fprintf(w, "Error: %v\n", err)
	if d := client.RetryIn(err); d > 0 {
		fmt.Fprintf(w, "The request can be retried in %s.\n", d)
	}
}

func healthCmd(app func() *App) *cobra.Command {
	return &cobra.Command{
		Use:   "health",
		Short: "Check that the server is reachable",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a := app()
			if err := a.api.Health(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintf(a.out, "%s is up\n", a.config.ServerURL)
			return nil
		},
	}
}
