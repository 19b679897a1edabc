package main

import (
	"io"
	"os"
	"runtime/debug"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/isometry/ldap-entry/internal/action"
	"github.com/isometry/ldap-entry/internal/ldap"
	"github.com/isometry/ldap-entry/internal/reconcile"
)

var (
	checkMode bool
	verbose   bool
)

var rootCmd = &cobra.Command{
	Use:   "ldap-entry [args-file]",
	Short: "Ensure an LDAP entry exists with the desired attributes",
	Long: `ldap-entry is an idempotent leaf action for directory entries. It reads
one JSON parameter document (from the given file, or stdin when the
argument is omitted or "-"), ensures the target entry exists with the
desired attributes, and writes a JSON result document to stdout.

The entry is created when absent; when present, only the attributes whose
value sets differ are patched. Entries, values and attribute types are
never deleted.

Connection parameters (server_uri, start_tls, bind_dn, bind_pw, ...) may
also be supplied through LDAP_ENTRY_* environment variables; values in the
parameter document win.`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          run,
}

func init() {
	rootCmd.Flags().BoolVar(&checkMode, "check", false, "Compute the mutation list without applying it")
	rootCmd.Flags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging on stderr")
}

// Execute runs the root command. The result document has already been
// written by run; only the exit code is decided here.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	log, err := newLogger(verbose)
	if err != nil {
		return err
	}
	defer func() {
		_ = log.Sync()
	}()

	invocationID := uuid.NewString()
	log = log.With(zap.String("invocation_id", invocationID))

	var in io.Reader = cmd.InOrStdin()
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0])
		if err != nil {
			return reportFailure(cmd, log, invocationID, err)
		}
		defer f.Close()
		in = f
	}

	params, err := action.ParseParams(in)
	if err != nil {
		return reportFailure(cmd, log, invocationID, err)
	}

	// All input validation happens before any directory I/O.
	entry, err := params.DesiredEntry()
	if err != nil {
		return reportFailure(cmd, log, invocationID, err)
	}
	config, err := params.ConnectionConfig()
	if err != nil {
		return reportFailure(cmd, log, invocationID, err)
	}

	session := ldap.NewSession(config, log)
	defer session.Close()

	reconciler := reconcile.NewReconciler(session, log, checkMode)
	result, err := reconciler.Reconcile(entry)
	if err != nil {
		return reportFailure(cmd, log, invocationID, err)
	}

	log.Info("reconciliation complete",
		zap.String("dn", entry.DN),
		zap.Bool("changed", result.Changed),
		zap.Int("mutations", len(result.Results)))

	return action.WriteResult(cmd.OutOrStdout(), invocationID, result)
}

// reportFailure writes the fatal-error document to stdout and returns the
// cause so Execute exits non-zero.
func reportFailure(cmd *cobra.Command, log *zap.Logger, invocationID string, cause error) error {
	log.Error("operation failed", zap.Error(cause))
	if err := action.WriteFailure(cmd.OutOrStdout(), invocationID, cause, string(debug.Stack())); err != nil {
		return err
	}
	return cause
}

// newLogger builds a stderr logger; stdout is reserved for the result
// document.
func newLogger(verbose bool) (*zap.Logger, error) {
	config := zap.NewProductionConfig()
	if verbose {
		config = zap.NewDevelopmentConfig()
	} else {
		config.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	}
	config.OutputPaths = []string{"stderr"}
	config.ErrorOutputPaths = []string{"stderr"}
	return config.Build()
}
