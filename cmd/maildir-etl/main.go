package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/enrondata/maildir-etl/internal/core"
	"github.com/enrondata/maildir-etl/internal/di"
	"github.com/enrondata/maildir-etl/internal/pipeline"
)

func main() {
	flags := &di.CLIFlags{}

	rootCmd := &cobra.Command{
		Use:   "maildir-etl",
		Short: "Extract a deduplicated, identity-resolved dataset from a maildir corpus",
		RunE: func(cmd *cobra.Command, args []string) error {
			container, err := di.BuildContainer(flags)
			if err != nil {
				return fmt.Errorf("failed to build dependency container: %w", err)
			}
			return container.Invoke(run)
		},
	}

	rootCmd.Flags().StringVarP(&flags.InputDir, "input-dir", "i", "./maildir", "Root of the maildir tree to process")
	rootCmd.Flags().StringVarP(&flags.OutputDir, "output-dir", "o", "./output", "Directory for the produced dataset")
	rootCmd.Flags().StringArrayVar(&flags.Exclude, "exclude", nil, "Input-relative file path to skip (repeatable)")
	rootCmd.Flags().IntVarP(&flags.Workers, "workers", "w", 0, "Parse workers (0 = one per CPU)")
	rootCmd.Flags().StringVar(&flags.StoreType, "store", "sqlite", "Dataset store backend (memory, sqlite, mysql)")
	rootCmd.Flags().StringVar(&flags.SQLitePath, "sqlite-path", "", "SQLite database path (defaults to <output-dir>/maildir.db)")
	rootCmd.Flags().StringVar(&flags.MySQLDSN, "mysql-dsn", "", "MySQL DSN for the mysql store backend")
	rootCmd.Flags().IntVar(&flags.MaxDepth, "max-depth", 10, "Maximum quoted-message chain depth per file")
	rootCmd.Flags().BoolVarP(&flags.Verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.Flags().BoolVar(&flags.JSONLog, "json-log", false, "Output logs in JSON format")
	rootCmd.Flags().StringVarP(&flags.ConfigFile, "config", "c", "", "Path to config file (overrides command line flags)")

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run is the main application function that gets all dependencies injected
func run(logger *zap.Logger, p *pipeline.Pipeline, dataset core.DatasetStore) error {
	defer logger.Sync()
	defer func() {
		if err := dataset.Close(); err != nil {
			logger.Error("Failed to close dataset store", zap.Error(err))
		}
	}()

	stats, err := p.Run(context.Background())
	if err != nil {
		logger.Error("Extraction run failed", zap.Error(err))
		return err
	}

	fmt.Printf("files scanned:    %d\n", stats.FilesScanned)
	fmt.Printf("files excluded:   %d\n", stats.FilesExcluded)
	fmt.Printf("files failed:     %d\n", stats.FilesFailed)
	fmt.Printf("messages:         %d\n", stats.Messages)
	fmt.Printf("duplicates:       %d\n", stats.Duplicates)
	fmt.Printf("truncated chains: %d\n", stats.TruncatedChains)
	fmt.Printf("persons:          %d\n", stats.Persons)
	fmt.Printf("groups:           %d\n", stats.Groups)
	fmt.Printf("unresolved:       %d\n", stats.Unresolved)
	return nil
}
