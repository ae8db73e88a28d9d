package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	datamineexporter "github.com/hellenic-development/datamine-exporter"
	"github.com/hellenic-development/datamine-exporter/pkg/config"
	"github.com/hellenic-development/datamine-exporter/pkg/exporter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

const version = "0.3.0"

type flags struct {
	envFile   string
	outputDir string
	format    string
	cacheDir  string
	list      bool

	downloadImages bool
	imageDir       string
	parallel       int

	exportIDs bool
	idPrefix  string
	idSuffix  string

	workbook string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(&flags{}).ExecuteContext(ctx); err != nil {
		color.New(color.FgRed).Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd(f *flags) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "datamine-exporter",
		Short:         "Export the datamine spreadsheet to JSON files",
		Long:          "Downloads the datamine spreadsheet from the Google Sheets API and writes every sheet tab to its own JSON file, optionally downloading the images referenced by cells",
		Version:       version,
		Args:          cobra.NoArgs,
		SilenceErrors: true,
		SilenceUsage:  true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd.Context(), cmd.OutOrStdout(), *f)
		},
	}

	rootCmd.Flags().StringVar(&f.envFile, "env-file", config.DefaultPath, "File defining API_KEY=<Google API key>")
	rootCmd.Flags().StringVarP(&f.outputDir, "output", "o", "export", "Output directory for the sheet files")
	rootCmd.Flags().StringVar(&f.format, "format", string(exporter.FormatGrid), "Sheet file contents: grid (raw grid data) or rows (one object per row)")
	rootCmd.Flags().StringVar(&f.cacheDir, "cache-dir", "", "Reuse the spreadsheet stored in this directory instead of downloading it again")
	rootCmd.Flags().BoolVar(&f.list, "list", false, "Print the sheet and column titles instead of exporting")
	rootCmd.Flags().BoolVar(&f.downloadImages, "dl-images", false, "Also download the images referenced by cells")
	rootCmd.Flags().StringVar(&f.imageDir, "image-dir", "images", "Image directory, relative to the output directory")
	rootCmd.Flags().IntVar(&f.parallel, "parallel", 5, "Maximum number of concurrent image downloads")
	rootCmd.Flags().BoolVar(&f.exportIDs, "export-ids", false, "Also write "+datamineexporter.UniqueEntryIDsFile)
	rootCmd.Flags().StringVar(&f.idPrefix, "id-prefix", "", "Prefix for every exported unique entry ID")
	rootCmd.Flags().StringVar(&f.idSuffix, "id-suffix", "", "Suffix for every exported unique entry ID")
	rootCmd.Flags().StringVar(&f.workbook, "xlsx", "", "Also save the spreadsheet as an .xlsx workbook at this path")

	return rootCmd
}

func (f flags) options(out io.Writer) datamineexporter.Options {
	return datamineexporter.Options{
		EnvFile:        f.envFile,
		CacheDir:       f.cacheDir,
		OutputDir:      f.outputDir,
		Format:         exporter.Format(f.format),
		List:           f.list,
		DownloadImages: f.downloadImages,
		ImageDir:       f.imageDir,
		Parallel:       f.parallel,
		ExportIDs:      f.exportIDs,
		IDPrefix:       f.idPrefix,
		IDSuffix:       f.idSuffix,
		WorkbookPath:   f.workbook,
		Logger:         &cliLogger{out: out},
	}
}

func run(ctx context.Context, out io.Writer, f flags) error {
	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)
	cyan := color.New(color.FgCyan)

	cyan.Fprintln(out, "\n📦 Datamine Exporter")
	cyan.Fprintln(out, "====================")
	cyan.Fprintln(out)

	result, err := datamineexporter.Run(ctx, f.options(out))
	if err != nil {
		return err
	}

	if f.list {
		fmt.Fprintln(out)
		fmt.Fprint(out, result.Listing)
		return nil
	}

	// Display export stats.
	cyan.Fprintln(out, "\n📊 Export Summary:")
	fmt.Fprintf(out, "  • Sheets: %d\n", len(result.Files))
	for _, file := range result.Files {
		fmt.Fprintf(out, "    - %s → %s\n", file.Title, file.Path)
	}
	if result.IDsPath != "" {
		fmt.Fprintf(out, "  • Unique entry IDs: %s\n", result.IDsPath)
	}
	if result.WorkbookPath != "" {
		fmt.Fprintf(out, "  • Workbook: %s\n", result.WorkbookPath)
	}
	if result.Images != nil {
		fmt.Fprintf(out, "  • Images: %d downloaded\n", len(result.Images.Assets))
		if n := len(result.Images.Errors); n > 0 {
			yellow.Fprintf(out, "  • Images: %d failed\n", n)
		}
	}

	green.Fprintf(out, "\n✨ Successfully exported %d sheet(s) to %s\n\n", len(result.Files), f.outputDir)
	return nil
}

// cliLogger implements datamineexporter.Logger with colored terminal output.
type cliLogger struct {
	out io.Writer
}

func (l *cliLogger) Infof(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(l.out, format+"\n", args...)
}

func (l *cliLogger) Warnf(format string, args ...any) {
	color.New(color.FgYellow).Fprintf(l.out, "⚠ "+format+"\n", args...)
}

func (l *cliLogger) Errorf(format string, args ...any) {
	color.New(color.FgRed).Fprintf(l.out, "✗ "+format+"\n", args...)
}
