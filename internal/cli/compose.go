package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/local/pagepress/internal/compose"
	"github.com/local/pagepress/internal/imaging"
	"github.com/local/pagepress/internal/layout"
	"github.com/local/pagepress/internal/pdfverify"
	"github.com/local/pagepress/internal/pdfwriter"
	"github.com/local/pagepress/internal/scan"
)

var (
	composePageSize string
	composeMargin   float64
	composeNoMargin bool
	composeVerify   bool
)

var composeCmd = &cobra.Command{
	Use:   "compose <input-dir> <output.pdf>",
	Short: "Compose all images in a directory into one PDF",
	Args:  cobra.ExactArgs(2),
	RunE:  runCompose,
}

func init() {
	composeCmd.Flags().StringVar(&composePageSize, "page-size", "", "page size preset: letter, legal, a4, a5 (default from PAGE_SIZE)")
	composeCmd.Flags().Float64Var(&composeMargin, "margin", 0, "margin in points on all sides (default from PAGE_MARGIN)")
	composeCmd.Flags().BoolVar(&composeNoMargin, "no-margins", false, "compose without margins")
	composeCmd.Flags().BoolVar(&composeVerify, "verify", false, "verify the written PDF page by page")
	rootCmd.AddCommand(composeCmd)
}

func runCompose(cmd *cobra.Command, args []string) error {
	inputDir, outputPath := args[0], args[1]

	if info, err := os.Stat(inputDir); err != nil || !info.IsDir() {
		return fmt.Errorf("directory %q does not exist", inputDir)
	}

	sizeName := composePageSize
	if sizeName == "" {
		sizeName = cfg.Page.Size
	}
	size, err := layout.ParsePageSize(sizeName)
	if err != nil {
		return err
	}

	margin, err := resolveMargin(cmd, os.Stdin, cmd.OutOrStdout())
	if err != nil {
		return err
	}
	area := layout.NewPageArea(size, margin)

	paths, err := scan.ListImages(inputDir)
	if err != nil {
		return err
	}
	if len(paths) == 0 {
		return fmt.Errorf("no image files found in %q", inputDir)
	}

	doc, err := pdfwriter.New(outputPath, area, pdfwriter.Options{MaxEdge: cfg.Page.MaxEdge})
	if err != nil {
		return err
	}

	bar := progressbar.NewOptions(len(paths),
		progressbar.OptionSetDescription("Composing pages"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("images"),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
	)

	comp := compose.New(imaging.NewProber())
	comp.OnPage = func(done, total int, _ compose.PageOutcome) { _ = bar.Add(1) }

	report, err := comp.Run(cmd.Context(), area, paths, doc)
	fmt.Fprintln(cmd.OutOrStdout())
	printReport(cmd.OutOrStdout(), report)
	if err != nil {
		if errors.Is(err, compose.ErrNoImages) {
			return fmt.Errorf("no image files found in %q", inputDir)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "\nPDF created successfully: %s (%d pages)\n", outputPath, report.PagesWritten)

	if composeVerify {
		diag, err := pdfverify.Verify(outputPath, report.PagesWritten)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Verified %d pages in %dms\n", diag.TotalPages, diag.DurationMs)
	}
	return nil
}

// resolveMargin decides the margin for this run. Explicit flags win; without
// one the user is asked, the way the tool always has.
func resolveMargin(cmd *cobra.Command, in io.Reader, out io.Writer) (float64, error) {
	if composeNoMargin {
		return 0, nil
	}
	if cmd.Flags().Changed("margin") {
		return composeMargin, nil
	}
	use, err := promptYesNo(in, out, "Would you like to add margins around the images? (yes/no): ")
	if err != nil {
		return 0, err
	}
	if !use {
		return 0, nil
	}
	return cfg.Page.Margin, nil
}

// promptYesNo asks until it gets yes/y/no/n, case-insensitive.
func promptYesNo(in io.Reader, out io.Writer, question string) (bool, error) {
	r := bufio.NewReader(in)
	for {
		fmt.Fprint(out, question)
		line, err := r.ReadString('\n')
		if err != nil && line == "" {
			return false, fmt.Errorf("read answer: %w", err)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "yes", "y":
			return true, nil
		case "no", "n":
			return false, nil
		}
		fmt.Fprintln(out, "Please enter 'yes' or 'no'")
		if err != nil {
			return false, fmt.Errorf("read answer: %w", err)
		}
	}
}

func printReport(out io.Writer, report *compose.Report) {
	if report == nil {
		return
	}
	for _, o := range report.Outcomes {
		switch o.Status {
		case compose.StatusWarning:
			fmt.Fprintf(out, "Warning: %s was cropped %.1f%% from bottom to fit page\n", o.Identifier, *o.OverflowPercent)
		case compose.StatusFailure:
			fmt.Fprintf(out, "Error processing %s: %s\n", o.Identifier, o.ErrorDetail)
		}
	}
	if report.Failures > 0 || report.Warnings > 0 {
		fmt.Fprintf(out, "%d warnings, %d failures out of %d images\n", report.Warnings, report.Failures, len(report.Outcomes))
	}
}
