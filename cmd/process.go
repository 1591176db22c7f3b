// =============================================================================
// FBR Invoicer - Process Command
// =============================================================================
//
// This file defines the 'process' command, the main batch entry point. It
// turns every sales sheet in the input directory into FBR invoice payloads
// and, on request, submits them.
//
// COMMAND USAGE:
//   invoicer process [flags]
//
// FLAGS:
//   --file         : Process a single file instead of the input directory
//   --seller       : Seller profile id the invoices are issued under
//   --profile      : Force a mapping profile by code
//   --sheet        : Force a worksheet by name
//   --validate     : Send every invoice to the FBR validate endpoint
//   --post         : Send every invoice to the FBR post endpoint
//   --dry-run      : Read and normalize, but write and send nothing
//   --strict       : Treat validation warnings as errors before submitting
//   --row-meta     : Wrap each payload file with its row number and buyer
//   --prune-after  : Delete output archives older than this duration
//
// PROCESSING PIPELINE:
//   1. Load mapping profiles
//   2. Discover input sheets
//   3. For each file (concurrently):
//      a. Match a mapping profile and resolve the seller
//      b. Read the invoice sheet and detect the column mapping
//      c. Normalize every row into an invoice and re-check it locally
//      d. Write payload files and the Excel report
//      e. Validate or post, and bundle posted invoices into a zip
//   4. Archive cleanly processed inputs
//   5. Write the error log and the summary log
//
// =============================================================================

package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbr-invoicer/internal/config"
	"github.com/ginjaninja78/fbr-invoicer/internal/converter"
	"github.com/ginjaninja78/fbr-invoicer/internal/export"
	"github.com/ginjaninja78/fbr-invoicer/internal/fbr"
	"github.com/ginjaninja78/fbr-invoicer/internal/seller"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
	"github.com/ginjaninja78/fbr-invoicer/internal/validation"
	"github.com/ginjaninja78/fbr-invoicer/pkg/utils"
)

// =============================================================================
// COMMAND FLAGS
// =============================================================================

var (
	processFile     string
	processSellerID int64
	processProfile  string
	processSheet    string
	processValidate bool
	processPost     bool
	dryRun          bool
	strict          bool
	withRowMeta     bool
	pruneAfter      time.Duration
)

// =============================================================================
// PROCESS COMMAND DEFINITION
// =============================================================================

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Normalize sales sheets into FBR invoices",
	Long: `The process command scans the input directory for .xlsx, .xls and .csv
sheets, detects which column holds which invoice field, and turns every row
into an FBR invoice payload issued under the chosen seller.

Files are processed concurrently. A bad row never stops its sheet, and a bad
sheet never stops the run unless continue_on_error is false.

On success:
  - One JSON payload per invoice is written under the output directory
  - An Excel report lists every invoice and every row error
  - With --post, accepted invoices are bundled into Invoices_<NTN>_<date>.zip
  - The input is moved to the input archive when archive_inputs is set

On error:
  - Row and file errors are written to an error log
  - The input stays where it is`,

	RunE: func(cmd *cobra.Command, args []string) error {
		if processValidate && processPost {
			return errors.New("--validate and --post cannot be combined")
		}
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
		defer stop()
		return runProcess(ctx)
	},
}

func init() {
	rootCmd.AddCommand(processCmd)

	processCmd.Flags().StringVar(&processFile, "file", "", "Process a single file instead of the input directory")
	processCmd.Flags().Int64Var(&processSellerID, "seller", 0, "Seller profile id (defaults to the profile's or default_seller_id)")
	processCmd.Flags().StringVar(&processProfile, "profile", "", "Mapping profile code to use for every file")
	processCmd.Flags().StringVar(&processSheet, "sheet", "", "Worksheet name to read")
	processCmd.Flags().BoolVar(&processValidate, "validate", false, "Validate every invoice with FBR")
	processCmd.Flags().BoolVar(&processPost, "post", false, "Post every invoice to FBR")
	processCmd.Flags().BoolVar(&dryRun, "dry-run", false, "Read and normalize without writing or submitting anything")
	processCmd.Flags().BoolVar(&strict, "strict", false, "Do not submit invoices with validation warnings")
	processCmd.Flags().BoolVar(&withRowMeta, "row-meta", false, "Wrap payload files with row number and buyer name")
	processCmd.Flags().DurationVar(&pruneAfter, "prune-after", 0, "Delete output archives older than this (e.g. 720h)")
}

// =============================================================================
// FILE OUTCOME
// =============================================================================

// fileOutcome is everything the run learned about one input file.
type fileOutcome struct {
	path     string
	profile  *config.MappingProfile
	seller   types.SellerProfile
	result   *converter.Result
	checked  *validation.Result
	payloads []string
	report   string
	bulk     *fbr.BulkResult
	bundle   string
	errs     []utils.ErrorLogEntry
	err      error
}

func (o *fileOutcome) fail(kind string, err error) *fileOutcome {
	o.err = err
	o.errs = append(o.errs, utils.ErrorLogEntry{
		Timestamp:    time.Now(),
		FileName:     filepath.Base(o.path),
		ErrorType:    kind,
		ErrorMessage: err.Error(),
	})
	return o
}

// clean reports whether every row normalized and every submission succeeded.
func (o *fileOutcome) clean() bool {
	if o.err != nil || o.result == nil || o.result.Summary.FailureCount > 0 {
		return false
	}
	if o.checked != nil && !o.checked.IsValid {
		return false
	}
	return o.bulk == nil || o.bulk.FailureCount == 0
}

// =============================================================================
// MAIN PROCESSING FUNCTION
// =============================================================================

func runProcess(ctx context.Context) error {
	startTime := time.Now()

	// =========================================================================
	// STEP 1: LOAD PROFILES
	// =========================================================================

	fmt.Println("=== FBR Invoicer ===")

	profiles, err := config.LoadProfiles(mainConfig.ProfilesDir)
	if err != nil {
		return fmt.Errorf("failed to load mapping profiles: %w", err)
	}
	fmt.Printf("Loaded %d mapping profile(s)\n", len(profiles))

	var forced *config.MappingProfile
	if processProfile != "" {
		p, ok := profiles[processProfile]
		if !ok {
			return fmt.Errorf("unknown mapping profile %q", processProfile)
		}
		forced = p
	}

	store, err := openSellers()
	if err != nil {
		return err
	}
	defer store.Close()

	// =========================================================================
	// STEP 2: DISCOVER INPUT FILES
	// =========================================================================

	fm := utils.NewFileManager(mainConfig.InputDir, mainConfig.OutputDir, mainConfig.InputArchiveDir, mainConfig.OutputArchiveDir)
	fm.UseDateSubdirs = mainConfig.ArchiveDateSubdirs
	if err := fm.EnsureDirectories(); err != nil {
		return err
	}

	var inputFiles []string
	if processFile != "" {
		if !utils.FileExists(processFile) {
			return fmt.Errorf("file not found: %s", processFile)
		}
		inputFiles = []string{processFile}
	} else {
		inputFiles, err = fm.DiscoverInputFiles()
		if err != nil {
			return fmt.Errorf("failed to discover input files: %w", err)
		}
	}
	if len(inputFiles) == 0 {
		fmt.Println("No sales sheets found in the input directory.")
		return nil
	}
	fmt.Printf("Found %d file(s) to process\n", len(inputFiles))

	// =========================================================================
	// STEP 3: PROCESS FILES CONCURRENTLY
	// =========================================================================

	fmt.Println("Processing files...")

	client := fbr.NewClient(mainConfig.FBR)
	outcomes := make([]*fileOutcome, len(inputFiles))

	var wg sync.WaitGroup
	for i, file := range inputFiles {
		wg.Add(1)
		go func(i int, path string) {
			defer wg.Done()
			profile := forced
			if profile == nil {
				profile = config.MatchProfile(path, profiles)
			}
			outcomes[i] = processOne(ctx, store, client, path, profile)
		}(i, file)
	}
	wg.Wait()

	// =========================================================================
	// STEP 4: ARCHIVE AND COLLECT
	// =========================================================================

	summary := utils.ProcessingSummary{
		StartTime:   startTime,
		TotalFiles:  len(inputFiles),
		TotalAmount: decimal.Zero,
	}
	var errorLog []utils.ErrorLogEntry

	for _, o := range outcomes {
		name := filepath.Base(o.path)
		errorLog = append(errorLog, o.errs...)

		if o.err != nil {
			summary.FailedFiles++
			summary.FailedFilesList = append(summary.FailedFilesList, utils.FailedFileInfo{InputFile: o.path, ErrorMessage: o.err.Error()})
			fmt.Printf("  ✗ %s: %v\n", name, o.err)
			continue
		}

		sum := o.result.Summary
		info := utils.ProcessedFileInfo{
			InputFile:   o.path,
			Sheet:       o.result.SheetName,
			ReportFile:  o.report,
			Rows:        len(sum.Outcomes),
			Invoices:    sum.SuccessCount,
			Amount:      sum.TotalAmount,
			ProcessTime: o.result.Duration,
		}

		if !dryRun && mainConfig.ArchiveInputs && o.clean() && processFile == "" {
			archived, err := fm.ArchiveInputFile(o.path)
			if err != nil {
				log.Warn().Err(err).Str("file", name).Msg("could not archive input")
			} else {
				info.ArchivePath = archived
			}
		}

		summary.SuccessfulFiles++
		summary.TotalRows += info.Rows
		summary.Invoices += sum.SuccessCount
		summary.RowErrors += sum.FailureCount
		summary.TotalAmount = summary.TotalAmount.Add(sum.TotalAmount)
		if o.bulk != nil {
			summary.Submitted += o.bulk.SuccessCount
			summary.SubmitFailures += o.bulk.FailureCount
		}
		summary.ProcessedFiles = append(summary.ProcessedFiles, info)

		printOutcome(o)
	}
	summary.EndTime = time.Now()

	// =========================================================================
	// STEP 5: LOGS AND SUMMARY
	// =========================================================================

	fmt.Println("\n=== Processing Complete ===")
	fmt.Printf("Total files:     %d\n", summary.TotalFiles)
	fmt.Printf("Successful:      %d\n", summary.SuccessfulFiles)
	fmt.Printf("Failed:          %d\n", summary.FailedFiles)
	fmt.Printf("Invoices:        %d\n", summary.Invoices)
	fmt.Printf("Row errors:      %d\n", summary.RowErrors)
	fmt.Printf("Total amount:    %s\n", summary.TotalAmount.StringFixed(2))
	fmt.Printf("Time elapsed:    %s\n", summary.EndTime.Sub(startTime).Round(time.Millisecond))

	if !dryRun {
		if path, err := utils.WriteErrorLog(errorLog, mainConfig.OutputDir); err != nil {
			log.Error().Err(err).Msg("could not write error log")
		} else if path != "" {
			fmt.Printf("\nErrors have been logged to %s\n", path)
		}
		if _, err := utils.WriteSummaryLog(summary, mainConfig.OutputDir); err != nil {
			log.Error().Err(err).Msg("could not write summary log")
		}
		if pruneAfter > 0 {
			n, err := utils.CleanOldArchives(mainConfig.OutputArchiveDir, pruneAfter)
			if err != nil {
				log.Warn().Err(err).Msg("could not prune output archives")
			} else if n > 0 {
				fmt.Printf("Pruned %d old archive(s)\n", n)
			}
		}
	}

	if summary.FailedFiles > 0 && !mainConfig.ContinueOnError {
		return fmt.Errorf("%d file(s) failed", summary.FailedFiles)
	}
	return ctx.Err()
}

// =============================================================================
// PER-FILE PIPELINE
// =============================================================================

func processOne(ctx context.Context, store seller.Lookup, client fbr.Submitter, path string, profile *config.MappingProfile) *fileOutcome {
	o := &fileOutcome{path: path, profile: profile}
	flog := log.With().Str("file", filepath.Base(path)).Logger()

	sellerID := processSellerID
	if sellerID == 0 && profile != nil {
		sellerID = profile.SellerID
	}
	if sellerID == 0 {
		sellerID = mainConfig.DefaultSellerID
	}
	if sellerID == 0 {
		return o.fail("read", errors.New("no seller selected: use --seller, a profile seller_id or default_seller_id"))
	}
	s, err := store.Get(ctx, sellerID)
	if err != nil {
		return o.fail("read", err)
	}
	o.seller = s

	conv, err := converter.New(s, converter.Options{
		Profile:        profile,
		Sheet:          processSheet,
		MaxConcurrency: mainConfig.MaxConcurrency,
	})
	if err != nil {
		return o.fail("read", err)
	}

	res, err := conv.RunFile(ctx, path)
	var mErr *converter.MappingError
	switch {
	case errors.As(err, &mErr):
		return o.fail("mapping", err)
	case err != nil:
		return o.fail("read", err)
	}
	o.result = res
	for _, oc := range res.Summary.Outcomes {
		if !oc.OK() {
			o.errs = append(o.errs, utils.ErrorLogEntry{
				Timestamp:    time.Now(),
				FileName:     filepath.Base(path),
				ErrorType:    "row",
				ErrorMessage: oc.Error,
				RowNumber:    oc.RowNumber,
			})
		}
	}
	flog.Info().Int("invoices", res.Summary.SuccessCount).Int("errors", res.Summary.FailureCount).Msg("sheet normalized")

	o.checked = validation.NewValidator(validation.Options{TreatWarningsAsErrors: strict}).Batch(res.Summary.Results)
	for _, f := range o.checked.Errors {
		o.errs = append(o.errs, utils.ErrorLogEntry{
			Timestamp:    time.Now(),
			FileName:     filepath.Base(path),
			ErrorType:    "validation",
			ErrorMessage: f.Error(),
			RowNumber:    f.RowNumber,
		})
	}

	if dryRun {
		return o
	}

	stem := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	opts := export.DefaultPayloadOptions()
	opts.NameFormat = mainConfig.UUIDFormat
	opts.WithRowMeta = withRowMeta
	o.payloads, err = export.WritePayloads(filepath.Join(mainConfig.OutputDir, stem), res.Summary.Results, opts)
	if err != nil {
		return o.fail("write", err)
	}

	mode := submitMode()
	submittable := submittableRows(res.Summary.Results, o.checked)
	if mode != "" && len(submittable) > 0 {
		bulk, err := fbr.SubmitAll(ctx, client, mode, s.BearerToken, submittable)
		if err != nil && bulk == nil {
			return o.fail("submission", err)
		}
		o.bulk = bulk
		for _, sub := range bulk.Submissions {
			if !sub.Success {
				o.errs = append(o.errs, utils.ErrorLogEntry{
					Timestamp:    time.Now(),
					FileName:     filepath.Base(path),
					ErrorType:    "submission",
					ErrorMessage: fmt.Sprintf("%v", sub.Response),
					RowNumber:    sub.RowNumber,
					StatusCode:   sub.StatusCode,
				})
			}
		}
		if mode == fbr.ModePost && bulk.SuccessCount > 0 {
			o.bundle, err = writeBundle(s.NTNCNIC, bulk.Submissions)
			if err != nil {
				flog.Warn().Err(err).Msg("could not write invoice bundle")
			}
		}
	}

	var subs []fbr.Submission
	if o.bulk != nil {
		subs = o.bulk.Submissions
	}
	o.report = filepath.Join(mainConfig.OutputDir, stem+"_report.xlsx")
	if err := export.WriteReport(o.report, res.Summary, subs); err != nil {
		flog.Warn().Err(err).Msg("could not write report")
		o.report = ""
	}
	return o
}

// submittableRows drops the rows local validation flagged as invalid.
func submittableRows(results []types.RowResult, checked *validation.Result) []types.RowResult {
	if checked == nil || checked.IsValid {
		return results
	}
	invalid := make(map[int]bool, len(checked.InvalidRowNumbers))
	for _, n := range checked.InvalidRowNumbers {
		invalid[n] = true
	}
	out := make([]types.RowResult, 0, len(results))
	for _, r := range results {
		if !invalid[r.RowNumber] {
			out = append(out, r)
		}
	}
	return out
}

func submitMode() fbr.Mode {
	switch {
	case processPost:
		return fbr.ModePost
	case processValidate:
		return fbr.ModeValidate
	}
	return ""
}

func writeBundle(ntn string, subs []fbr.Submission) (string, error) {
	path := filepath.Join(mainConfig.OutputDir, export.BundleName(ntn, time.Now()))
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := export.BundleSubmissions(f, subs); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}

func printOutcome(o *fileOutcome) {
	sum := o.result.Summary
	fmt.Printf("  ✓ %s [%s] %d invoice(s), %d error(s), total %s\n",
		filepath.Base(o.path), o.result.SheetName, sum.SuccessCount, sum.FailureCount, sum.TotalAmount.StringFixed(2))
	if o.profile != nil {
		fmt.Printf("      profile: %s\n", o.profile.Name)
	}
	if len(o.payloads) > 0 {
		fmt.Printf("      seller %s: %d payload file(s) written\n", o.seller.NTNCNIC, len(o.payloads))
	}
	if o.checked != nil && !o.checked.IsValid {
		fmt.Printf("      local check: %d invalid row(s) held back\n", len(o.checked.InvalidRowNumbers))
	}
	if o.bulk != nil {
		fmt.Printf("      %s: %d accepted, %d rejected\n", o.bulk.Mode, o.bulk.SuccessCount, o.bulk.FailureCount)
	}
	if o.bundle != "" {
		fmt.Printf("      bundle: %s\n", o.bundle)
	}
	for _, e := range sum.Errors {
		fmt.Printf("      %s\n", e)
	}
}
