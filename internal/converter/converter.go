// =============================================================================
// FBR Invoicer - Converter Module
// =============================================================================
//
// This module drives one invoice sheet from raw rows to FBR payloads.
//
// PROCESSING PIPELINE:
//   1. Read the source file (xlsx/xls workbook or CSV)
//   2. Pick the sheet holding invoice rows
//   3. Detect the column mapping, then apply profile overrides
//   4. Refuse the batch if buyer_name or value_excl_st is unmapped
//   5. Apply profile transformations to each row
//   6. Normalize every row, collecting successes and labelled failures
//
// Writing payloads, reports and FBR submission happen downstream of the
// returned Result.
//
// =============================================================================

package converter

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"github.com/ginjaninja78/fbr-invoicer/internal/config"
	"github.com/ginjaninja78/fbr-invoicer/internal/csvparser"
	"github.com/ginjaninja78/fbr-invoicer/internal/logger"
	"github.com/ginjaninja78/fbr-invoicer/internal/mapping"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
	"github.com/ginjaninja78/fbr-invoicer/internal/xlsxparser"
)

// ErrMissingMapping is matched by every *MappingError.
var ErrMissingMapping = errors.New("required columns not found")

// MappingError reports the processing-required fields a sheet does not map.
type MappingError struct {
	Missing []types.CanonicalField
}

func (e *MappingError) Error() string {
	return fmt.Sprintf("Required columns not found: %s", mapping.Labels(e.Missing))
}

// Is makes errors.Is(err, ErrMissingMapping) true for any MappingError.
func (e *MappingError) Is(target error) bool {
	return target == ErrMissingMapping
}

// =============================================================================
// BATCH SUMMARY
// =============================================================================

// Summary aggregates the outcomes of one batch. Outcomes, Results and Errors
// are all in input row order.
type Summary struct {
	Outcomes     []types.RowOutcome
	Results      []types.RowResult
	Errors       []string
	SuccessCount int
	FailureCount int
	TotalAmount  decimal.Decimal
}

// ProcessRows normalizes rows one after another. Every row is attempted.
func ProcessRows(rows []map[string]string, m types.ColumnMapping, seller types.SellerProfile, today time.Time) *Summary {
	return processRows(rows, m, seller, today, nil, 1)
}

func processRows(rows []map[string]string, m types.ColumnMapping, seller types.SellerProfile, today time.Time, t *Transformer, workers int) *Summary {
	outcomes := make([]types.RowOutcome, len(rows))

	normalize := func(i int) {
		row := t.Apply(rows[i], m)
		res, err := NormalizeRow(row, m, seller, i, today)
		if err != nil {
			outcomes[i] = types.RowOutcome{RowNumber: i + 1, Error: err.Error()}
			return
		}
		outcomes[i] = types.RowOutcome{RowNumber: i + 1, Result: res}
	}

	if workers <= 1 || len(rows) < 2 {
		for i := range rows {
			normalize(i)
		}
	} else {
		// Each worker writes only its own slots, so outcomes keep input order.
		jobs := make(chan int)
		var wg sync.WaitGroup
		for w := 0; w < workers; w++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				for i := range jobs {
					normalize(i)
				}
			}()
		}
		for i := range rows {
			jobs <- i
		}
		close(jobs)
		wg.Wait()
	}

	return Summarize(outcomes)
}

// Summarize folds row outcomes into a Summary.
func Summarize(outcomes []types.RowOutcome) *Summary {
	s := &Summary{Outcomes: outcomes, TotalAmount: decimal.Zero}
	for _, o := range outcomes {
		if o.OK() {
			s.Results = append(s.Results, *o.Result)
			s.SuccessCount++
			s.TotalAmount = s.TotalAmount.Add(decimal.NewFromFloat(o.Result.Amount))
			continue
		}
		s.Errors = append(s.Errors, o.Error)
		s.FailureCount++
	}
	return s
}

// =============================================================================
// CONVERTER
// =============================================================================

// Options tune a Converter.
type Options struct {
	// Profile supplies overrides, transformations, a forced sheet and CSV
	// settings. May be nil.
	Profile *config.MappingProfile

	// Sheet forces a sheet by name. Takes precedence over Profile.Sheet.
	Sheet string

	// MaxConcurrency bounds the row workers. Values below 1 mean sequential.
	MaxConcurrency int

	// Now supplies the current date. Defaults to time.Now.
	Now func() time.Time
}

// Result is everything learned about one source file.
type Result struct {
	FilePath        string
	SheetName       string
	Headers         []string
	Mapping         types.ColumnMapping
	MissingRequired []types.CanonicalField
	Summary         *Summary
	Duration        time.Duration
}

// Converter turns sheets into invoices issued by one seller.
type Converter struct {
	seller      types.SellerProfile
	opts        Options
	overrides   map[types.CanonicalField]string
	transformer *Transformer
	log         zerolog.Logger
}

// New builds a Converter. Profile rules are compiled here so a bad profile
// fails before any row is read.
func New(seller types.SellerProfile, opts Options) (*Converter, error) {
	c := &Converter{
		seller: seller,
		opts:   opts,
		log:    logger.WithComponent("converter"),
	}
	if c.opts.Now == nil {
		c.opts.Now = time.Now
	}
	if p := opts.Profile; p != nil {
		overrides, err := p.Overrides()
		if err != nil {
			return nil, err
		}
		t, err := NewTransformer(p.TransformationRules)
		if err != nil {
			return nil, fmt.Errorf("profile %s: %w", p.Code, err)
		}
		c.overrides, c.transformer = overrides, t
		if c.opts.Sheet == "" {
			c.opts.Sheet = p.Sheet
		}
	}
	return c, nil
}

// RunFile reads filePath and processes its invoice sheet.
func (c *Converter) RunFile(ctx context.Context, filePath string) (*Result, error) {
	sheet, err := c.ReadSheet(filePath)
	if err != nil {
		return nil, err
	}
	res, err := c.Run(ctx, sheet)
	if res != nil {
		res.FilePath = filePath
	}
	return res, err
}

// ReadSheet loads the invoice sheet of filePath without processing it.
func (c *Converter) ReadSheet(filePath string) (*types.Sheet, error) {
	if strings.EqualFold(filepath.Ext(filePath), ".csv") {
		settings := config.DefaultCSVSettings()
		if c.opts.Profile != nil {
			settings = c.opts.Profile.CSVSettings
		}
		sheet, err := csvparser.Parse(filePath, settings)
		if err != nil {
			return nil, err
		}
		if sheet.Len() == 0 {
			return nil, xlsxparser.ErrNoData
		}
		return sheet, nil
	}

	wb, err := xlsxparser.Open(filePath)
	if err != nil {
		return nil, err
	}
	if c.opts.Sheet != "" {
		return wb.Sheet(c.opts.Sheet)
	}
	return xlsxparser.PickSheet(wb)
}

// Run maps and normalizes sheet. A *MappingError is returned, together with
// a Result carrying the detected mapping, when a processing-required field
// is unmapped; no row is normalized in that case.
func (c *Converter) Run(ctx context.Context, sheet *types.Sheet) (*Result, error) {
	start := time.Now()

	m := mapping.DetectWithOverrides(sheet.Headers, c.overrides)
	res := &Result{
		SheetName:       sheet.Name,
		Headers:         sheet.Headers,
		Mapping:         m,
		MissingRequired: mapping.Missing(m, mapping.RequiredFields),
	}

	c.log.Debug().
		Str("sheet", sheet.Name).
		Int("rows", sheet.Len()).
		Int("mapped", len(m)).
		Msg("column mapping detected")

	if missing := mapping.Missing(m, mapping.ProcessingRequired); len(missing) > 0 {
		return res, &MappingError{Missing: missing}
	}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	res.Summary = processRows(sheet.Rows, m, c.seller, c.opts.Now(), c.transformer, c.opts.MaxConcurrency)
	res.Duration = time.Since(start)

	c.log.Info().
		Str("sheet", sheet.Name).
		Int("succeeded", res.Summary.SuccessCount).
		Int("failed", res.Summary.FailureCount).
		Str("total", res.Summary.TotalAmount.StringFixed(2)).
		Dur("elapsed", res.Duration).
		Msg("sheet processed")

	return res, nil
}
