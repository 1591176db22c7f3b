// =============================================================================
// FBR Invoicer - Detect Command
// =============================================================================
//
// COMMAND USAGE:
//   invoicer detect --file sales.xlsx [--sheet Sales] [--profile code]
//
// Prints the column mapping detected for a sheet without normalizing any
// row: which header feeds which invoice field, which required fields are
// still unmapped, and fuzzy suggestions for the unmapped ones.
//
// =============================================================================

package cmd

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbr-invoicer/internal/config"
	"github.com/ginjaninja78/fbr-invoicer/internal/converter"
	"github.com/ginjaninja78/fbr-invoicer/internal/csvparser"
	"github.com/ginjaninja78/fbr-invoicer/internal/mapping"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

var (
	detectFile    string
	detectSheet   string
	detectProfile string
)

var detectCmd = &cobra.Command{
	Use:   "detect",
	Short: "Show the column mapping detected for a sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runDetect()
	},
}

func init() {
	rootCmd.AddCommand(detectCmd)

	detectCmd.Flags().StringVar(&detectFile, "file", "", "Sheet to inspect (.xlsx, .xls, .csv)")
	detectCmd.Flags().StringVar(&detectSheet, "sheet", "", "Worksheet name to read")
	detectCmd.Flags().StringVar(&detectProfile, "profile", "", "Mapping profile code to apply")
	detectCmd.MarkFlagRequired("file")
}

func runDetect() error {
	var profile *config.MappingProfile
	if detectProfile != "" {
		profiles, err := config.LoadProfiles(mainConfig.ProfilesDir)
		if err != nil {
			return fmt.Errorf("failed to load mapping profiles: %w", err)
		}
		p, ok := profiles[detectProfile]
		if !ok {
			return fmt.Errorf("unknown mapping profile %q", detectProfile)
		}
		profile = p
	}

	name, headers, rows, err := peekSheet(detectFile, profile)
	if err != nil {
		return err
	}

	var overrides map[types.CanonicalField]string
	if profile != nil {
		if overrides, err = profile.Overrides(); err != nil {
			return err
		}
	}
	m := mapping.DetectWithOverrides(headers, overrides)

	fmt.Printf("Sheet: %s (%d data rows)\n\n", name, rows)
	fmt.Println("Detected mapping:")
	for _, field := range types.AllFields() {
		header, ok := m.Header(field)
		if !ok {
			header = "-"
		}
		fmt.Printf("  %-28s %s\n", field.Label(), header)
	}

	missing := mapping.Missing(m, mapping.RequiredFields)
	if len(missing) == 0 {
		fmt.Println("\nAll required columns found.")
	} else {
		fmt.Printf("\nMissing required columns: %s\n", mapping.Labels(missing))
	}

	if sugg := mapping.Suggest(headers, m); len(sugg) > 0 {
		fmt.Println("\nSuggestions:")
		for _, s := range sugg {
			fmt.Printf("  %-28s %q (like %q)\n", s.Field.Label(), s.Header, s.Matched)
		}
	}

	if blocking := mapping.Missing(m, mapping.ProcessingRequired); len(blocking) > 0 {
		return errors.New("sheet cannot be processed: " + mapping.Labels(blocking))
	}
	return nil
}

// peekSheet returns the headers and data row count of the sheet that
// process would read. CSV files are streamed rather than loaded.
func peekSheet(path string, profile *config.MappingProfile) (string, []string, int, error) {
	if strings.EqualFold(filepath.Ext(path), ".csv") {
		settings := config.DefaultCSVSettings()
		if profile != nil {
			settings = profile.CSVSettings
		}
		p, err := csvparser.NewStreamingParser(path, settings)
		if err != nil {
			return "", nil, 0, err
		}
		defer p.Close()

		rows := 0
		for p.Next() {
			rows++
		}
		if err := p.Err(); err != nil {
			return "", nil, 0, err
		}
		return strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)), p.Headers(), rows, nil
	}

	conv, err := converter.New(types.SellerProfile{}, converter.Options{Profile: profile, Sheet: detectSheet})
	if err != nil {
		return "", nil, 0, err
	}
	sheet, err := conv.ReadSheet(path)
	if err != nil {
		return "", nil, 0, err
	}
	return sheet.Name, sheet.Headers, sheet.Len(), nil
}
