// =============================================================================
// FBR Invoicer - Main Entry Point
// =============================================================================
//
// USAGE:
//   invoicer detect     - Show the column mapping detected for a sheet
//   invoicer process    - Normalize every sheet in the input directory
//   invoicer invoice    - Validate or post a single invoice
//   invoicer seller     - Manage seller profiles
//   invoicer serve      - Start the HTTP API
//   invoicer version    - Display the application version
//
// ARCHITECTURE:
//   - cmd/           : CLI command definitions (Cobra)
//   - internal/      : Mapping, normalization, FBR client, storage, API
//   - pkg/           : Shared file management utilities
//   - profiles/      : Mapping profiles for known spreadsheet layouts
//
// =============================================================================

package main

import (
	"github.com/ginjaninja78/fbr-invoicer/cmd"
)

func main() {
	cmd.Execute()
}
