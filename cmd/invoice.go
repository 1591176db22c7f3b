// =============================================================================
// FBR Invoicer - Invoice Command
// =============================================================================
//
// COMMAND USAGE:
//   invoicer invoice validate --seller 1 --file invoice.yaml
//   invoicer invoice post     --seller 1 --file invoice.yaml
//
// Sends one hand-written invoice to FBR. The file holds the invoice in YAML
// using the payload field names (buyerBusinessName, items, ...). Seller
// fields come from the seller profile; totals are recomputed from the item
// amounts before anything is sent.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/ginjaninja78/fbr-invoicer/internal/fbr"
	"github.com/ginjaninja78/fbr-invoicer/internal/types"
	"github.com/ginjaninja78/fbr-invoicer/internal/validation"
)

var (
	invoiceSellerID int64
	invoiceFile     string
)

var invoiceCmd = &cobra.Command{
	Use:   "invoice",
	Short: "Validate or post a single invoice",
}

var invoiceValidateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate one invoice with FBR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInvoice(cmd, fbr.ModeValidate)
	},
}

var invoicePostCmd = &cobra.Command{
	Use:   "post",
	Short: "Post one invoice to FBR",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInvoice(cmd, fbr.ModePost)
	},
}

func init() {
	rootCmd.AddCommand(invoiceCmd)
	invoiceCmd.AddCommand(invoiceValidateCmd, invoicePostCmd)

	invoiceCmd.PersistentFlags().Int64Var(&invoiceSellerID, "seller", 0, "Seller profile id")
	invoiceCmd.PersistentFlags().StringVar(&invoiceFile, "file", "", "Invoice YAML file")
	invoiceCmd.MarkPersistentFlagRequired("file")
}

// loadInvoice reads an invoice YAML file.
func loadInvoice(path string) (types.Invoice, error) {
	var inv types.Invoice
	data, err := os.ReadFile(path)
	if err != nil {
		return inv, fmt.Errorf("failed to read invoice: %w", err)
	}
	if err := yaml.Unmarshal(data, &inv); err != nil {
		return inv, fmt.Errorf("failed to parse invoice: %w", err)
	}
	return inv, nil
}

func runInvoice(cmd *cobra.Command, mode fbr.Mode) error {
	inv, err := loadInvoice(invoiceFile)
	if err != nil {
		return err
	}

	id := invoiceSellerID
	if id == 0 {
		id = mainConfig.DefaultSellerID
	}
	store, err := openSellers()
	if err != nil {
		return err
	}
	defer store.Close()

	s, err := store.Get(cmd.Context(), id)
	if err != nil {
		return err
	}

	inv.ApplySeller(s)
	if inv.InvoiceType == "" {
		inv.InvoiceType = types.InvoiceTypeSale
	}
	if inv.InvoiceDate == "" {
		inv.InvoiceDate = time.Now().Format("2006-01-02")
	}
	for i := range inv.Items {
		inv.Items[i].Recompute()
	}

	findings := validation.ValidateInvoice(inv)
	if len(findings) > 0 {
		fmt.Print(validation.FormatErrors(findings))
	}
	if validation.HasErrors(findings) {
		return fmt.Errorf("invoice failed local validation")
	}
	if strings.TrimSpace(s.BearerToken) == "" {
		return fbr.ErrNoToken
	}

	resp := fbr.NewClient(mainConfig.FBR).Do(cmd.Context(), mode, s.BearerToken, inv)
	fmt.Printf("FBR %s: HTTP %d\n", mode, resp.StatusCode)
	if len(resp.Raw) > 0 {
		fmt.Println(string(resp.Raw))
	}
	if !resp.Success() {
		return fmt.Errorf("invoice rejected by FBR")
	}
	if mode == fbr.ModePost {
		if n := fbr.InvoiceNumber(resp.Body); n != "" {
			fmt.Printf("Invoice number: %s\n", n)
		}
	}
	return nil
}
