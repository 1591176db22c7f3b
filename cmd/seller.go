// =============================================================================
// FBR Invoicer - Seller Command
// =============================================================================
//
// COMMAND USAGE:
//   invoicer seller add    --ntn 1234567 --name "Acme" --province Sindh --address "Karachi" [--token T]
//   invoicer seller update --id 1 --ntn ... --name ... --province ... --address ... [--token T]
//   invoicer seller list
//   invoicer seller search <term>
//   invoicer seller show   <id>
//
// Bearer tokens are never printed.
//
// =============================================================================

package cmd

import (
	"fmt"
	"os"
	"strconv"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/ginjaninja78/fbr-invoicer/internal/types"
)

var (
	sellerInput types.SellerProfile
	sellerID    int64
)

var sellerCmd = &cobra.Command{
	Use:   "seller",
	Short: "Manage seller profiles",
}

var sellerAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a seller profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSellers()
		if err != nil {
			return err
		}
		defer store.Close()

		id, err := store.Register(cmd.Context(), sellerInput)
		if err != nil {
			return err
		}
		fmt.Printf("Registered seller %d: %s\n", id, sellerInput.BusinessName)
		return nil
	},
}

var sellerUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Replace a seller profile",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSellers()
		if err != nil {
			return err
		}
		defer store.Close()

		if err := store.Update(cmd.Context(), sellerID, sellerInput); err != nil {
			return err
		}
		fmt.Printf("Updated seller %d\n", sellerID)
		return nil
	},
}

var sellerListCmd = &cobra.Command{
	Use:   "list",
	Short: "List seller profiles, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSellers()
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.List(cmd.Context())
		if err != nil {
			return err
		}
		printSellers(list)
		return nil
	},
}

var sellerSearchCmd = &cobra.Command{
	Use:   "search <term>",
	Short: "Find sellers by name or NTN/CNIC",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		store, err := openSellers()
		if err != nil {
			return err
		}
		defer store.Close()

		list, err := store.Search(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		printSellers(list)
		return nil
	},
}

var sellerShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show one seller profile",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		id, err := strconv.ParseInt(args[0], 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seller id %q", args[0])
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
		s = s.Redacted()
		fmt.Printf("ID:        %d\n", s.ID)
		fmt.Printf("NTN/CNIC:  %s\n", s.NTNCNIC)
		fmt.Printf("Name:      %s\n", s.BusinessName)
		fmt.Printf("Province:  %s\n", s.Province)
		fmt.Printf("Address:   %s\n", s.Address)
		fmt.Printf("Token:     %s\n", valueOr(s.BearerToken, "(none)"))
		fmt.Printf("Created:   %s\n", s.CreatedAt.Format("2006-01-02 15:04:05"))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(sellerCmd)
	sellerCmd.AddCommand(sellerAddCmd, sellerUpdateCmd, sellerListCmd, sellerSearchCmd, sellerShowCmd)

	for _, c := range []*cobra.Command{sellerAddCmd, sellerUpdateCmd} {
		c.Flags().StringVar(&sellerInput.NTNCNIC, "ntn", "", "Seller NTN or CNIC")
		c.Flags().StringVar(&sellerInput.BusinessName, "name", "", "Seller business name")
		c.Flags().StringVar(&sellerInput.Province, "province", "", "Seller province")
		c.Flags().StringVar(&sellerInput.Address, "address", "", "Seller address")
		c.Flags().StringVar(&sellerInput.BearerToken, "token", "", "FBR bearer token")
	}
	sellerUpdateCmd.Flags().Int64Var(&sellerID, "id", 0, "Seller id to update")
	sellerUpdateCmd.MarkFlagRequired("id")
}

func printSellers(list []types.SellerProfile) {
	if len(list) == 0 {
		fmt.Println("No sellers found.")
		return
	}
	tw := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNTN/CNIC\tNAME\tPROVINCE\tTOKEN")
	for _, s := range list {
		token := "no"
		if s.BearerToken != "" {
			token = "yes"
		}
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\n", s.ID, s.NTNCNIC, s.BusinessName, s.Province, token)
	}
	tw.Flush()
}

func valueOr(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
