package commands

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"conclave/internal/domain"
)

func trustCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "trust",
		Short: "Inspect and edit fingerprint trust",
	}
	cmd.AddCommand(trustListCmd(), trustShowCmd(), trustSetCmd(true), trustSetCmd(false))
	return cmd
}

func trustListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List known fingerprints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			recs, err := appCtx.Trust.Records()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "PETNAME\tFINGERPRINT\tVERIFIED")
			for _, r := range recs {
				fmt.Fprintf(tw, "%s\t%s\t%t\n", r.Petname, r.Fingerprint, r.Verified)
			}
			return tw.Flush()
		},
	}
}

func trustShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show <fingerprint>",
		Short: "Show the trust state of one fingerprint",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fp := domain.Fingerprint(args[0])
			name, known, err := appCtx.Trust.Petname(fp)
			if err != nil {
				return err
			}
			if !known {
				return fmt.Errorf("unknown fingerprint %s", fp)
			}
			verified, err := appCtx.Trust.IsVerified("", fp)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Petname: %s\nVerified: %t\n", name, verified)
			return nil
		},
	}
}

// trustSetCmd builds "verify" or "unverify". A non-empty petname replaces
// the stored label.
func trustSetCmd(verified bool) *cobra.Command {
	use, short := "unverify", "Mark a fingerprint unverified"
	if verified {
		use, short = "verify", "Mark a fingerprint verified"
	}
	var petname string
	cmd := &cobra.Command{
		Use:   use + " <fingerprint>",
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fp := domain.Fingerprint(args[0])
			if err := appCtx.Trust.SetVerified(domain.Petname(petname), fp, verified); err != nil {
				return err
			}
			state := "unverified"
			if verified {
				state = "verified"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s marked %s\n", fp, state)
			return nil
		},
	}
	cmd.Flags().StringVar(&petname, "petname", "", "label stored with the fingerprint")
	return cmd
}
