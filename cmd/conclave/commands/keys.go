package commands

import (
	"errors"
	"fmt"

	"github.com/mdp/qrterminal/v3"
	"github.com/spf13/cobra"

	"conclave/internal/crypto"
	"conclave/internal/services/trust"
)

func keygenCmd() *cobra.Command {
	var variant string
	cmd := &cobra.Command{
		Use:   "keygen",
		Short: "Generate a key pair and store it securely",
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := parseVariant(variant)
			if err != nil {
				return err
			}
			pair, err := appCtx.Keys.Generate(appCtx.Account(), kv)
			if errors.Is(err, trust.ErrKeyExists) {
				return fmt.Errorf("account %s already has a %s key", appCtx.Account(), kv)
			}
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Key pair created.\nFingerprint: %s\n", crypto.Fingerprint(pair.Public))
			return nil
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "group", "key variant: direct or group")
	return cmd
}

func fingerprintCmd() *cobra.Command {
	var (
		variant string
		qr      bool
	)
	cmd := &cobra.Command{
		Use:   "fingerprint",
		Short: "Print the local key fingerprint",
		RunE: func(cmd *cobra.Command, args []string) error {
			kv, err := parseVariant(variant)
			if err != nil {
				return err
			}
			fp, ok, err := appCtx.Keys.LocalFingerprint(appCtx.Account(), kv)
			if err != nil {
				return err
			}
			if !ok {
				return fmt.Errorf("no %s key for account %s; run keygen first", kv, appCtx.Account())
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Fingerprint: %s\n", fp)
			if qr {
				qrterminal.GenerateWithConfig(fp.String(), qrterminal.Config{
					Level:     qrterminal.M,
					Writer:    out,
					BlackChar: qrterminal.BLACK,
					WhiteChar: qrterminal.WHITE,
					QuietZone: 1,
				})
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&variant, "variant", "group", "key variant: direct or group")
	cmd.Flags().BoolVar(&qr, "qr", false, "also render the fingerprint as a QR code")
	return cmd
}

func migrateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Import legacy per-account keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			pair, ok, err := appCtx.Keys.MigrateLegacyThenLoad(appCtx.Account())
			if err != nil {
				return err
			}
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "No keys to migrate.")
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Direct key ready.\nFingerprint: %s\n", crypto.Fingerprint(pair.Public))
			return nil
		},
	}
}
