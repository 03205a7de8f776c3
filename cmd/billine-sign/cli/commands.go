package cli

import (
	"errors"
	"fmt"

	"billine-gateway/internal/models"
	"billine-gateway/internal/signing"

	"github.com/spf13/cobra"
)

// ErrSignatureMismatch is returned by verify when the signature does not match.
var ErrSignatureMismatch = errors.New("signature mismatch")

// New builds the billine-sign root command.
func New() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "billine-sign",
		Short:        "Compute and check Billine request signatures.",
		SilenceUsage: true,
	}

	cmd.AddCommand(Canonical())
	cmd.AddCommand(Sign())
	cmd.AddCommand(Verify())
	return cmd
}

// Canonical prints the canonical string of a payload.
func Canonical() *cobra.Command {
	var signatureKey string

	cmd := &cobra.Command{
		Use:   "canonical [FILE]",
		Short: "Print the canonical string a payload is signed over.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), signing.Canonicalize(m.Fields().Without(signatureKey)))
			return err
		},
	}
	cmd.Flags().StringVarP(&signatureKey, "signature-key", "k", defaultSignatureKey,
		"name of the signature field, excluded from the canonical string")
	return cmd
}

// Sign prints the signature of a payload.
func Sign() *cobra.Command {
	o := &SignOptions{}

	cmd := &cobra.Command{
		Use:   "sign [FILE]",
		Short: "Sign a JSON payload.",
		Long: `Sign a JSON payload read from FILE or stdin.

    The signature field named by --signature-key is ignored if present, so
    an already signed request can be re-signed. The secret is read from
    $BILLINE_SECRET_KEY unless --secret-file is given.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := o.algorithm()
			if err != nil {
				return err
			}
			secret, err := o.secret()
			if err != nil {
				return err
			}
			m, err := readPayload(cmd, args)
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), signing.Sign(m.Fields().Without(o.SignatureKey), secret, alg))
			return err
		},
	}
	o.AddFlags(cmd, defaultSignatureKey)
	return cmd
}

// Verify checks the signature carried inside a payload.
func Verify() *cobra.Command {
	o := &SignOptions{}

	cmd := &cobra.Command{
		Use:   "verify [FILE]",
		Short: "Verify the signature carried in a JSON payload.",
		Long: `Verify the signature carried in a JSON payload read from FILE or stdin.

    Callbacks carry their signature in co_sign, which is the default here.
    Use --signature-key sign to check an outbound request instead.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			alg, err := o.algorithm()
			if err != nil {
				return err
			}
			secret, err := o.secret()
			if err != nil {
				return err
			}
			m, err := readPayload(cmd, args)
			if err != nil {
				return err
			}

			fields := m.Fields()
			v, ok := fields.Lookup(o.SignatureKey)
			if !ok || v.Kind() != signing.KindText {
				return fmt.Errorf("payload has no %s text field", o.SignatureKey)
			}
			signature, _ := v.Render()
			if !signing.Verify(fields.Without(o.SignatureKey), secret, alg, signature) {
				return ErrSignatureMismatch
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), "OK")
			return err
		},
	}
	o.AddFlags(cmd, models.CallbackSignatureKey)
	return cmd
}
