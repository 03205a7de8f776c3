package cli

import (
	"fmt"
	"io"
	"os"
	"strings"

	"billine-gateway/internal/clients/billine"
	"billine-gateway/internal/signing"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of environment variables read by the CLI.
const EnvPrefix = "BILLINE"

const defaultSignatureKey = billine.SignatureKey

// SignOptions are the flags shared by sign and verify.
type SignOptions struct {
	Algorithm    string
	SecretFile   string
	SignatureKey string
}

// AddFlags registers the signing flags on cmd.
func (o *SignOptions) AddFlags(cmd *cobra.Command, defaultKey string) {
	cmd.Flags().StringVarP(&o.Algorithm, "algorithm", "a", "sha256",
		"signature digest: md5 or sha256")
	cmd.Flags().StringVar(&o.SecretFile, "secret-file", "",
		"read the merchant secret from this file instead of $"+EnvPrefix+"_SECRET_KEY")
	cmd.Flags().StringVarP(&o.SignatureKey, "signature-key", "k", defaultKey,
		"name of the signature field, excluded from the canonical string")
}

func (o *SignOptions) algorithm() (signing.Algorithm, error) {
	return signing.ParseAlgorithm(o.Algorithm)
}

// secret resolves the merchant secret from --secret-file or the environment.
func (o *SignOptions) secret() (signing.Secret, error) {
	if o.SecretFile != "" {
		data, err := os.ReadFile(o.SecretFile)
		if err != nil {
			return signing.Secret{}, fmt.Errorf("reading secret file: %w", err)
		}
		key := strings.TrimRight(string(data), "\r\n")
		if key == "" {
			return signing.Secret{}, fmt.Errorf("secret file %s is empty", o.SecretFile)
		}
		return signing.NewSecret(key), nil
	}

	v := viper.New()
	v.SetEnvPrefix(EnvPrefix)
	if err := v.BindEnv("secret_key"); err != nil {
		return signing.Secret{}, err
	}
	key := v.GetString("secret_key")
	if key == "" {
		return signing.Secret{}, fmt.Errorf("no secret: set $%s_SECRET_KEY or --secret-file", EnvPrefix)
	}
	return signing.NewSecret(key), nil
}

// readPayload loads a JSON object from the named file, or from stdin when no
// file or "-" is given.
func readPayload(cmd *cobra.Command, args []string) (signing.Map, error) {
	var (
		raw []byte
		err error
	)
	if len(args) == 0 || args[0] == "-" {
		raw, err = io.ReadAll(cmd.InOrStdin())
	} else {
		raw, err = os.ReadFile(args[0])
	}
	if err != nil {
		return nil, fmt.Errorf("reading payload: %w", err)
	}
	m, err := signing.FromJSON(raw)
	if err != nil {
		return nil, fmt.Errorf("parsing payload: %w", err)
	}
	return m, nil
}
