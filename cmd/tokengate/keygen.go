package main

import (
	"fmt"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tokengate/tokengate/pkg/envsignal"
	"github.com/tokengate/tokengate/pkg/keys"
)

var (
	keygenType string
	keygenDir  string
)

var keygenCmd = &cobra.Command{
	Use:   "keygen",
	Short: "Generate a signing key pair for local development",
	Long: `Generates an RSA or EC key pair and writes the PEM files to disk.
Private key export is refused when the environment looks like production.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var pair *keys.TestKeyPair
		var err error

		guard := envsignal.NewEnvDetector()
		switch keygenType {
		case "rsa":
			pair, err = keys.GenerateRSA(guard)
		case "ec":
			pair, err = keys.GenerateEC(guard)
		default:
			return fmt.Errorf("unsupported key type: %s", keygenType)
		}
		if err != nil {
			return fmt.Errorf("failed to generate key pair: %w", err)
		}

		privatePath := filepath.Join(keygenDir, "private.pem")
		publicPath := filepath.Join(keygenDir, "public.pem")

		if err := pair.SavePrivateKey(privatePath); err != nil {
			return fmt.Errorf("failed to save private key: %w", err)
		}
		if err := pair.SavePublicKey(publicPath); err != nil {
			return fmt.Errorf("failed to save public key: %w", err)
		}

		fmt.Printf("Generated %s key pair (kid %s):\n", keygenType, pair.KeyID())
		fmt.Printf("  Private key: %s\n", privatePath)
		fmt.Printf("  Public key:  %s\n", publicPath)
		return nil
	},
}

func init() {
	keygenCmd.Flags().StringVar(&keygenType, "type", "rsa", "Key type (rsa, ec)")
	keygenCmd.Flags().StringVar(&keygenDir, "dir", ".", "Directory to write key files")
	rootCmd.AddCommand(keygenCmd)
}
