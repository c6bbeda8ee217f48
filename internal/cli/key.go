package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/wolfej94/authkit/keys"
)

func newKeyCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "key",
		Short: "Manage the proof-of-possession signing key",
	}
	cmd.AddCommand(newKeyGenerateCmd(), newKeySignCmd())
	return cmd
}

func (a *app) custodian(cmd *cobra.Command) (*keys.Custodian, error) {
	st, err := a.openStore(cmd.Context())
	if err != nil {
		return nil, err
	}
	return keys.NewCustodian(st, keys.WithBits(a.cfg.KeyBits)), nil
}

func newKeyGenerateCmd() *cobra.Command {
	var asJWK bool

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate the signing key, or print the existing one",
		Long:  "Generate an RSA signing key and record it in the credential store. If a key already exists it is reused, so the printed public key is stable across runs.",
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			custodian, err := a.custodian(cmd)
			if err != nil {
				return err
			}
			handle, err := custodian.GenerateOrLoad(cmd.Context())
			if err != nil {
				return err
			}

			if asJWK {
				jwk, err := handle.JWK()
				if err != nil {
					return err
				}
				data, err := json.MarshalIndent(jwk, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			}

			pub, err := handle.PublicKey()
			if err != nil {
				return err
			}
			fmt.Printf("Key ID:     %s\n", handle.ID)
			fmt.Printf("Public key: %s\n", pub)
			return nil
		},
	}

	cmd.Flags().BoolVar(&asJWK, "jwk", false, "Print the public key as a JSON Web Key")
	return cmd
}

func newKeySignCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sign <challenge>",
		Short: "Sign a challenge with the stored key",
		Long:  "Sign a challenge string with the recorded key and print the base64 signature. Fails when no key has been generated.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := fromContext(cmd.Context())
			custodian, err := a.custodian(cmd)
			if err != nil {
				return err
			}
			signature, err := custodian.Sign(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Println(signature)
			return nil
		},
	}
}
