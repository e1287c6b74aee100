package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/okwme/scuttle-chat/pkg/keystore"
)

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Generate an identity and store it in the secret file",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keystore.Create(secretPath(), passphrase)
			if err != nil {
				return err
			}
			fmt.Printf("Identity created.\nPublic key: %s\n", kp.Public)
			return nil
		},
	}
}

func whoamiCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Print the public key of the stored identity",
		RunE: func(cmd *cobra.Command, args []string) error {
			kp, err := keystore.Load(secretPath(), passphrase)
			if err != nil {
				return err
			}
			fmt.Println(kp.Public)
			return nil
		},
	}
}
