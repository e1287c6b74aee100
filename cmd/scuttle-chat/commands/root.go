// Package commands implements the scuttle-chat command tree.
package commands

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

var (
	home       string
	passphrase string
	verbose    bool
)

func Execute() error {
	root := &cobra.Command{
		Use:   "scuttle-chat",
		Short: "Encrypted LAN chat over secret-handshake connections",
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if home == "" {
				dir, err := os.UserHomeDir()
				if err != nil {
					return err
				}
				home = filepath.Join(dir, ".scuttle-chat")
			}
			return os.MkdirAll(home, 0o700)
		},
	}

	root.PersistentFlags().StringVar(&home, "home", "", "config dir (default ~/.scuttle-chat)")
	root.PersistentFlags().StringVarP(&passphrase, "passphrase", "p", "", "passphrase protecting the secret file")
	root.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "log debug output")

	root.AddCommand(initCmd(), startCmd(), whoamiCmd(), peersCmd())
	return root.Execute()
}

func secretPath() string {
	return filepath.Join(home, "secret")
}

func addressBookPath() string {
	return filepath.Join(home, "addressbook.db")
}
