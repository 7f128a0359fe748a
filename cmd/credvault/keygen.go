package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/ericfisherdev/credvault/internal/cipher"
)

const keygenCmdExample = `# Generate a key and export it for the server
export CREDVAULT_ENCRYPTION_KEY=$(credvault keygen)`

var keygenCmd = &cobra.Command{
	Use:     "keygen",
	Short:   "Print a new random base64 vault key",
	Example: keygenCmdExample,
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		key, err := cipher.GenerateKey()
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(cmd.OutOrStdout(), key)
		return err
	},
}
