package configcmder

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/papercomputeco/chatrelay/pkg/config"
)

const configLongDesc string = `Manage the chatrelay configuration file.`

const configShortDesc string = "Manage configuration"

const initLongDesc string = `Write a default configuration file.

The file holds every setting with its default value. Credentials
are not written: they are read from the environment.

Examples:
  chatrelay config init
  chatrelay config init --force ~/.config/chatrelay.toml`

const initShortDesc string = "Write a default config file"

type initCommander struct {
	force bool
}

func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: configShortDesc,
		Long:  configLongDesc,
	}

	cmd.AddCommand(newInitCmd())

	return cmd
}

func newInitCmd() *cobra.Command {
	cmder := &initCommander{}

	cmd := &cobra.Command{
		Use:   "init [path]",
		Short: initShortDesc,
		Long:  initLongDesc,
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.DefaultFileName
			if len(args) == 1 {
				path = args[0]
			}
			return cmder.run(cmd, path)
		},
	}

	cmd.Flags().BoolVarP(&cmder.force, "force", "f", false, "Overwrite an existing file")

	return cmd
}

func (c *initCommander) run(cmd *cobra.Command, path string) error {
	if err := config.WriteDefault(path, c.force); err != nil {
		if errors.Is(err, config.ErrFileExists) {
			return fmt.Errorf("%w (use --force to overwrite)", err)
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
	return nil
}
