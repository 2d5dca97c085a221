package main

import (
	"bufio"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"clashtui/internal/errs"
	"clashtui/internal/secrets"
)

func newSecretCmd(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "secret",
		Short: "Store the external-controller secret encrypted on disk",
		Long: `The controller secret is sent as a bearer token to the daemon. A
controller_secret set in config.yaml or CLASHTUI_CONTROLLER_SECRET takes
precedence over the stored one.`,
	}

	cmd.AddCommand(
		&cobra.Command{
			Use:   "set [VALUE]",
			Short: "Store the controller secret; reads stdin when VALUE is omitted",
			Args:  cobra.MaximumNArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				value, err := secretValue(cmd, args)
				if err != nil {
					return err
				}
				store, err := secrets.NewStore(secrets.DefaultStoreConfig(c.configDir), c.logger)
				if err != nil {
					return err
				}
				if err := store.Put(secrets.ControllerSecret, []byte(value)); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Controller secret stored")
				return nil
			},
		},
		&cobra.Command{
			Use:   "clear",
			Short: "Remove the stored controller secret",
			Args:  cobra.NoArgs,
			RunE: func(cmd *cobra.Command, _ []string) error {
				store, err := secrets.NewStore(secrets.DefaultStoreConfig(c.configDir), c.logger)
				if err != nil {
					return err
				}
				err = store.Delete(secrets.ControllerSecret)
				if errors.Is(err, secrets.ErrNotFound) {
					fmt.Fprintln(cmd.OutOrStdout(), "No controller secret stored")
					return nil
				}
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "Controller secret removed")
				return nil
			},
		},
	)

	return cmd
}

func secretValue(cmd *cobra.Command, args []string) (string, error) {
	if len(args) == 1 {
		return validSecret(args[0])
	}
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return "", fmt.Errorf("failed to read secret: %w", err)
		}
		return "", errs.New(errs.KindInvalid, "no secret given")
	}
	return validSecret(scanner.Text())
}

func validSecret(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", errs.New(errs.KindInvalid, "secret must not be empty")
	}
	return value, nil
}
