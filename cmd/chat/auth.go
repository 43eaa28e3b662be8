package main

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

func newLoginCmd(flags *rootFlags) *cobra.Command {
	var password string

	cmd := &cobra.Command{
		Use:   "login <username>",
		Short: "Authenticate and store the session token",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := commandContext(cmd)
			defer stop()

			if password == "" {
				password, err = promptLine("Password: ")
				if err != nil {
					return err
				}
			}

			res, err := a.API.Login(ctx, args[0], password)
			if err != nil {
				return err
			}
			fmt.Printf("logged in as %s\n", res.Username)
			return nil
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

func newRegisterCmd(flags *rootFlags) *cobra.Command {
	var email, password string

	cmd := &cobra.Command{
		Use:   "register <username>",
		Short: "Create an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := commandContext(cmd)
			defer stop()

			if password == "" {
				password, err = promptLine("Password: ")
				if err != nil {
					return err
				}
			}

			if err := a.API.Register(ctx, args[0], email, password); err != nil {
				return err
			}
			fmt.Printf("registered %s, now run 'chat login %s'\n", args[0], args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "email address")
	cmd.Flags().StringVar(&password, "password", "", "password (prompted when omitted)")
	return cmd
}

func newLogoutCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Discard the stored session token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := commandContext(cmd)
			defer stop()

			return a.Sessions.Clear(ctx)
		},
	}
}

func promptLine(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	reader := bufio.NewReader(os.Stdin)
	line, err := reader.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read input: %w", err)
	}
	return strings.TrimSpace(line), nil
}
