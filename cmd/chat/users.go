package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newUsersCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "users",
		Short: "List users and their presence",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := commandContext(cmd)
			defer stop()

			users, err := a.API.Users(ctx)
			if err != nil {
				return err
			}
			for _, u := range users {
				presence := "offline"
				if u.IsOnline {
					presence = "online"
				}
				fmt.Printf("%4d  %-20s %s\n", u.ID, u.Username, presence)
			}
			return nil
		},
	}
}
