package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newRoomsCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rooms",
		Short: "List chat rooms",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := commandContext(cmd)
			defer stop()

			rooms, err := a.API.Rooms(ctx)
			if err != nil {
				return err
			}
			if len(rooms) == 0 {
				fmt.Println("no rooms yet, create one with 'chat rooms create'")
				return nil
			}
			for _, r := range rooms {
				line := fmt.Sprintf("%4d  %s", r.ID, r.Name)
				if r.Description != "" {
					line += "  (" + r.Description + ")"
				}
				if r.LastMessage != nil {
					line += fmt.Sprintf("  last: %s: %s", r.LastMessage.User.Username, r.LastMessage.Content)
				}
				fmt.Println(line)
			}
			return nil
		},
	}

	cmd.AddCommand(newRoomsCreateCmd(flags))
	return cmd
}

func newRoomsCreateCmd(flags *rootFlags) *cobra.Command {
	var description string

	cmd := &cobra.Command{
		Use:   "create <name>",
		Short: "Create a chat room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := loadApp(flags)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, stop := commandContext(cmd)
			defer stop()

			room, err := a.API.CreateRoom(ctx, args[0], description)
			if err != nil {
				return err
			}
			fmt.Printf("created room %d (%s)\n", room.ID, room.Name)
			return nil
		},
	}
	cmd.Flags().StringVar(&description, "description", "", "room description")
	return cmd
}
