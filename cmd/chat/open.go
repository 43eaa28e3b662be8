package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/chatapp/chat-cli/internal/chat"
)

func newOpenCmd(flags *rootFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "open",
		Short: "Open a conversation",
	}
	cmd.AddCommand(newOpenRoomCmd(flags), newOpenDMCmd(flags))
	return cmd
}

func newOpenRoomCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "room <id>",
		Short: "Open a chat room",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid room id %q", args[0])
			}

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
			for _, r := range rooms {
				if r.ID == id {
					return a.OpenConversation(ctx, chat.RoomConversation{
						ID:          r.ID,
						Name:        r.Name,
						Description: r.Description,
					})
				}
			}
			return fmt.Errorf("room %d not found", id)
		},
	}
}

func newOpenDMCmd(flags *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "dm <user-id>",
		Short: "Open a direct conversation with a user",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := strconv.ParseInt(args[0], 10, 64)
			if err != nil {
				return fmt.Errorf("invalid user id %q", args[0])
			}

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
				if u.ID == id {
					return a.OpenConversation(ctx, chat.DirectConversation{
						PeerID:   u.ID,
						PeerName: u.Username,
						Online:   u.IsOnline,
					})
				}
			}
			return fmt.Errorf("user %d not found", id)
		},
	}
}
