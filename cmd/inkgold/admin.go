// cmd/inkgold/admin.go
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linyc/inkgold/internal/client"
	"github.com/linyc/inkgold/internal/transport"
)

func newAdminCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin [room-code]",
		Short: "Join a room as the quizmaster: deal questions and rule on appeals.",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log, err := cfg.logger()
			if err != nil {
				return err
			}

			roomID, err := resolveRoom(cfg, args)
			if err != nil {
				return err
			}
			link, err := transport.Dial(cmd.Context(), cfg.relayURL, roomID)
			if err != nil {
				return err
			}
			defer link.Close()

			admin := client.NewAdmin(link, nil, log)
			if err := admin.Start(cmd.Context()); err != nil {
				return err
			}

			fmt.Println("commands: next | override <slot> correct|incorrect | state | quit")
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				fields := strings.Fields(scanner.Text())
				if len(fields) == 0 {
					continue
				}
				switch fields[0] {
				case "next":
					q, idx, err := admin.NextQuestion(cmd.Context())
					if err != nil {
						fmt.Printf("deal failed: %v\n", err)
						continue
					}
					fmt.Printf("dealt question %d: %s (answer %s)\n", idx, q.Prompt, q.Answer)

				case "override":
					if len(fields) != 3 {
						fmt.Println("usage: override <slot> correct|incorrect")
						continue
					}
					slot, err := strconv.Atoi(fields[1])
					if err != nil {
						fmt.Printf("bad slot %q\n", fields[1])
						continue
					}
					correct := fields[2] == "correct"
					if err := admin.Override(cmd.Context(), slot, correct); err != nil {
						fmt.Printf("override failed: %v\n", err)
					}

				case "state":
					state, ok := admin.State()
					if !ok {
						fmt.Println("no snapshot received yet")
						continue
					}
					printState(state)

				case "quit":
					return nil

				default:
					fmt.Println("commands: next | override <slot> correct|incorrect | state | quit")
				}
			}
			return scanner.Err()
		},
	}

	cmd.Flags().StringVar(&cfg.room, "room", "", "room code to join, overridden by the positional argument (env: INKGOLD_ROOM)")

	return cmd
}
