// cmd/inkgold/player.go
package main

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linyc/inkgold/internal/client"
	"github.com/linyc/inkgold/internal/recognizer"
	"github.com/linyc/inkgold/internal/transport"
)

func newPlayerCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "player [room-code]",
		Short: "Join a room as a contestant and drive the canvas from the console.",
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

			ime := recognizer.NewGoogleIME()
			if cfg.imeEndpoint != "" {
				ime.Endpoint = cfg.imeEndpoint
			}
			if cfg.imeLanguage != "" {
				ime.Language = cfg.imeLanguage
			}

			player, err := client.NewPlayer(link, cfg.slot, ime, log)
			if err != nil {
				return err
			}
			if err := player.Start(cmd.Context()); err != nil {
				return err
			}

			fmt.Printf("joined as player %d\n", player.Slot())
			fmt.Println("commands: down <x> <y> | move <x> <y> | up | clear | undo | submit | appeal | state | quit")
			return runPlayerConsole(cmd, player)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.room, "room", "", "room code to join, overridden by the positional argument (env: INKGOLD_ROOM)")
	fs.IntVar(&cfg.slot, "slot", 0, "player slot, 0 through 2 (env: INKGOLD_SLOT)")
	fs.StringVar(&cfg.imeEndpoint, "ime-endpoint", "", "handwriting recognition endpoint override (env: INKGOLD_IME_ENDPOINT)")
	fs.StringVar(&cfg.imeLanguage, "ime-language", "", "recognition language override (env: INKGOLD_IME_LANGUAGE)")

	return cmd
}

func runPlayerConsole(cmd *cobra.Command, player *client.Player) error {
	ctx := cmd.Context()
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		fields := strings.Fields(scanner.Text())
		if len(fields) == 0 {
			continue
		}
		var err error
		switch fields[0] {
		case "down", "move":
			if len(fields) != 3 {
				fmt.Printf("usage: %s <x> <y>\n", fields[0])
				continue
			}
			x, errX := strconv.ParseFloat(fields[1], 64)
			y, errY := strconv.ParseFloat(fields[2], 64)
			if errX != nil || errY != nil {
				fmt.Println("coordinates must be numbers in the unit square")
				continue
			}
			if fields[0] == "down" {
				err = player.PenDown(ctx, x, y)
			} else {
				err = player.PenMove(ctx, x, y)
			}

		case "up":
			err = player.PenUp(ctx)

		case "clear":
			err = player.Clear(ctx)

		case "undo":
			err = player.Undo(ctx)

		case "submit":
			var text string
			text, err = player.Submit(ctx)
			if err == nil {
				fmt.Printf("submitted %q\n", text)
			}

		case "appeal":
			err = player.Appeal(ctx)

		case "state":
			state, ok := player.State()
			if !ok {
				fmt.Println("no snapshot received yet")
				continue
			}
			printState(state)

		case "quit":
			return nil

		default:
			fmt.Println("commands: down <x> <y> | move <x> <y> | up | clear | undo | submit | appeal | state | quit")
		}
		if err != nil {
			fmt.Printf("%s failed: %v\n", fields[0], err)
		}
	}
	return scanner.Err()
}
