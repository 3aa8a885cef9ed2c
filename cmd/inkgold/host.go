// cmd/inkgold/host.go
package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/linyc/inkgold/internal/session"
	"github.com/linyc/inkgold/internal/transport"
)

func newHostCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "host",
		Short: "Claim a room and run the canonical game session.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := cfg.logger()
			if err != nil {
				return err
			}

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()

			sess := session.New(session.Config{
				Logger:           log,
				CountdownSeconds: cfg.countdown,
			})
			go func() { _ = sess.Run(ctx) }()

			link, err := transport.OpenRoom(ctx, transport.HostOptions{
				RelayURL: cfg.relayURL,
				RoomID:   cfg.room,
				Logger:   log,
			}, sess)
			if err != nil {
				return err
			}
			defer link.Close()

			fmt.Printf("room code: %s\n", link.RoomID())
			fmt.Printf("join QR:   %s/rooms/%s/qr\n", httpBase(cfg.relayURL), link.RoomID())
			fmt.Println("commands: deal | state | quit")

			go func() {
				<-link.Done()
				log.Warn("relay connection lost")
				cancel()
			}()

			return runHostConsole(ctx, sess, cancel)
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.room, "room", "", "pin a specific room code instead of generating one (env: INKGOLD_ROOM)")
	fs.IntVar(&cfg.countdown, "countdown", session.DefaultCountdown, "per-question countdown in seconds (env: INKGOLD_COUNTDOWN)")

	return cmd
}

func runHostConsole(ctx context.Context, sess *session.Session, cancel context.CancelFunc) error {
	scanner := bufio.NewScanner(os.Stdin)
	for scanner.Scan() {
		switch strings.TrimSpace(scanner.Text()) {
		case "deal":
			sess.DealNext()
		case "state":
			state, seq, err := sess.State(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("seq %d\n", seq)
			printState(state)
		case "quit":
			cancel()
			return nil
		case "":
		default:
			fmt.Println("commands: deal | state | quit")
		}
	}
	return scanner.Err()
}

func printState(state any) {
	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		fmt.Printf("state unavailable: %v\n", err)
		return
	}
	fmt.Printf("%s\n", data)
}

// httpBase maps the relay's websocket base URL onto its HTTP surface.
func httpBase(relayURL string) string {
	base := strings.TrimRight(relayURL, "/")
	switch {
	case strings.HasPrefix(base, "wss://"):
		return "https://" + strings.TrimPrefix(base, "wss://")
	case strings.HasPrefix(base, "ws://"):
		return "http://" + strings.TrimPrefix(base, "ws://")
	}
	return base
}
