// cmd/inkgold/relay.go
package main

import (
	"net/http"

	"github.com/spf13/cobra"

	"github.com/linyc/inkgold/internal/relay"
)

func newRelayCmd(cfg *Config) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "relay",
		Short: "Run the rendezvous relay that brokers rooms between hosts and peers.",
		Args:  cobra.ExactArgs(0),
		RunE: func(cmd *cobra.Command, _ []string) error {
			log, err := cfg.logger()
			if err != nil {
				return err
			}

			var registry relay.Registry
			if cfg.redis {
				r, err := relay.NewRedisRegistry(cmd.Context())
				if err != nil {
					return err
				}
				registry = r
				log.Info("using redis room registry")
			} else {
				registry = relay.NewMemoryRegistry()
			}

			srv := relay.NewServer(log, registry)
			log.Infof("relay listening on %s", cfg.listen)
			return http.ListenAndServe(cfg.listen, srv.Handler())
		},
	}

	fs := cmd.Flags()
	fs.StringVar(&cfg.listen, "listen", ":8080", "address to listen on (env: INKGOLD_LISTEN)")
	fs.BoolVar(&cfg.redis, "redis", false, "back the room registry with redis so multiple relays share one code space (env: INKGOLD_REDIS)")

	return cmd
}
