package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"hdrcalc/internal/camera"
	"hdrcalc/internal/emitter"
	"hdrcalc/internal/server"
	"hdrcalc/internal/shooting"
)

func newServeCommand(root *rootOptions) *cobra.Command {
	var (
		host string
		port int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API backed by the simulated camera",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg := root.cfg

			// コマンドラインオプションで設定を上書き
			if host != "" {
				cfg.Server.Host = host
			}
			if port != 0 {
				cfg.Server.Port = port
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			logger := root.logger
			hw := camera.NewSimulatedHardware(cfg.Camera.CommandDelay)
			discovery := camera.NewSimulatedDiscovery(cfg.Camera.Name, cfg.Camera.Address, cfg.Camera.DiscoveryDelay)

			connection := camera.NewConnectionService(discovery, hw, cfg.Camera.ConnectDelay, logger)
			defer connection.Close()

			controller := shooting.NewController(hw, cfg.Shooting.Controller(), logger)

			deps := server.Dependencies{
				Connection: connection,
				Controller: controller,
				Hardware:   hw,
			}

			if cfg.MQTT.Enabled() {
				em := emitter.NewMQTTEmitter(cfg.MQTT.Emitter(), logger)
				if err := em.Connect(cmd.Context()); err != nil {
					return fmt.Errorf("MQTTブローカーへの接続に失敗しました: %w", err)
				}
				defer em.Close()

				controller.AddObserver(em)
				deps.Emitter = em
			}

			srv, err := server.New(cfg, deps, logger)
			if err != nil {
				return err
			}

			fmt.Fprintf(cmd.OutOrStdout(), "hdrcalc API listening on http://%s\n", cfg.ServerAddress())
			fmt.Fprintln(cmd.OutOrStdout(), "Press Ctrl+C to stop")

			if err := srv.Start(cmd.Context()); err != nil {
				return fmt.Errorf("サーバーの起動に失敗しました: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&host, "host", "", "Server host (default from config: 0.0.0.0)")
	cmd.Flags().IntVar(&port, "port", 0, "Server port (default from config: 8080)")
	return cmd
}
