// Copyright (c) 2024-2025 Jesse Morgan / Morgan Forge
// SPDX-License-Identifier: AGPL-3.0-or-later

package cli

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/jeranaias/chatly-tui/internal/devserver"
	"github.com/jeranaias/chatly-tui/internal/logging"
)

func (rt *runtime) devServerCmd() *cobra.Command {
	var addr, dataDir string
	cmd := &cobra.Command{
		Use:   "devserver",
		Short: "Serve a local backend for development",
		Long: `Serve /upload_docs, /query_rag and /history* from this machine.

Uploaded plain-text documents are split into chunks and stored in SQLite
under the data directory. Answers are the best matching passages, scored by
keyword overlap.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := rt.cfg.DevServer
			if addr != "" {
				cfg.Addr = addr
			}
			if dataDir != "" {
				cfg.DataDir = dataDir
			}

			logCfg := rt.cfg.Logging
			logCfg.Console = true
			log, err := logging.New(logCfg)
			if err != nil {
				return fmt.Errorf("open log: %w", err)
			}
			rt.log = log

			if !rt.verbose {
				gin.SetMode(gin.ReleaseMode)
			}
			srv, err := devserver.New(cfg, devserver.WithLogger(log))
			if err != nil {
				return err
			}
			defer srv.Close()

			fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render("chatly dev backend on http://"+cfg.Addr))
			fmt.Fprintln(cmd.OutOrStdout(), mutedStyle.Render("data: "+cfg.DataDir+"  (Ctrl+C to stop)"))
			return srv.Run(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config, 127.0.0.1:5001)")
	cmd.Flags().StringVar(&dataDir, "data", "", "Data directory (default ~/.chatly/devserver)")
	return cmd
}
