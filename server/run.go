package server

import (
	"context"
	"fmt"
	"time"

	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"

	"neon/engine/xmltk"
	"neon/state"
)

// Run is "serve" subcommand.
func Run(ctx context.Context, cmd *cli.Command) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("serve")

	if listen := cmd.String("listen"); len(listen) > 0 {
		env.Cfg.Server.Listen = listen
	}

	j, err := env.Journal()
	if err != nil {
		return err
	}
	srv := New(env.Cfg, j, env.Rpt, env.Log)

	if cmd.Bool("offline") {
		c, err := xmltk.Start(env.Log)
		if err != nil {
			return fmt.Errorf("unable to start offline engine: %w", err)
		}
		srv.UseEngine(c)
		log.Info("Using offline engine, pages will not be rendered")
	}

	log.Info("Serving starting", zap.String("listen", env.Cfg.Server.Listen), zap.Strings("origins", env.Cfg.Server.AllowedOrigins))
	defer func(start time.Time) {
		log.Info("Serving completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return srv.ListenAndServe(ctx)
}
