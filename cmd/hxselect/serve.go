package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	hxselectecho "github.com/pthm/hxselect/adapters/echo"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the demo server",
		Long: `serve starts an HTTP server with a demo form: a single page picker
with an id-only value and a sortable multi select. Both search the
configured catalog unless search.endpoint is set.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := a.newServer()
			if err != nil {
				return err
			}
			return a.run(cmd.Context(), e)
		},
	}
	cmd.Flags().String("addr", ":8080", "listen address")
	bindFlags(a.v, cmd.Flags(), map[string]string{"server.addr": "addr"})
	return cmd
}

func (a *app) newServer() (*echo.Echo, error) {
	key, err := a.cfg.Server.DecodeKey()
	if err != nil {
		return nil, err
	}
	regOpts, err := a.registryOptions()
	if err != nil {
		return nil, err
	}
	cat, err := a.catalog()
	if err != nil {
		return nil, err
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(middleware.Recover())
	e.Use(requestLogger(a.logger))

	reg := hxselectecho.Mount(e,
		hxselectecho.WithKey(key),
		hxselectecho.WithPath(a.cfg.Server.BasePath),
		hxselectecho.WithRegistryOptions(regOpts...),
	)

	d := &demo{reg: reg, cat: cat, app: a}
	e.GET("/", d.show)
	e.POST("/", d.submit)
	return e, nil
}

func (a *app) run(ctx context.Context, e *echo.Echo) error {
	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("server started", zap.String("addr", a.cfg.Server.Addr))
		if err := e.Start(a.cfg.Server.Addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		a.logger.Info("server stopping")
		return e.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func requestLogger(logger *zap.Logger) echo.MiddlewareFunc {
	return middleware.RequestLoggerWithConfig(middleware.RequestLoggerConfig{
		LogMethod:  true,
		LogURI:     true,
		LogStatus:  true,
		LogLatency: true,
		LogError:   true,
		LogValuesFunc: func(c echo.Context, v middleware.RequestLoggerValues) error {
			fields := []zap.Field{
				zap.String("method", v.Method),
				zap.String("uri", v.URI),
				zap.Int("status", v.Status),
				zap.Duration("latency", v.Latency),
			}
			if v.Error != nil {
				fields = append(fields, zap.Error(v.Error))
			}
			switch {
			case v.Status >= http.StatusInternalServerError:
				logger.Error("request", fields...)
			case v.Status >= http.StatusBadRequest:
				logger.Warn("request", fields...)
			default:
				logger.Info("request", fields...)
			}
			return nil
		},
	})
}
