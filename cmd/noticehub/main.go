package main

import (
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"NoticeHub/internal/bootstrap"
	"NoticeHub/pkg/routes"
)

func main() {
	bootstrap.Loadenv()
	app := fx.New(
		routes.Modules,
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
	)
	app.Run()
}
