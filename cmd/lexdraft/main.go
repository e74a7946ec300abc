package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/lexdraft/internal/clock"
	"github.com/smallbiznis/lexdraft/internal/config"
	"github.com/smallbiznis/lexdraft/internal/migration"
	"github.com/smallbiznis/lexdraft/internal/observability"
	"github.com/smallbiznis/lexdraft/internal/scheduler"
	"github.com/smallbiznis/lexdraft/internal/server"
	"github.com/smallbiznis/lexdraft/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		server.Module,
		scheduler.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
