package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boxoffice/internal/clock"
	"github.com/smallbiznis/boxoffice/internal/config"
	"github.com/smallbiznis/boxoffice/internal/events"
	"github.com/smallbiznis/boxoffice/internal/inventory"
	"github.com/smallbiznis/boxoffice/internal/inventorymetrics"
	"github.com/smallbiznis/boxoffice/internal/observability"
	"github.com/smallbiznis/boxoffice/internal/ratelimit"
	"github.com/smallbiznis/boxoffice/internal/scheduler"
	"github.com/smallbiznis/boxoffice/internal/screening"
	"github.com/smallbiznis/boxoffice/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		events.Module,
		ratelimit.Module,

		// Domain services required by scheduler
		inventory.Module,
		screening.Module,

		// No server module!
		scheduler.Module,
		inventorymetrics.Module,
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
