package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/boxoffice/internal/audit"
	"github.com/smallbiznis/boxoffice/internal/authorization"
	"github.com/smallbiznis/boxoffice/internal/clock"
	"github.com/smallbiznis/boxoffice/internal/config"
	"github.com/smallbiznis/boxoffice/internal/events"
	"github.com/smallbiznis/boxoffice/internal/inventory"
	"github.com/smallbiznis/boxoffice/internal/inventorymetrics"
	"github.com/smallbiznis/boxoffice/internal/migration"
	"github.com/smallbiznis/boxoffice/internal/observability"
	"github.com/smallbiznis/boxoffice/internal/order"
	"github.com/smallbiznis/boxoffice/internal/payment"
	"github.com/smallbiznis/boxoffice/internal/ratelimit"
	"github.com/smallbiznis/boxoffice/internal/scheduler"
	"github.com/smallbiznis/boxoffice/internal/screening"
	"github.com/smallbiznis/boxoffice/internal/server"
	"github.com/smallbiznis/boxoffice/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,
		events.Module,
		ratelimit.Module,
		authorization.Module,
		audit.Module,

		// Domains
		inventory.Module,
		order.Module,
		screening.Module,
		payment.Module,

		scheduler.Module,
		inventorymetrics.Module,
		server.Module,
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
