package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestOrderAndClaimLocksOnPostgres(t *testing.T) {
	db, err := gorm.Open(
		postgres.New(postgres.Config{DSN: "host=localhost user=boxoffice dbname=boxoffice sslmode=disable"}),
		&gorm.Config{DryRun: true, DisableAutomaticPing: true},
	)
	require.NoError(t, err)

	var statements []string
	require.NoError(t, db.Callback().Row().Before("gorm:row").Register("test:capture_sql", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	}))

	r := &repo{}
	ctx := context.Background()
	_, _ = r.LockOrder(ctx, db, snowflake.ID(1))
	_, _ = r.LockHoldClaims(ctx, db, []snowflake.ID{2, 3})
	_, _ = r.FindHoldClaims(ctx, db, []snowflake.ID{2, 3})

	require.Len(t, statements, 3)
	assert.True(t, strings.HasSuffix(statements[0], " FOR UPDATE"), statements[0])
	assert.True(t, strings.HasSuffix(statements[1], " FOR UPDATE"), statements[1])
	assert.Contains(t, statements[1], "FROM hold_claims")
	assert.NotContains(t, statements[2], "FOR UPDATE")
}
