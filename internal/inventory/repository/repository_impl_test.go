package repository

import (
	"context"
	"strings"
	"testing"

	"github.com/bwmarrin/snowflake"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

// dryRunDB opens a dialect without connecting and records the SQL of every
// raw read.
func dryRunDB(t *testing.T, dialector gorm.Dialector) (*gorm.DB, *[]string) {
	t.Helper()
	db, err := gorm.Open(dialector, &gorm.Config{DryRun: true, DisableAutomaticPing: true})
	require.NoError(t, err)

	var statements []string
	err = db.Callback().Row().Before("gorm:row").Register("test:capture_sql", func(tx *gorm.DB) {
		statements = append(statements, tx.Statement.SQL.String())
	})
	require.NoError(t, err)
	return db, &statements
}

func TestLockQueriesTakeRowLocks(t *testing.T) {
	dialects := map[string]gorm.Dialector{
		"postgres": postgres.New(postgres.Config{DSN: "host=localhost user=boxoffice dbname=boxoffice sslmode=disable"}),
		"mysql":    mysql.New(mysql.Config{DSN: "boxoffice:secret@tcp(localhost:3306)/boxoffice", SkipInitializeWithVersion: true}),
	}
	for name, dialector := range dialects {
		t.Run(name, func(t *testing.T) {
			db, statements := dryRunDB(t, dialector)
			r := &repo{}
			ctx := context.Background()

			_, _ = r.LockTier(ctx, db, snowflake.ID(1))
			_, _ = r.LockHold(ctx, db, snowflake.ID(2))
			_, _ = r.FindTier(ctx, db, snowflake.ID(1))

			require.Len(t, *statements, 3)
			assert.True(t, strings.HasSuffix((*statements)[0], " FOR UPDATE"), (*statements)[0])
			assert.Contains(t, (*statements)[0], "FROM ticket_tiers")
			assert.True(t, strings.HasSuffix((*statements)[1], " FOR UPDATE"), (*statements)[1])
			assert.Contains(t, (*statements)[1], "FROM ticket_holds")
			assert.NotContains(t, (*statements)[2], "FOR UPDATE")
		})
	}
}
