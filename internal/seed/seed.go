package seed

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	screeningdomain "github.com/smallbiznis/boxoffice/internal/screening/domain"
	"github.com/smallbiznis/boxoffice/internal/screening/scoring"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// EnsureScreeningConfig stores the default scoring configuration when no row
// exists yet. An existing configuration is never overwritten.
func EnsureScreeningConfig(db *gorm.DB) (bool, error) {
	if db == nil {
		return false, errors.New("seed database handle is required")
	}

	payload, err := json.Marshal(scoring.DefaultConfig())
	if err != nil {
		return false, err
	}
	record := screeningdomain.ConfigRecord{
		ID:        1,
		Settings:  payload,
		UpdatedBy: "system",
		UpdatedAt: time.Now().UTC(),
	}

	res := db.WithContext(context.Background()).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "id"}}, DoNothing: true}).
		Create(&record)
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected > 0, nil
}
