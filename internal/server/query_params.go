package server

import (
	"strconv"
	"strings"

	"github.com/bwmarrin/snowflake"
)

func parseIDParam(value string) (snowflake.ID, error) {
	parsed, err := snowflake.ParseString(strings.TrimSpace(value))
	if err != nil || parsed <= 0 {
		return 0, newValidationError("id", "invalid_id", "invalid id")
	}
	return parsed, nil
}

func parseOptionalInt(value string, field string) (int, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return 0, nil
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil || parsed < 0 {
		return 0, newValidationError(field, "invalid_"+field, "invalid value")
	}
	return parsed, nil
}
