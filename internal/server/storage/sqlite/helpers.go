package sqlite

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func unixToTime(timestamp int64) time.Time {
	if timestamp == 0 {
		return time.Time{}
	}
	return time.Unix(timestamp, 0).UTC()
}

func nullUnixToTime(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	t := unixToTime(v.Int64)
	return &t
}

// encodeContents сериализует plural формы в JSON массив
func encodeContents(contents []string) (string, error) {
	if contents == nil {
		contents = []string{}
	}
	data, err := json.Marshal(contents)
	if err != nil {
		return "", fmt.Errorf("failed to encode contents: %w", err)
	}
	return string(data), nil
}

func decodeContents(raw string) ([]string, error) {
	var contents []string
	if err := json.Unmarshal([]byte(raw), &contents); err != nil {
		return nil, fmt.Errorf("failed to decode contents: %w", err)
	}
	return contents, nil
}

// isUniqueViolation распознает нарушение UNIQUE/PRIMARY KEY в сообщении драйвера
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || strings.Contains(msg, "PRIMARY KEY")
}

// isForeignKeyViolation распознает нарушение FOREIGN KEY
func isForeignKeyViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "FOREIGN KEY constraint failed")
}
