package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
)

// StringArray backs the related_questions column. New rows are written as a
// JSON array, but rows imported from the original deployment may hold a
// single bare question string, so Scan accepts both.
type StringArray []string

func (a StringArray) Value() (driver.Value, error) {
	if a == nil {
		return "[]", nil
	}
	b, err := json.Marshal([]string(a))
	if err != nil {
		return nil, err
	}
	return string(b), nil
}

func (a *StringArray) Scan(value interface{}) error {
	if a == nil {
		return fmt.Errorf("models.StringArray: Scan on nil pointer")
	}

	var raw string
	switch v := value.(type) {
	case nil:
		*a = []string{}
		return nil
	case []byte:
		raw = string(v)
	case string:
		raw = v
	default:
		return fmt.Errorf("models.StringArray: unsupported Scan type %T", value)
	}

	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "null" {
		*a = []string{}
		return nil
	}

	var questions []string
	if err := json.Unmarshal([]byte(raw), &questions); err == nil {
		*a = questions
		return nil
	}

	// Legacy rows: one question, stored either as a JSON string or plain text.
	var single string
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		raw = single
	}
	if raw == "" {
		*a = []string{}
		return nil
	}
	*a = []string{raw}
	return nil
}
