package server

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/taskboard/pkg/caldate"
)

// rpcArgs holds the raw `_`-prefixed arguments of an RPC call. Absent keys
// and explicit nulls are distinct: absent leaves a field alone, null clears
// it.
type rpcArgs map[string]json.RawMessage

func (a rpcArgs) has(key string) bool {
	_, ok := a[key]
	return ok
}

func (a rpcArgs) isNull(key string) bool {
	raw, ok := a[key]
	return ok && bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

// id reads a snowflake id sent either as a JSON string or a number.
func (a rpcArgs) id(key string) (*snowflake.ID, error) {
	raw, ok := a[key]
	if !ok || a.isNull(key) {
		return nil, nil
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		var num json.Number
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.UseNumber()
		if err := dec.Decode(&num); err != nil {
			return nil, invalidArg(key)
		}
		text = num.String()
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, nil
	}
	parsed, err := strconv.ParseInt(text, 10, 64)
	if err != nil || parsed <= 0 {
		return nil, invalidArg(key)
	}
	id := snowflake.ID(parsed)
	return &id, nil
}

func (a rpcArgs) requiredID(key string) (snowflake.ID, error) {
	id, err := a.id(key)
	if err != nil {
		return 0, err
	}
	if id == nil {
		return 0, newValidationError(strings.TrimPrefix(key, "_"), "required", key+" is required")
	}
	return *id, nil
}

func (a rpcArgs) str(key string) (*string, error) {
	raw, ok := a[key]
	if !ok || a.isNull(key) {
		return nil, nil
	}
	var value string
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, invalidArg(key)
	}
	return &value, nil
}

// nullableStr maps an explicit null to the empty string, the way the client
// clears free-text fields.
func (a rpcArgs) nullableStr(key string) (*string, error) {
	if a.isNull(key) {
		empty := ""
		return &empty, nil
	}
	return a.str(key)
}

func (a rpcArgs) date(key string) (*caldate.Date, error) {
	value, err := a.str(key)
	if err != nil || value == nil || strings.TrimSpace(*value) == "" {
		return nil, err
	}
	parsed, err := caldate.Parse(*value)
	if err != nil {
		return nil, invalidArg(key)
	}
	return &parsed, nil
}

func (a rpcArgs) timestamp(key string) (*time.Time, error) {
	value, err := a.str(key)
	if err != nil || value == nil || strings.TrimSpace(*value) == "" {
		return nil, err
	}
	parsed, err := time.Parse(time.RFC3339, strings.TrimSpace(*value))
	if err != nil {
		return nil, invalidArg(key)
	}
	return &parsed, nil
}

func (a rpcArgs) boolean(key string) (*bool, error) {
	raw, ok := a[key]
	if !ok || a.isNull(key) {
		return nil, nil
	}
	var value bool
	if err := json.Unmarshal(raw, &value); err != nil {
		return nil, invalidArg(key)
	}
	return &value, nil
}

func (a rpcArgs) stringList(key string) ([]string, error) {
	raw, ok := a[key]
	if !ok || a.isNull(key) {
		return nil, nil
	}
	var values []string
	if err := json.Unmarshal(raw, &values); err != nil {
		return nil, invalidArg(key)
	}
	return values, nil
}

// cleared reports an explicit null, or an empty string standing in for one.
func (a rpcArgs) cleared(key string) bool {
	if a.isNull(key) {
		return true
	}
	value, err := a.str(key)
	return err == nil && value != nil && strings.TrimSpace(*value) == ""
}

func invalidArg(key string) error {
	field := strings.TrimPrefix(key, "_")
	return newValidationError(field, "invalid_"+field, "invalid "+field)
}
