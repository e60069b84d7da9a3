package feed

import (
	"encoding/json"
	"fmt"
)

// DecodeRow converts a notification row map into a typed struct via a JSON
// round trip. Trigger payloads carry NUMERIC columns as JSON numbers or
// strings; decimal.Decimal accepts both. Decode failures mean the event
// shape is unexpected — callers skip the event.
func DecodeRow(row map[string]any, dst any) error {
	data, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("feed: encode row: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("feed: decode row: %w", err)
	}
	return nil
}
