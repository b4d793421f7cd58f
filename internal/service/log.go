package service

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"time"
)

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

// logEvent writes one JSON object per line, matching the request logger's
// output format so pipeline events and HTTP logs interleave cleanly.
func logEvent(level, event string, fields map[string]any) {
	entry := map[string]any{
		"ts":    time.Now().UTC().Format(time.RFC3339Nano),
		"level": level,
		"event": event,
	}
	for k, v := range fields {
		entry[k] = v
	}
	b, err := json.Marshal(entry)
	if err != nil {
		log.Printf("failed to marshal log event: %v", err)
		return
	}
	log.SetFlags(0)
	log.Println(string(b))
}
