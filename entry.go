package stampede

import (
	"encoding/json"
	"time"
)

// Entry is a cache entry as stored under the coordinator's cache key.
//
// Wire format is JSON, for example {"value":"XYZ","updated_at":1712345678},
// with the timestamp in unix seconds.
type Entry[V any] struct {
	Value     V     `json:"value"`
	UpdatedAt int64 `json:"updated_at"`
}

// Time returns the update timestamp.
func (e Entry[V]) Time() time.Time {
	return time.Unix(e.UpdatedAt, 0)
}

// Age returns entry age at now.
func (e Entry[V]) Age(now time.Time) time.Duration {
	return now.Sub(e.Time())
}

func encodeEntry[V any](e Entry[V]) ([]byte, error) {
	return json.Marshal(e)
}

func decodeEntry[V any](b []byte) (Entry[V], error) {
	var e Entry[V]

	err := json.Unmarshal(b, &e)

	return e, err
}
