package store

import "encoding/json"

var (
	_ Store = (*InMemoryStore)(nil)
	_ Store = (*PostgresStore)(nil)
)

func jsonUnmarshal(s string, v any) error {
	return json.Unmarshal([]byte(s), v)
}
