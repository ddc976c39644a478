package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/trueequity/backend/pkg/redis"
)

// errAbsent keeps "no data" results out of the cache
var errAbsent = errors.New("absent")

// cached serves dest from the read-through cache, calling load on a miss.
// A nil cache always calls load.
func cached(ctx context.Context, cache *redis.Cache, key string, dest interface{}, load func() (interface{}, error)) error {
	if cache == nil {
		value, err := load()
		if err != nil {
			return err
		}
		data, err := json.Marshal(value)
		if err != nil {
			return err
		}
		return json.Unmarshal(data, dest)
	}
	return cache.GetOrSet(ctx, key, dest, redis.TTLShort, load)
}

func respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{
		"error": message,
	})
}
