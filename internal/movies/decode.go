package movies

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/njoerd114/moviesync/internal/model"
)

// decodeCollection turns the store's {"<id>": {fields…}, …} object into a
// slice in document order, stamping each movie's ID from its key.
//
// Decoding into a map would lose the order, so the object is walked token by
// token. A key repeated in the document keeps its first position and its
// last value.
func decodeCollection(raw []byte) ([]model.Movie, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))

	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, fmt.Errorf("collection is %v, want a JSON object", tok)
	}

	var movies []model.Movie
	index := make(map[string]int)
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v in collection", tok)
		}

		var m model.Movie
		if err := dec.Decode(&m); err != nil {
			return nil, fmt.Errorf("movie %s: %w", key, err)
		}
		m.ID = key

		if i, seen := index[key]; seen {
			movies[i] = m
			continue
		}
		index[key] = len(movies)
		movies = append(movies, m)
	}

	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if movies == nil {
		movies = []model.Movie{}
	}
	return movies, nil
}
