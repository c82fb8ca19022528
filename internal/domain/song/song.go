// Package song provides the Song and playlist Entry domain entities.
package song

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"
)

// Song represents a playable song as listed by the catalog.
// A Song is immutable once fetched; its identity is the URL.
type Song struct {
	Title  string `json:"title" yaml:"title" mapstructure:"title"`
	Artist string `json:"artist" yaml:"artist" mapstructure:"artist"`
	Album  string `json:"album" yaml:"album" mapstructure:"album"`
	URL    string `json:"url" yaml:"url" mapstructure:"url"`
}

// Entry is one occurrence of a Song in the playlist.
// Two entries for the same song are told apart by Nonce.
type Entry struct {
	Song  Song  `mapstructure:"song"`
	Nonce int64 `mapstructure:"nonce"`
}

// Playable reports whether the song can start a session.
func (s Song) Playable() bool {
	return s.URL != ""
}

// ToMap converts the song to a generic map for transports that carry untyped values.
func (s Song) ToMap() map[string]any {
	return map[string]any{
		"title":  s.Title,
		"artist": s.Artist,
		"album":  s.Album,
		"url":    s.URL,
	}
}

// FromMap decodes a song from a generic map.
func FromMap(m map[string]any) (Song, error) {
	var s Song
	if err := mapstructure.Decode(m, &s); err != nil {
		return Song{}, errors.Wrap(err, "failed to decode song")
	}
	return s, nil
}

// ListToAny converts songs into a list of generic maps.
func ListToAny(songs []Song) []any {
	out := make([]any, len(songs))
	for i, s := range songs {
		out[i] = s.ToMap()
	}
	return out
}

// ListFromAny decodes a list of songs from a generic value.
// Accepts []Song as-is, or a list of maps.
func ListFromAny(v any) ([]Song, error) {
	switch list := v.(type) {
	case []Song:
		out := make([]Song, len(list))
		copy(out, list)
		return out, nil
	case []any:
		out := make([]Song, 0, len(list))
		for i, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				return nil, errors.Newf("song %d: expected object, got %T", i, item)
			}
			s, err := FromMap(m)
			if err != nil {
				return nil, errors.Wrapf(err, "song %d", i)
			}
			out = append(out, s)
		}
		return out, nil
	case []map[string]any:
		out := make([]Song, 0, len(list))
		for i, m := range list {
			s, err := FromMap(m)
			if err != nil {
				return nil, errors.Wrapf(err, "song %d", i)
			}
			out = append(out, s)
		}
		return out, nil
	case nil:
		return nil, nil
	default:
		return nil, errors.Newf("expected song list, got %T", v)
	}
}
