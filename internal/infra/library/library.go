// Package library loads the local song library file.
//
// The file is YAML (and therefore also accepts JSON). It is either a bare
// list of songs or a mapping with a "songs" key.
package library

import (
	"os"
	"strings"

	"github.com/cockroachdb/errors"
	"gopkg.in/yaml.v3"

	"github.com/interfect/Kruna/internal/domain/song"
)

type document struct {
	Songs []song.Song `yaml:"songs"`
}

// Load reads songs from path.
func Load(path string) ([]song.Song, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "failed to read library file")
	}
	songs, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "invalid library file %s", path)
	}
	return songs, nil
}

// Parse decodes a library document.
func Parse(data []byte) ([]song.Song, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, errors.Wrap(err, "failed to parse library")
	}
	if len(node.Content) == 0 {
		return []song.Song{}, nil
	}

	var songs []song.Song
	switch root := node.Content[0]; root.Kind {
	case yaml.SequenceNode:
		if err := root.Decode(&songs); err != nil {
			return nil, errors.Wrap(err, "failed to decode song list")
		}
	case yaml.MappingNode:
		var doc document
		if err := root.Decode(&doc); err != nil {
			return nil, errors.Wrap(err, "failed to decode library")
		}
		songs = doc.Songs
	default:
		return nil, errors.New("library must be a list of songs or a mapping with a songs key")
	}

	for i, s := range songs {
		if strings.TrimSpace(s.URL) == "" {
			return nil, errors.Newf("song %d (%q) has no url", i, s.Title)
		}
	}
	if songs == nil {
		songs = []song.Song{}
	}
	return songs, nil
}

// Match reports whether s matches a case-insensitive substring query on
// title, artist or album. The empty query matches everything.
func Match(s song.Song, query string) bool {
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return true
	}
	return strings.Contains(strings.ToLower(s.Title), q) ||
		strings.Contains(strings.ToLower(s.Artist), q) ||
		strings.Contains(strings.ToLower(s.Album), q)
}

// Filter returns the songs matching query, in library order.
func Filter(songs []song.Song, query string) []song.Song {
	out := make([]song.Song, 0, len(songs))
	for _, s := range songs {
		if Match(s, query) {
			out = append(out, s)
		}
	}
	return out
}
