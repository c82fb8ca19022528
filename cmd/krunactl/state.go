package main

import (
	"github.com/cockroachdb/errors"
	"github.com/mitchellh/mapstructure"

	"github.com/interfect/Kruna/internal/domain/song"
)

// stateView is the decoded form of a state notification.
// Numbers arrive as float64 after the trip through structpb.
type stateView struct {
	Playlist []struct {
		Song  song.Song `mapstructure:"song"`
		Nonce float64   `mapstructure:"nonce"`
	} `mapstructure:"playlist"`
	PlayingIndex float64 `mapstructure:"playingIndex"`
	Playback     struct {
		State    string  `mapstructure:"state"`
		Duration float64 `mapstructure:"duration"`
		Progress float64 `mapstructure:"progress"`
	} `mapstructure:"playback"`
	AvailableSongs []song.Song `mapstructure:"availableSongs"`
	SearchQuery    string      `mapstructure:"searchQuery"`
}

func decodeState(v any) (stateView, error) {
	var st stateView
	if err := mapstructure.Decode(v, &st); err != nil {
		return stateView{}, errors.Wrap(err, "failed to decode state")
	}
	return st, nil
}
