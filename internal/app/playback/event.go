package playback

import "github.com/interfect/Kruna/internal/domain/song"

// Command is an input to the state machine.
type Command interface {
	command()
}

// Play starts playback, optionally at Index.
type Play struct {
	Index *int
}

// Pause pauses playback.
type Pause struct{}

// SkipAhead moves the cursor to the next entry.
type SkipAhead struct{}

// SkipBack moves the cursor to the previous entry.
type SkipBack struct{}

// Enqueue appends AvailableSongs[Ref] to the playlist.
type Enqueue struct {
	Ref int
}

// Remove deletes the playlist entry at Index.
type Remove struct {
	Index int
}

// SetAvailableSongs replaces the browsable catalog.
type SetAvailableSongs struct {
	Songs []song.Song
}

// ReplacePlaylist replaces the whole playlist with fresh entries.
type ReplacePlaylist struct {
	Songs []song.Song
}

// Search records the query and asks the backend to search the catalog.
type Search struct {
	Query string
}

// TransportDuration reports the duration of the session's track.
// Value is whatever arrived over the channel and is validated by the reducer.
type TransportDuration struct {
	Nonce int64
	Value any
}

// TransportProgress reports the playback position of the session's track.
type TransportProgress struct {
	Nonce int64
	Value any
}

// TransportEnded reports that the session's output is exhausted.
type TransportEnded struct {
	Nonce int64
}

// TransportFailed reports a decode, output or stream failure of a session.
type TransportFailed struct {
	Nonce  int64
	Reason string
}

func (Play) command()              {}
func (Pause) command()             {}
func (SkipAhead) command()         {}
func (SkipBack) command()          {}
func (Enqueue) command()           {}
func (Remove) command()            {}
func (SetAvailableSongs) command() {}
func (ReplacePlaylist) command()   {}
func (Search) command()            {}
func (TransportDuration) command() {}
func (TransportProgress) command() {}
func (TransportEnded) command()    {}
func (TransportFailed) command()   {}

// Effect is an output of the state machine.
type Effect interface {
	effect()
}

// StopSession tells the backend to stop the current session.
type StopSession struct{}

// StartSession tells the backend to start a session for URL.
type StartSession struct {
	Nonce   int64
	URL     string
	PlayNow bool
}

// PauseTransport pauses the current session's output.
type PauseTransport struct{}

// ResumeTransport resumes the current session's output.
type ResumeTransport struct{}

// SearchCatalog asks the backend for songs matching Query.
type SearchCatalog struct {
	Query string
}

// NotifyDuration forwards an accepted duration to the UI.
type NotifyDuration struct {
	Ms int64
}

// NotifyProgress forwards an accepted progress value to the UI.
type NotifyProgress struct {
	Ms int64
}

// NotifyEnded tells the UI the track finished.
type NotifyEnded struct{}

// NotifySongs forwards a new catalog listing to the UI.
type NotifySongs struct {
	Songs []song.Song
}

func (StopSession) effect()     {}
func (StartSession) effect()    {}
func (PauseTransport) effect()  {}
func (ResumeTransport) effect() {}
func (SearchCatalog) effect()   {}
func (NotifyDuration) effect()  {}
func (NotifyProgress) effect()  {}
func (NotifyEnded) effect()     {}
func (NotifySongs) effect()     {}
