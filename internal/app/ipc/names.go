package ipc

// Commands sent by the UI to the playback core.
const (
	Play      = "play"      // play(index?)
	Pause     = "pause"     // pause()
	SkipAhead = "skipAhead" // skipAhead()
	SkipBack  = "skipBack"  // skipBack()
	Enqueue   = "enqueue"   // enqueue(songRef)
	Remove    = "remove"    // remove(index)
	Search    = "search"    // search(query); also forwarded core -> backend
	Replace   = "replace"   // replace(songs)
)

// Notifications sent by the playback core to the UI.
const (
	Duration = "duration" // duration(ms)
	Progress = "progress" // progress(ms)
	Ended    = "ended"    // ended()
	Songs    = "songs"    // songs(list); also sent backend -> core
	State    = "state"    // state(snapshot)
)

// Transport commands sent by the playback core to the session supervisor.
const (
	SessionStart    = "session.start"    // session.start(nonce, url, playNow)
	SessionStop     = "session.stop"     // session.stop()
	TransportPause  = "transport.pause"  // transport.pause()
	TransportResume = "transport.resume" // transport.resume()
)

// Transport events relayed by the session supervisor, tagged with the session nonce.
const (
	TransportDuration = "transport.duration" // transport.duration(nonce, ms)
	TransportProgress = "transport.progress" // transport.progress(nonce, ms)
	TransportEnded    = "transport.ended"    // transport.ended(nonce)
	TransportFailed   = "transport.failed"   // transport.failed(nonce, reason)
)
