// Package main provides the remote control CLI for the playback daemon.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/alecthomas/kingpin/v2"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"

	apiconnect "github.com/interfect/Kruna/internal/api/connect"
	"github.com/interfect/Kruna/internal/app/ipc"
	"github.com/interfect/Kruna/internal/app/notification"
	"github.com/interfect/Kruna/internal/domain/song"
)

var (
	app     = kingpin.New("krunactl", "Kruna remote control")
	server  = app.Flag("server", "Daemon address").Default("http://localhost:8080").String()
	token   = app.Flag("token", "Bridge token").Envar("KRUNA_BRIDGE_TOKEN").String()
	timeout = app.Flag("timeout", "Time to wait for replies").Default("10s").Duration()

	playCmd   = app.Command("play", "Start playback, optionally at a playlist index")
	playIndex = playCmd.Arg("index", "Playlist index").Default("-1").Int()

	pauseCmd = app.Command("pause", "Pause playback")
	nextCmd  = app.Command("next", "Skip to the next entry")
	prevCmd  = app.Command("prev", "Go back to the previous entry")

	enqueueCmd = app.Command("enqueue", "Append an available song to the playlist")
	enqueueRef = enqueueCmd.Arg("ref", "Index into the available songs").Required().Int()

	removeCmd   = app.Command("remove", "Remove a playlist entry")
	removeIndex = removeCmd.Arg("index", "Playlist index").Required().Int()

	searchCmd   = app.Command("search", "Search the catalog and replace the available songs")
	searchQuery = searchCmd.Arg("query", "Search query (tag:, similar:, playlist: prefixes are provider specific)").Default("").String()

	replaceCmd  = app.Command("replace", "Replace the playlist with the given song URLs")
	replaceURLs = replaceCmd.Arg("urls", "Song URLs").Required().Strings()

	statusCmd = app.Command("status", "Print the current state")
	watchCmd  = app.Command("watch", "Print notifications until interrupted")
)

// errDone stops a subscription without reporting an error.
var errDone = errors.New("done")

func main() {
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	client := apiconnect.NewClient(http.DefaultClient, *server, *token)

	var err error
	switch command {
	case playCmd.FullCommand():
		if *playIndex >= 0 {
			err = send(ctx, client, ipc.Play, *playIndex)
		} else {
			err = send(ctx, client, ipc.Play)
		}
	case pauseCmd.FullCommand():
		err = send(ctx, client, ipc.Pause)
	case nextCmd.FullCommand():
		err = send(ctx, client, ipc.SkipAhead)
	case prevCmd.FullCommand():
		err = send(ctx, client, ipc.SkipBack)
	case enqueueCmd.FullCommand():
		err = send(ctx, client, ipc.Enqueue, *enqueueRef)
	case removeCmd.FullCommand():
		err = send(ctx, client, ipc.Remove, *removeIndex)
	case replaceCmd.FullCommand():
		songs := make([]song.Song, len(*replaceURLs))
		for i, u := range *replaceURLs {
			songs[i] = song.Song{Title: u, URL: u}
		}
		err = send(ctx, client, ipc.Replace, song.ListToAny(songs))
	case searchCmd.FullCommand():
		err = search(ctx, client, *searchQuery)
	case statusCmd.FullCommand():
		err = status(ctx, client)
	case watchCmd.FullCommand():
		err = watch(ctx, client)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func send(ctx context.Context, client *apiconnect.Client, name string, args ...any) error {
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()
	return client.Send(ctx, name, args...)
}

// search sends the query once the subscription is live and prints the
// songs notification that answers it.
func search(ctx context.Context, client *apiconnect.Client, query string) error {
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	err := client.Subscribe(ctx, func(n notification.Decoded) error {
		switch n.Name {
		case ipc.State:
			if err := client.Send(ctx, ipc.Search, query); err != nil {
				return err
			}
		case ipc.Songs:
			if len(n.Args) == 0 {
				return errors.New("songs notification without a list")
			}
			songs, err := song.ListFromAny(n.Args[0])
			if err != nil {
				return err
			}
			printSongs(songs)
			return errDone
		}
		return nil
	})
	if errors.Is(err, errDone) {
		return nil
	}
	if err == nil && ctx.Err() != nil {
		return errors.Newf("no search result within %s", *timeout)
	}
	return err
}

func status(ctx context.Context, client *apiconnect.Client) error {
	ctx, cancel := context.WithTimeout(ctx, *timeout)
	defer cancel()

	err := client.Subscribe(ctx, func(n notification.Decoded) error {
		if n.Name != ipc.State || len(n.Args) == 0 {
			return nil
		}
		printState(n.Args[0])
		return errDone
	})
	if errors.Is(err, errDone) {
		return nil
	}
	return err
}

func watch(ctx context.Context, client *apiconnect.Client) error {
	fmt.Println("Watching notifications. Press Ctrl+C to exit.")
	return client.Subscribe(ctx, func(n notification.Decoded) error {
		printNotification(n)
		return nil
	})
}

func printNotification(n notification.Decoded) {
	fmt.Printf("[%d] ", n.Sequence)
	switch n.Name {
	case ipc.State:
		fmt.Println("state")
		if len(n.Args) > 0 {
			printState(n.Args[0])
		}
	case ipc.Songs:
		fmt.Println("songs")
		if len(n.Args) > 0 {
			if songs, err := song.ListFromAny(n.Args[0]); err == nil {
				printSongs(songs)
			}
		}
	case ipc.Duration, ipc.Progress:
		var ms float64
		if len(n.Args) > 0 {
			ms, _ = ipc.Number(n.Args[0])
		}
		fmt.Printf("%s %s\n", n.Name, formatMs(ms))
	default:
		fmt.Printf("%s %v\n", n.Name, n.Args)
	}
}

func printSongs(songs []song.Song) {
	if len(songs) == 0 {
		fmt.Println("  (no songs)")
		return
	}
	for i, s := range songs {
		fmt.Printf("  %3d  %s\n", i, describe(s))
	}
}

func printState(v any) {
	st, err := decodeState(v)
	if err != nil {
		fmt.Printf("  unreadable state: %v\n", err)
		return
	}

	fmt.Printf("  %s  %s / %s\n", st.Playback.State, formatMs(st.Playback.Progress), formatMs(st.Playback.Duration))
	if st.SearchQuery != "" {
		fmt.Printf("  search: %q (%d songs)\n", st.SearchQuery, len(st.AvailableSongs))
	} else {
		fmt.Printf("  available songs: %d\n", len(st.AvailableSongs))
	}
	if len(st.Playlist) == 0 {
		fmt.Println("  playlist is empty")
		return
	}
	for i, e := range st.Playlist {
		marker := " "
		if i == int(st.PlayingIndex) {
			marker = ">"
		}
		fmt.Printf("  %s %3d  %s\n", marker, i, describe(e.Song))
	}
}

func describe(s song.Song) string {
	switch {
	case s.Artist != "" && s.Title != "":
		return s.Artist + " - " + s.Title
	case s.Title != "":
		return s.Title
	default:
		return s.URL
	}
}

func formatMs(ms float64) string {
	return time.Duration(ms * float64(time.Millisecond)).Truncate(time.Second).String()
}
