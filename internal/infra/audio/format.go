package audio

import (
	"bytes"
	"io"

	"github.com/cockroachdb/errors"
	"github.com/gopxl/beep/v2"
	"github.com/gopxl/beep/v2/flac"
	"github.com/gopxl/beep/v2/mp3"
	"github.com/gopxl/beep/v2/vorbis"
	"github.com/gopxl/beep/v2/wav"
)

// Container is an audio container format recognised by its leading bytes.
type Container string

const (
	ContainerMP3    Container = "mp3"
	ContainerFLAC   Container = "flac"
	ContainerVorbis Container = "vorbis"
	ContainerWAV    Container = "wav"
)

// sniffLen is the number of bytes Sniff needs.
const sniffLen = 4

// Sniff guesses the container from the first bytes of a stream.
// Anything unrecognised is treated as MP3, which has no reliable magic.
func Sniff(header []byte) Container {
	switch {
	case bytes.HasPrefix(header, []byte("fLaC")):
		return ContainerFLAC
	case bytes.HasPrefix(header, []byte("OggS")):
		return ContainerVorbis
	case bytes.HasPrefix(header, []byte("RIFF")):
		return ContainerWAV
	default:
		return ContainerMP3
	}
}

func decode(c Container, rc io.ReadCloser) (beep.StreamSeekCloser, beep.Format, error) {
	var (
		s   beep.StreamSeekCloser
		f   beep.Format
		err error
	)
	switch c {
	case ContainerFLAC:
		s, f, err = flac.Decode(rc)
	case ContainerVorbis:
		s, f, err = vorbis.Decode(rc)
	case ContainerWAV:
		s, f, err = wav.Decode(rc)
	default:
		s, f, err = mp3.Decode(rc)
	}
	if err != nil {
		return nil, beep.Format{}, errors.Wrapf(err, "failed to decode %s stream", c)
	}
	return s, f, nil
}
