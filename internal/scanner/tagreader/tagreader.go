// Package tagreader adapts github.com/dhowden/tag to the Reader interface ScanFiles
// depends on, keeping the concrete tag library out of the scanner's core logic.
package tagreader

import (
	"fmt"
	"os"
	"time"

	"github.com/dhowden/tag"
)

// ParsedTrack is everything ScanFiles needs from one audio file, independent of the
// concrete tag library.
type ParsedTrack struct {
	Title              string
	Artist             string
	AlbumArtist        string
	Album              string
	Composer           string
	Lyricist           string
	TrackNumber        int
	TotalTracks        int
	DiscNumber         int
	TotalDiscs         int
	Duration           time.Duration
	HasEmbeddedArtwork bool
	Genre              string
}

// Reader parses an audio file's tag metadata. DefaultReader never sets Duration:
// dhowden/tag exposes no duration field, so its ParsedTrack has a zero Duration,
// which the caller (ScanFiles) treats as a BadAudioDuration scan error. Only an
// implementation with its own duration source (e.g. an ffprobe collaborator) yields
// a non-zero Duration.
type Reader interface {
	Read(path string) (ParsedTrack, error)
}

// DefaultReader is the dhowden/tag-backed Reader.
type DefaultReader struct{}

func (DefaultReader) Read(path string) (ParsedTrack, error) {
	f, err := os.Open(path)
	if err != nil {
		return ParsedTrack{}, fmt.Errorf("tagreader: open %q: %w", path, err)
	}
	defer f.Close()

	md, err := tag.ReadFrom(f)
	if err != nil {
		return ParsedTrack{}, fmt.Errorf("tagreader: parse %q: %w", path, err)
	}

	track, totalTracks := md.Track()
	disc, totalDiscs := md.Disc()

	return ParsedTrack{
		Title:              md.Title(),
		Artist:             md.Artist(),
		AlbumArtist:        md.AlbumArtist(),
		Album:              md.Album(),
		Composer:           md.Composer(),
		TrackNumber:        track,
		TotalTracks:        totalTracks,
		DiscNumber:         disc,
		TotalDiscs:         totalDiscs,
		HasEmbeddedArtwork: md.Picture() != nil,
		Genre:              md.Genre(),
	}, nil
}
