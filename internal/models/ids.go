// Package models defines the catalog entities the core operates on.
//
// Handles are opaque, totally-ordered, hashable 64-bit identifiers assigned by the
// database. The core never dereferences a handle directly; all traversal goes through
// internal/store.
package models

import "github.com/google/uuid"

type TrackID int64
type ReleaseID int64
type ArtistID int64
type ArtworkID int64
type MediaLibraryID int64
type ClusterID int64
type ClusterTypeID int64

// MBID is a MusicBrainz identifier. The zero value (uuid.Nil) means "absent";
// callers should check Valid() rather than comparing to the zero UUID directly so the
// optional-UUID semantics stay explicit at call sites.
type MBID struct {
	uuid.UUID
	set bool
}

func NewMBID(id uuid.UUID) MBID { return MBID{UUID: id, set: true} }

func (m MBID) Valid() bool { return m.set }

func ParseMBID(s string) (MBID, error) {
	if s == "" {
		return MBID{}, nil
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return MBID{}, err
	}
	return NewMBID(id), nil
}
