package world

import (
	"strings"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// Profile is the summary of an NPC sent to the behaviour backend.
type Profile struct {
	Role  string `json:"role" yaml:"role"`
	Trait string `json:"trait" yaml:"trait"`
	Goal  string `json:"goal" yaml:"goal"`
}

// NPCRef identifies an NPC for the lifetime of a session.
type NPCRef struct {
	ID          string  `json:"id"`                 // local id, unique per session
	DisplayName string  `json:"display_name"`       // name shown to the player
	ExternalID  string  `json:"external_id"`        // slug the remote backends address
	Location    string  `json:"location,omitempty"` // starting location, if known
	Profile     Profile `json:"profile"`
}

// NewNPCRef derives the external id from the display name and assigns a
// local id when none is given.
func NewNPCRef(id, displayName, location string, profile Profile) NPCRef {
	if id == "" {
		id = uuid.New().String()
	}
	return NPCRef{
		ID:          id,
		DisplayName: displayName,
		ExternalID:  ExternalID(displayName),
		Location:    location,
		Profile:     profile,
	}
}

// ExternalID converts a display name into the slug used by the remote
// backends: lower case, periods removed, each whitespace run replaced by a
// single underscore.
func ExternalID(displayName string) string {
	// Casers carry state, so one is built per call.
	s := strings.ReplaceAll(cases.Lower(language.Und).String(displayName), ".", "")

	var b strings.Builder
	b.Grow(len(s))
	inSpace := false
	for _, r := range s {
		if isSlugSpace(r) {
			if !inSpace {
				b.WriteByte('_')
			}
			inSpace = true
			continue
		}
		inSpace = false
		b.WriteRune(r)
	}
	return b.String()
}

// isSlugSpace matches the whitespace the backends split names on: space
// separators, the ASCII controls tab through carriage return, the line and
// paragraph separators, and the byte order mark. U+0085 is not included.
func isSlugSpace(r rune) bool {
	switch r {
	case '\t', '\n', '\v', '\f', '\r', '\u2028', '\u2029', '\ufeff':
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

// Position is an NPC's on-screen placement as canvas percentages.
type Position struct {
	NPCID    string  `json:"npc_id"`
	XPct     float64 `json:"x_pct"`
	YPct     float64 `json:"y_pct"`
	Location string  `json:"location,omitempty"` // empty while between locations
}
