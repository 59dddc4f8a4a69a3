// Package game describes game documents kept by the game storage backend.
package game

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jwebster45206/flimo-world/pkg/world"
	"gopkg.in/yaml.v3"
)

// Summary is one entry of the published games listing.
type Summary struct {
	ID         string    `json:"id"`
	Title      string    `json:"title"`
	Summary    string    `json:"summary"`
	CoverImage string    `json:"coverImage"`
	NPCCount   int       `json:"npcCount"`
	CreatedAt  time.Time `json:"createdAt"`
}

// NPC is an NPC as authored in a game document.
type NPC struct {
	ID       string `json:"id,omitempty" yaml:"id,omitempty"`
	Name     string `json:"name" yaml:"name"`
	Location string `json:"location,omitempty" yaml:"location,omitempty"`
	Role     string `json:"role,omitempty" yaml:"role,omitempty"`
	Trait    string `json:"trait,omitempty" yaml:"trait,omitempty"`
	Goal     string `json:"goal,omitempty" yaml:"goal,omitempty"`
	Portrait string `json:"portrait,omitempty" yaml:"portrait,omitempty"` // image key
}

// Document is a full published game.
type Document struct {
	ID           string           `json:"id,omitempty" yaml:"id,omitempty"`
	Title        string           `json:"title" yaml:"title"`
	Summary      string           `json:"summary,omitempty" yaml:"summary,omitempty"`
	CoverImage   string           `json:"coverImage,omitempty" yaml:"cover_image,omitempty"`
	WorldSetting string           `json:"worldSetting" yaml:"world_setting"`
	NavWorldID   string           `json:"navWorldId" yaml:"nav_world_id"`
	Locations    []world.Location `json:"locations,omitempty" yaml:"locations,omitempty"` // optional; navigation backend is authoritative
	NPCs         []NPC            `json:"npcs" yaml:"npcs"`
	CreatedAt    time.Time        `json:"createdAt,omitempty" yaml:"-"`
}

// Refs builds the session's NPC references. Local ids come from the document
// when present.
func (d *Document) Refs() []world.NPCRef {
	refs := make([]world.NPCRef, 0, len(d.NPCs))
	for _, n := range d.NPCs {
		refs = append(refs, world.NewNPCRef(n.ID, n.Name, n.Location, world.Profile{
			Role:  n.Role,
			Trait: n.Trait,
			Goal:  n.Goal,
		}))
	}
	return refs
}

// Summarize returns the listing entry for the document.
func (d *Document) Summarize() Summary {
	return Summary{
		ID:         d.ID,
		Title:      d.Title,
		Summary:    d.Summary,
		CoverImage: d.CoverImage,
		NPCCount:   len(d.NPCs),
		CreatedAt:  d.CreatedAt,
	}
}

// Validate checks the document for problems that would break a session.
// Every problem is reported, not just the first.
func (d *Document) Validate() error {
	var problems []string

	if strings.TrimSpace(d.Title) == "" {
		problems = append(problems, "title is required")
	}
	if d.NavWorldID == "" {
		problems = append(problems, "navWorldId is required")
	}
	if len(d.NPCs) == 0 {
		problems = append(problems, "at least one npc is required")
	}

	locations := world.NewLocationIndex(d.Locations)
	if locations.Len() != len(d.Locations) {
		problems = append(problems, "location names must be unique")
	}
	for _, loc := range d.Locations {
		if loc.Name == "" {
			problems = append(problems, "location name cannot be empty")
		}
		if loc.Center.X < 0 || loc.Center.X > world.MapWidth || loc.Center.Y < 0 || loc.Center.Y > world.MapHeight {
			problems = append(problems, fmt.Sprintf("location %q center (%.0f, %.0f) is outside the %.0fx%.0f map", loc.Name, loc.Center.X, loc.Center.Y, world.MapWidth, world.MapHeight))
		}
	}

	seen := make(map[string]string, len(d.NPCs))
	for i, n := range d.NPCs {
		slug := world.ExternalID(n.Name)
		if slug == "" {
			problems = append(problems, fmt.Sprintf("npc %d has no usable name", i))
			continue
		}
		if other, dup := seen[slug]; dup {
			problems = append(problems, fmt.Sprintf("npcs %q and %q share the external id %q", other, n.Name, slug))
		}
		seen[slug] = n.Name
		if n.Location != "" && locations.Len() > 0 && !locations.IsValid(n.Location) {
			problems = append(problems, fmt.Sprintf("npc %q starts at unknown location %q", n.Name, n.Location))
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("invalid game document:\n%s", strings.Join(problems, "\n"))
	}
	return nil
}

// LoadFile reads a game document from a .json, .yaml or .yml file.
func LoadFile(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read game file: %w", err)
	}

	var doc Document
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse game JSON: %w", err)
		}
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("failed to parse game YAML: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported game file extension: %s", filepath.Ext(path))
	}

	if doc.ID == "" {
		doc.ID = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	return &doc, nil
}
