package main

import (
	"bytes"
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/jwebster45206/flimo-world/internal/services"
	"github.com/jwebster45206/flimo-world/pkg/game"
	"github.com/jwebster45206/flimo-world/pkg/world"
	"gopkg.in/yaml.v3"
)

func main() {
	publish := flag.Bool("publish", false, "publish the game to the storage backend once it validates")
	storageURL := flag.String("storage-url", getEnv("STORAGE_API_URL", "http://localhost:8002"), "game storage backend base URL")
	imageDir := flag.String("images", "", "directory of images to upload with -publish")
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [-publish] [-storage-url URL] [-images DIR] <game.yaml|game.json>\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(1)
	}

	filename := flag.Arg(0)
	validator := &GameValidator{}

	doc, err := validator.validateFile(filename)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Validation failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Game file is valid! %d NPCs, %d locations.\n", len(doc.NPCs), len(doc.Locations))

	if !*publish {
		return
	}

	images, err := loadImages(*imageDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to read images: %v\n", err)
		os.Exit(1)
	}

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	store := services.NewGameStorageClient(*storageURL, services.DefaultHTTPTimeout, logger)

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()
	id, err := store.PublishGame(ctx, doc, images)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Publish failed: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("Published as %s\n", id)
}

type GameValidator struct {
	errors []string
}

// validateFile strictly decodes a game file and checks it. Unknown fields
// are errors, unlike game.LoadFile.
func (v *GameValidator) validateFile(filename string) (*game.Document, error) {
	fmt.Printf("Validating %s...\n", filename)

	baseName := filepath.Base(filename)
	ext := strings.ToLower(filepath.Ext(baseName))
	nameWithoutExt := strings.TrimSuffix(baseName, filepath.Ext(baseName))
	if !isValidGameFilename(nameWithoutExt) {
		return nil, fmt.Errorf("game filename '%s' must be lowercase kebab-case (e.g., dust-town.yaml)", baseName)
	}

	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read file %s: %w", filename, err)
	}

	var doc game.Document
	switch ext {
	case ".json":
		decoder := json.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("file %s failed strict JSON unmarshaling: %w", filename, err)
		}
	case ".yaml", ".yml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(&doc); err != nil {
			return nil, fmt.Errorf("file %s failed strict YAML unmarshaling: %w", filename, err)
		}
	default:
		return nil, fmt.Errorf("game file must have a .json, .yaml or .yml extension: %s", baseName)
	}
	if doc.ID == "" {
		doc.ID = nameWithoutExt
	}

	v.errors = nil
	v.validateGame(&doc)
	if len(v.errors) > 0 {
		return nil, fmt.Errorf("validation errors in %s:\n%s", filename, strings.Join(v.errors, "\n"))
	}
	return &doc, nil
}

func (v *GameValidator) validateGame(doc *game.Document) {
	if err := doc.Validate(); err != nil {
		for _, line := range strings.Split(err.Error(), "\n")[1:] {
			v.addError(line)
		}
	}

	v.validateIDFormat("game ID", doc.ID)
	v.validateIDFormat("nav world ID", doc.NavWorldID)

	seen := make(map[string]bool, len(doc.NPCs))
	for _, n := range doc.NPCs {
		if n.ID == "" {
			continue
		}
		v.validateIDFormat("NPC ID", n.ID)
		if seen[n.ID] {
			v.addError(fmt.Sprintf("NPC ID '%s' is used more than once", n.ID))
		}
		seen[n.ID] = true
	}

	// Without a location list the navigation backend owns the names.
	if len(doc.Locations) == 0 {
		for _, n := range doc.NPCs {
			if n.Location != "" {
				fmt.Printf("note: %s starts at %q, which the navigation backend must know\n", n.Name, n.Location)
			}
		}
	}
	for _, loc := range doc.Locations {
		if loc.Center == (world.Point{}) {
			v.addError(fmt.Sprintf("location '%s' has no center", loc.Name))
		}
	}
}

func (v *GameValidator) validateIDFormat(fieldName, id string) {
	if id == "" {
		return
	}

	if !isValidID(id) {
		v.addError(fmt.Sprintf("%s '%s' should be lowercase kebab-case", fieldName, id))
	}
}

func (v *GameValidator) addError(msg string) {
	v.errors = append(v.errors, "  - "+msg)
}

var (
	validIDRegex       = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)
	validFilenameRegex = regexp.MustCompile(`^[a-z][a-z0-9-]*[a-z0-9]$|^[a-z]$`)
)

func isValidID(id string) bool {
	return validIDRegex.MatchString(id)
}

func isValidGameFilename(name string) bool {
	// Allow 'x.' prefix for experimental games
	name = strings.TrimPrefix(name, "x.")
	return validFilenameRegex.MatchString(name)
}

// loadImages reads every regular file in dir, keyed by file name.
func loadImages(dir string) (map[string][]byte, error) {
	if dir == "" {
		return nil, nil
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	images := make(map[string][]byte)
	for _, e := range entries {
		if !e.Type().IsRegular() {
			continue
		}
		data, err := os.ReadFile(filepath.Join(dir, e.Name()))
		if err != nil {
			return nil, err
		}
		images[e.Name()] = data
	}
	return images, nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
