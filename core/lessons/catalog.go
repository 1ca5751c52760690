package lessons

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/koscakluka/ema-tutor/core/progress"
)

// Catalog is a set of records loaded from a fixture file and written to a
// store in one go.
type Catalog struct {
	Courses    []Course    `json:"courses"`
	Users      []User      `json:"users"`
	Characters []Character `json:"characters"`
	Games      []Game      `json:"games"`
	Sessions   []Session   `json:"sessions"`
}

// LoadCatalogFile reads a YAML (or JSON, which is valid YAML) catalog.
func LoadCatalogFile(path string) (*Catalog, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	catalog, err := DecodeCatalog(f)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return catalog, nil
}

// DecodeCatalog decodes a YAML catalog.
//
// The document is decoded generically first and then re-decoded through its
// JSON form, so the records keep a single set of field names and phase
// content decodes into typed directives.
func DecodeCatalog(r io.Reader) (*Catalog, error) {
	var document any
	if err := yaml.NewDecoder(r).Decode(&document); err != nil {
		if err == io.EOF {
			return &Catalog{}, nil
		}
		return nil, fmt.Errorf("failed to decode catalog: %w", err)
	}

	data, err := json.Marshal(document)
	if err != nil {
		return nil, fmt.Errorf("failed to convert catalog: %w", err)
	}

	var catalog Catalog
	if err := json.Unmarshal(data, &catalog); err != nil {
		return nil, fmt.Errorf("failed to decode catalog records: %w", err)
	}
	if err := catalog.Validate(); err != nil {
		return nil, err
	}
	return &catalog, nil
}

// Validate checks the catalog is self consistent: courses are playable and
// sessions reference characters that exist.
func (c *Catalog) Validate() error {
	for i := range c.Courses {
		if err := c.Courses[i].Validate(); err != nil {
			return err
		}
	}

	characters := map[string]bool{}
	for _, character := range c.Characters {
		characters[character.Name] = true
	}
	for _, session := range c.Sessions {
		if session.ID == "" {
			return fmt.Errorf("session has no id")
		}
		for _, name := range []string{session.Teacher.Name, session.Classmate.Name} {
			if name != "" && !characters[name] {
				return fmt.Errorf("session %q references unknown character %q", session.ID, name)
			}
		}
	}
	return nil
}

// Seed writes every record of the catalog. Sessions without a status are
// written as not started with their voices resolved from the characters.
func (c *Catalog) Seed(ctx context.Context, records *Records) error {
	voices := map[string]string{}
	for i := range c.Characters {
		voices[c.Characters[i].Name] = c.Characters[i].VoiceID
		if err := records.PutCharacter(ctx, &c.Characters[i]); err != nil {
			return err
		}
	}
	for i := range c.Courses {
		course := &c.Courses[i]
		if course.Stats == nil {
			stats := course.ComputeStats()
			course.Stats = &stats
		}
		if err := records.PutCourse(ctx, course); err != nil {
			return err
		}
	}
	for i := range c.Users {
		if err := records.PutUser(ctx, &c.Users[i]); err != nil {
			return err
		}
	}
	for i := range c.Games {
		if err := records.PutGame(ctx, &c.Games[i]); err != nil {
			return err
		}
	}
	for i := range c.Sessions {
		session := &c.Sessions[i]
		if session.Status == "" {
			session.Status = progress.StatusNotStarted
		}
		if session.CreatedAt.IsZero() {
			session.CreatedAt = time.Now().UTC()
		}
		for _, ref := range []*CharacterRef{&session.Teacher, &session.Classmate} {
			if ref.VoiceID == "" {
				ref.VoiceID = voices[ref.Name]
			}
		}
		if err := records.PutSession(ctx, session); err != nil {
			return err
		}
	}

	logger.Info("seeded catalog",
		"courses", len(c.Courses),
		"users", len(c.Users),
		"characters", len(c.Characters),
		"games", len(c.Games),
		"sessions", len(c.Sessions))
	return nil
}
