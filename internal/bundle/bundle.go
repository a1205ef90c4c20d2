// Package bundle moves one project and its accounts in and out of a vault
// as a plaintext JSON file.
//
// Projects live under the logical key "projects" as an array of objects
// with an "id". Accounts live under "accounts" and point at their project
// through "projectId". Records are otherwise opaque and are carried with
// every field intact.
package bundle

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Version is the bundle format written by Export
const Version = 1

const (
	projectsKey = "projects"
	accountsKey = "accounts"
)

var (
	ErrProjectNotFound = errors.New("project not found")
	ErrProjectExists   = errors.New("project already exists")
	ErrInvalidBundle   = errors.New("invalid bundle")
)

// Record is one project or account object
type Record map[string]any

// ID returns the record's "id" field, or "" when missing or not a string
func (r Record) ID() string {
	id, _ := r["id"].(string)
	return id
}

func (r Record) projectID() string {
	id, _ := r["projectId"].(string)
	return id
}

// Bundle is the exported form of one project
type Bundle struct {
	Version    int       `json:"version"`
	ExportedAt time.Time `json:"exportedAt"`
	Project    Record    `json:"project"`
	Accounts   []Record  `json:"accounts"`
}

// Store is the part of the data facade bundles need
type Store interface {
	Get(ctx context.Context, key string) (json.RawMessage, error)
	Set(ctx context.Context, key string, v any) error
}

// Parse decodes and validates a bundle file. Numbers keep their exact text.
func Parse(data []byte) (*Bundle, error) {
	var b Bundle
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidBundle, err)
	}
	if err := b.validate(); err != nil {
		return nil, err
	}
	return &b, nil
}

func (b *Bundle) validate() error {
	if b.Version != Version {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidBundle, b.Version)
	}
	if b.Project == nil || b.Project.ID() == "" {
		return fmt.Errorf("%w: project id is missing", ErrInvalidBundle)
	}
	for i, a := range b.Accounts {
		if a == nil {
			return fmt.Errorf("%w: account %d is null", ErrInvalidBundle, i)
		}
	}
	return nil
}

// Marshal encodes the bundle as indented JSON
func (b *Bundle) Marshal() ([]byte, error) {
	return json.MarshalIndent(b, "", "  ")
}

func loadRecords(ctx context.Context, s Store, key string) ([]Record, error) {
	raw, err := s.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	if raw == nil {
		return nil, nil
	}
	var records []Record
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&records); err != nil {
		return nil, fmt.Errorf("%s is not an array of objects: %w", key, err)
	}
	return records, nil
}

func findRecord(records []Record, id string) int {
	for i, r := range records {
		if r.ID() == id {
			return i
		}
	}
	return -1
}

// Export builds the bundle of projectID from the store
func Export(ctx context.Context, s Store, projectID string, now time.Time) (*Bundle, error) {
	projects, err := loadRecords(ctx, s, projectsKey)
	if err != nil {
		return nil, err
	}
	i := findRecord(projects, projectID)
	if i < 0 {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, projectID)
	}

	accounts, err := loadRecords(ctx, s, accountsKey)
	if err != nil {
		return nil, err
	}

	b := &Bundle{
		Version:    Version,
		ExportedAt: now.UTC(),
		Project:    projects[i],
		Accounts:   []Record{},
	}
	for _, a := range accounts {
		if a.projectID() == projectID {
			b.Accounts = append(b.Accounts, a)
		}
	}
	return b, nil
}

// ImportResult counts what Import changed
type ImportResult struct {
	ProjectID        string
	ProjectReplaced  bool
	AccountsAdded    int
	AccountsReplaced int
}

// Import writes the bundle's project and accounts into the store. An
// existing project with the same id is only replaced when overwrite is
// set. Accounts are matched by id; accounts without one get a new id.
// Every imported account is attached to the bundle's project.
func Import(ctx context.Context, s Store, b *Bundle, overwrite bool) (*ImportResult, error) {
	if err := b.validate(); err != nil {
		return nil, err
	}
	projectID := b.Project.ID()

	projects, err := loadRecords(ctx, s, projectsKey)
	if err != nil {
		return nil, err
	}
	accounts, err := loadRecords(ctx, s, accountsKey)
	if err != nil {
		return nil, err
	}

	res := &ImportResult{ProjectID: projectID}
	if i := findRecord(projects, projectID); i >= 0 {
		if !overwrite {
			return nil, fmt.Errorf("%w: %s", ErrProjectExists, projectID)
		}
		projects[i] = b.Project
		res.ProjectReplaced = true
	} else {
		projects = append(projects, b.Project)
	}

	for _, a := range b.Accounts {
		incoming := make(Record, len(a)+1)
		for k, v := range a {
			incoming[k] = v
		}
		incoming["projectId"] = projectID
		if incoming.ID() == "" {
			incoming["id"] = uuid.NewString()
		}

		if j := findRecord(accounts, incoming.ID()); j >= 0 {
			accounts[j] = incoming
			res.AccountsReplaced++
			continue
		}
		accounts = append(accounts, incoming)
		res.AccountsAdded++
	}

	// Accounts first: a project without its accounts is the worse partial state
	if err := s.Set(ctx, accountsKey, accounts); err != nil {
		return nil, fmt.Errorf("failed to store accounts: %w", err)
	}
	if err := s.Set(ctx, projectsKey, projects); err != nil {
		return nil, fmt.Errorf("failed to store projects: %w", err)
	}
	return res, nil
}
