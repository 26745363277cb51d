// Package scraper reads host world metadata straight off disk, for setup and
// discovery when the host's live API is unreachable. Pure filesystem reads;
// no network dependency.
package scraper

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	"sheetbridge.dev/internal/errs"
)

const descriptorFile = "world.json"

// worldDescriptor mirrors the host's on-disk world.json.
type worldDescriptor struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	System      string `json:"system"`
	CoreVersion string `json:"coreVersion"`
	Background  string `json:"background"`
	Description string `json:"description"`
}

type DiscoveredWorld struct {
	ID     string `json:"id"`
	Title  string `json:"title"`
	System string `json:"system"`
	Path   string `json:"path"`
}

type UserRecord struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Role int    `json:"role"`
}

// WorldRecord is immutable once scraped; callers cache it themselves.
type WorldRecord struct {
	ID          string       `json:"id"`
	Title       string       `json:"title"`
	System      string       `json:"system"`
	Version     string       `json:"version"`
	Background  string       `json:"background,omitempty"`
	Description string       `json:"description,omitempty"`
	Users       []UserRecord `json:"users"`
}

func readDescriptor(worldPath string) (worldDescriptor, error) {
	var d worldDescriptor
	b, err := os.ReadFile(filepath.Join(worldPath, descriptorFile))
	if err != nil {
		return d, err
	}
	if err := json.Unmarshal(b, &d); err != nil {
		return d, fmt.Errorf("%s: %w", descriptorFile, err)
	}
	if d.ID == "" {
		return d, fmt.Errorf("%s: missing id", descriptorFile)
	}
	return d, nil
}

// Discover lists worlds under dataRoot. A dataRoot that is itself a single
// world (carries its own descriptor) is returned as a one-element list;
// otherwise the known child-directory conventions are scanned.
func Discover(dataRoot string) ([]DiscoveredWorld, error) {
	if d, err := readDescriptor(dataRoot); err == nil {
		return []DiscoveredWorld{{ID: d.ID, Title: d.Title, System: d.System, Path: dataRoot}}, nil
	}

	var out []DiscoveredWorld
	for _, base := range []string{filepath.Join(dataRoot, "worlds"), dataRoot} {
		entries, err := os.ReadDir(base)
		if err != nil {
			continue
		}
		for _, e := range entries {
			if !e.IsDir() {
				continue
			}
			p := filepath.Join(base, e.Name())
			d, err := readDescriptor(p)
			if err != nil {
				continue
			}
			out = append(out, DiscoveredWorld{ID: d.ID, Title: d.Title, System: d.System, Path: p})
		}
		if len(out) > 0 {
			break
		}
	}
	if len(out) == 0 {
		return nil, errs.E(errs.NotFound, "no worlds under %s", dataRoot)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// rawUser is the shape of one record in the world's user-account store.
type rawUser struct {
	ID   string `json:"_id"`
	Name string `json:"name"`
	Role int    `json:"role"`
}

// Scrape parses a world's descriptor and iterates its user-account key-value
// store read-only. A record that fails to decode is skipped, not fatal.
// Users come back sorted role-descending so GM detection downstream is a
// first-match scan.
func Scrape(worldPath string) (*WorldRecord, error) {
	d, err := readDescriptor(worldPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errs.E(errs.NotFound, "no world at %s", worldPath)
		}
		return nil, err
	}

	rec := &WorldRecord{
		ID:          d.ID,
		Title:       d.Title,
		System:      d.System,
		Version:     d.CoreVersion,
		Background:  d.Background,
		Description: d.Description,
		Users:       []UserRecord{},
	}

	users, err := scrapeUsers(filepath.Join(worldPath, "data", "users"))
	if err != nil {
		// A world without a user store is still a valid scrape target.
		if os.IsNotExist(err) {
			return rec, nil
		}
		return nil, fmt.Errorf("user store: %w", err)
	}
	rec.Users = users
	return rec, nil
}

func scrapeUsers(storePath string) ([]UserRecord, error) {
	if _, err := os.Stat(storePath); err != nil {
		return nil, err
	}
	db, err := leveldb.OpenFile(storePath, &opt.Options{ReadOnly: true, ErrorIfMissing: true})
	if err != nil {
		return nil, err
	}
	defer db.Close()

	var out []UserRecord
	it := db.NewIterator(nil, nil)
	defer it.Release()
	for it.Next() {
		var u rawUser
		if err := json.Unmarshal(it.Value(), &u); err != nil {
			continue
		}
		if u.ID == "" {
			continue
		}
		out = append(out, UserRecord{ID: u.ID, Name: u.Name, Role: u.Role})
	}
	if err := it.Error(); err != nil {
		return nil, err
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Role != out[j].Role {
			return out[i].Role > out[j].Role
		}
		return out[i].Name < out[j].Name
	})
	return out, nil
}
