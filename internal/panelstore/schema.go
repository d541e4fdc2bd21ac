package panelstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/regenrek/panelctx/internal/panel"
)

const (
	// CurrentSchemaVersion is written by Save.
	CurrentSchemaVersion = 2
	schemaV1             = 1
)

// Record is the persisted form of a panel. Name is the durable key.
type Record struct {
	Name     string         `json:"name"`
	Location panel.Location `json:"location"`
	Commands []string       `json:"commands"`
}

// RecordOf strips the process-bound fields of p.
func RecordOf(p panel.Panel) Record {
	c := p.Clone()
	return Record{Name: c.Name, Location: c.Location, Commands: c.Commands}
}

type document struct {
	SchemaVersion int       `json:"schemaVersion"`
	SavedAt       time.Time `json:"savedAt"`
	Panels        []Record  `json:"panels"`
}

type header struct {
	SchemaVersion *int `json:"schemaVersion"`
}

// v1 stored the split path as a comma string and named commands "cmds".
type documentV1 struct {
	SchemaVersion int        `json:"schemaVersion"`
	Panels        []recordV1 `json:"panels"`
}

type recordV1 struct {
	Name     string `json:"name"`
	Location struct {
		Window string `json:"window"`
		Tab    string `json:"tab"`
		Split  string `json:"split"`
	} `json:"location"`
	Cmds []string `json:"cmds"`
}

func decode(data []byte) ([]Record, error) {
	var h header
	if err := json.Unmarshal(data, &h); err != nil {
		return nil, fmt.Errorf("%w: %v", panel.ErrStoreCorrupt, err)
	}
	if h.SchemaVersion == nil {
		return nil, fmt.Errorf("%w: missing schemaVersion", panel.ErrStoreCorrupt)
	}
	switch v := *h.SchemaVersion; {
	case v == CurrentSchemaVersion:
		var doc document
		if err := json.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("%w: %v", panel.ErrStoreCorrupt, err)
		}
		return doc.Panels, nil
	case v == schemaV1:
		return migrateV1(data)
	case v > CurrentSchemaVersion:
		return nil, fmt.Errorf("%w: schema %d (newest known %d)", panel.ErrUnsupportedVersion, v, CurrentSchemaVersion)
	default:
		return nil, fmt.Errorf("%w: invalid schemaVersion %d", panel.ErrStoreCorrupt, v)
	}
}

func migrateV1(data []byte) ([]Record, error) {
	var doc documentV1
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("%w: %v", panel.ErrStoreCorrupt, err)
	}
	out := make([]Record, 0, len(doc.Panels))
	for _, old := range doc.Panels {
		split, err := panel.ParseSplit(old.Location.Split)
		if err != nil {
			return nil, fmt.Errorf("%w: panel %q: %v", panel.ErrStoreCorrupt, old.Name, err)
		}
		out = append(out, Record{
			Name:     old.Name,
			Location: panel.Location{Window: old.Location.Window, Tab: old.Location.Tab, Split: split},
			Commands: old.Cmds,
		})
	}
	return out, nil
}

func encode(records []Record, now time.Time) ([]byte, error) {
	doc := document{SchemaVersion: CurrentSchemaVersion, SavedAt: now.UTC(), Panels: records}
	if doc.Panels == nil {
		doc.Panels = []Record{}
	}
	for i := range doc.Panels {
		if doc.Panels[i].Commands == nil {
			doc.Panels[i].Commands = []string{}
		}
	}
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// validate rejects records a Save could never have produced.
func validate(records []Record) error {
	seen := make(panel.NameSet, len(records))
	for i, rec := range records {
		p := panel.Panel{Name: rec.Name, Location: rec.Location, Commands: rec.Commands}
		if err := panel.Validate(p, seen, panel.ValidateOptions{}); err != nil {
			return fmt.Errorf("%w: record %d: %v", panel.ErrStoreCorrupt, i, err)
		}
		seen[rec.Name] = struct{}{}
	}
	return nil
}
