package store

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/kaptinlin/jsonschema"
)

// Store is the whole session store: root metadata plus all session records.
// Meta holds every root field other than "sessions", preserved unchanged
// across a maintenance pass.
type Store struct {
	Meta     map[string]any
	Sessions []Session
}

// Session pairs an opaque id with its record. The id may be a JSON string or
// number; it is kept as raw bytes so the original form survives a rewrite.
type Session struct {
	ID   json.RawMessage `json:"id"`
	Data *Record         `json:"data"`
}

// IDString renders the session id for logs and reports, unquoting string
// ids and leaving numeric ids as written.
func (s Session) IDString() string {
	var str string
	if err := json.Unmarshal(s.ID, &str); err == nil {
		return str
	}
	return string(s.ID)
}

// storeSchema constrains the top-level store shape. Record contents are
// deliberately unconstrained; legacy shapes are the migrator's business.
const storeSchema = `{
	"type": "object",
	"required": ["sessions"],
	"properties": {
		"sessions": {
			"type": "array",
			"items": {
				"type": "object",
				"required": ["id"],
				"properties": {
					"id": {"type": ["string", "number"]},
					"data": {"type": "object"}
				}
			}
		}
	}
}`

var (
	schemaOnce     sync.Once
	compiledSchema *jsonschema.Schema
	schemaErr      error
)

func topShapeSchema() (*jsonschema.Schema, error) {
	schemaOnce.Do(func() {
		compiler := jsonschema.NewCompiler()
		compiledSchema, schemaErr = compiler.Compile([]byte(storeSchema))
	})
	return compiledSchema, schemaErr
}

// Decode parses raw store bytes. It returns MalformedStoreError if the
// payload is not a JSON object or lacks a valid sessions array.
func Decode(raw []byte) (*Store, error) {
	var root map[string]json.RawMessage
	if err := json.Unmarshal(raw, &root); err != nil {
		return nil, &MalformedStoreError{Reason: "not a JSON object", Err: err}
	}

	schema, err := topShapeSchema()
	if err != nil {
		return nil, fmt.Errorf("compile store schema: %w", err)
	}
	if result := schema.ValidateJSON(raw); !result.IsValid() {
		return nil, &MalformedStoreError{Reason: fmt.Sprintf("invalid store shape: %v", result.Errors)}
	}

	var sessions []Session
	if err := json.Unmarshal(root["sessions"], &sessions); err != nil {
		return nil, &MalformedStoreError{Reason: "invalid sessions array", Err: err}
	}
	for i := range sessions {
		if sessions[i].Data == nil {
			sessions[i].Data = &Record{}
		}
	}
	delete(root, "sessions")

	s := &Store{Sessions: sessions}
	if len(root) > 0 {
		s.Meta = make(map[string]any, len(root))
		for k, v := range root {
			var val any
			if err := json.Unmarshal(v, &val); err != nil {
				return nil, &MalformedStoreError{Reason: "invalid root metadata", Err: err}
			}
			s.Meta[k] = val
		}
	}
	return s, nil
}

// Encode renders the store back to bytes. Root metadata is written alongside
// the sessions array unchanged; Decode(Encode(s)) is value-equal to s.
func Encode(s *Store) ([]byte, error) {
	out := make(map[string]any, len(s.Meta)+1)
	for k, v := range s.Meta {
		out[k] = v
	}
	sessions := s.Sessions
	if sessions == nil {
		sessions = []Session{}
	}
	out["sessions"] = sessions

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("encode session store: %w", err)
	}
	return data, nil
}

// LoadFile reads and decodes the store at path, returning the decoded store
// together with the raw file bytes (the backup source). A missing file is
// reported as StoreNotFoundError.
func LoadFile(path string) (*Store, []byte, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil, &StoreNotFoundError{Path: path}
		}
		return nil, nil, fmt.Errorf("read session store: %w", err)
	}
	s, err := Decode(raw)
	if err != nil {
		return nil, nil, err
	}
	return s, raw, nil
}
