package models

import (
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	bolt "go.etcd.io/bbolt"
	"golang.org/x/crypto/sha3"

	"github.com/cfilipov/copilot-lexical/internal/db"
	"github.com/cfilipov/copilot-lexical/internal/editorstate"
)

const (
	revisionLength = 16 // bytes → 32 hex chars
	maxIDLength    = 128
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrRevisionMismatch = errors.New("document revision mismatch")
	ErrInvalidID        = errors.New("invalid document id")
)

// Document is a stored editor document. Revision is empty for a document
// that was never saved.
type Document struct {
	ID        string             `json:"id"`
	State     *editorstate.State `json:"state"`
	Revision  string             `json:"revision"`
	UpdatedAt time.Time          `json:"updatedAt,omitzero"`
}

type DocumentInfo struct {
	ID        string    `json:"id"`
	Revision  string    `json:"revision"`
	Size      int       `json:"size"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// documentRecord is the bbolt value. Content is kept as a string so that
// whatever was stored can be read back, even if it no longer parses.
type documentRecord struct {
	Content   string    `json:"content"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type DocumentStore struct {
	db *bolt.DB
}

func NewDocumentStore(database *bolt.DB) *DocumentStore {
	return &DocumentStore{db: database}
}

// ValidateID accepts 1..128 characters from [A-Za-z0-9._-].
func ValidateID(id string) error {
	if id == "" || len(id) > maxIDLength {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	for _, r := range id {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '_', r == '-':
		default:
			return fmt.Errorf("%w: %q", ErrInvalidID, id)
		}
	}
	return nil
}

// Revision returns the revision tag of serialized content.
func Revision(content []byte) string {
	sum := sha3.Sum256(content)
	return hex.EncodeToString(sum[:revisionLength])
}

// Get returns the document or nil if not found. Stored content that does not
// parse as an editor state loads as a single empty paragraph.
func (s *DocumentStore) Get(id string) (*Document, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var doc *Document
	err := s.db.View(func(tx *bolt.Tx) error {
		rec, err := getRecord(tx, id)
		if err != nil || rec == nil {
			return err
		}
		doc = rec.document(id)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("get document %q: %w", id, err)
	}
	return doc, nil
}

// GetOrEmpty returns the stored document, or an unsaved document holding a
// single empty paragraph.
func (s *DocumentStore) GetOrEmpty(id string) (*Document, error) {
	doc, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if doc == nil {
		doc = &Document{ID: id, State: editorstate.Empty()}
	}
	return doc, nil
}

// Put stores state under id. When ifRevision is non-empty the write only
// happens if the stored revision still matches it.
func (s *DocumentStore) Put(id string, state *editorstate.State, ifRevision string) (*Document, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	content, err := json.Marshal(state)
	if err != nil {
		return nil, fmt.Errorf("encode document %q: %w", id, err)
	}

	var doc *Document
	err = s.db.Update(func(tx *bolt.Tx) error {
		if ifRevision != "" {
			cur, err := getRecord(tx, id)
			if err != nil {
				return err
			}
			if cur == nil || Revision([]byte(cur.Content)) != ifRevision {
				return ErrRevisionMismatch
			}
		}
		rec := &documentRecord{Content: string(content), UpdatedAt: time.Now().UTC()}
		if err := putRecord(tx, id, rec); err != nil {
			return err
		}
		doc = &Document{ID: id, State: state, Revision: Revision(content), UpdatedAt: rec.UpdatedAt}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("put document %q: %w", id, err)
	}
	return doc, nil
}

// Update loads the document (empty if missing), applies fn and stores the
// result in one transaction. Nothing is written if fn returns an error.
func (s *DocumentStore) Update(id string, fn func(*editorstate.State) error) (*Document, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}
	var doc *Document
	err := s.db.Update(func(tx *bolt.Tx) error {
		cur, err := getRecord(tx, id)
		if err != nil {
			return err
		}
		state := editorstate.Empty()
		if cur != nil {
			state = editorstate.Load([]byte(cur.Content))
		}
		if err := fn(state); err != nil {
			return err
		}

		content, err := json.Marshal(state)
		if err != nil {
			return fmt.Errorf("encode: %w", err)
		}
		rec := &documentRecord{Content: string(content), UpdatedAt: time.Now().UTC()}
		if err := putRecord(tx, id, rec); err != nil {
			return err
		}
		doc = &Document{ID: id, State: state, Revision: Revision(content), UpdatedAt: rec.UpdatedAt}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("update document %q: %w", id, err)
	}
	return doc, nil
}

func (s *DocumentStore) Delete(id string) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(db.BucketDocuments)
		if b.Get([]byte(id)) == nil {
			return ErrDocumentNotFound
		}
		return b.Delete([]byte(id))
	})
	if err != nil {
		return fmt.Errorf("delete document %q: %w", id, err)
	}
	return nil
}

// List returns every stored document in id order.
func (s *DocumentStore) List() ([]DocumentInfo, error) {
	out := []DocumentInfo{}
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket(db.BucketDocuments).ForEach(func(k, v []byte) error {
			var rec documentRecord
			if err := json.Unmarshal(v, &rec); err != nil {
				return fmt.Errorf("decode %q: %w", k, err)
			}
			out = append(out, DocumentInfo{
				ID:        string(k),
				Revision:  Revision([]byte(rec.Content)),
				Size:      len(rec.Content),
				UpdatedAt: rec.UpdatedAt,
			})
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	return out, nil
}

// PutRaw stores content without validating it. Used when importing saved
// editor content produced elsewhere; bad content loads as an empty paragraph.
func (s *DocumentStore) PutRaw(id string, content []byte) error {
	if err := ValidateID(id); err != nil {
		return err
	}
	err := s.db.Update(func(tx *bolt.Tx) error {
		return putRecord(tx, id, &documentRecord{Content: string(content), UpdatedAt: time.Now().UTC()})
	})
	if err != nil {
		return fmt.Errorf("put raw document %q: %w", id, err)
	}
	return nil
}

func getRecord(tx *bolt.Tx, id string) (*documentRecord, error) {
	v := tx.Bucket(db.BucketDocuments).Get([]byte(id))
	if v == nil {
		return nil, nil
	}
	var rec documentRecord
	if err := json.Unmarshal(v, &rec); err != nil {
		return nil, fmt.Errorf("decode record: %w", err)
	}
	return &rec, nil
}

func putRecord(tx *bolt.Tx, id string, rec *documentRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	return tx.Bucket(db.BucketDocuments).Put([]byte(id), data)
}

func (rec *documentRecord) document(id string) *Document {
	return &Document{
		ID:        id,
		State:     editorstate.Load([]byte(rec.Content)),
		Revision:  Revision([]byte(rec.Content)),
		UpdatedAt: rec.UpdatedAt,
	}
}
