package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/dmitrymomot/permalink"
	"github.com/dmitrymomot/permalink/pkg/document"
)

type parentRef struct {
	Type     string `json:"type"`
	Key      string `json:"key"`
	Relation string `json:"relation"`
}

type createRequest struct {
	Fields map[string]any `json:"fields"`
	Parent *parentRef     `json:"parent,omitempty"`
}

type updateRequest struct {
	Fields map[string]any `json:"fields"`
}

type recordResponse struct {
	ID         string         `json:"id"`
	Type       string         `json:"type"`
	ParentID   string         `json:"parent_id,omitempty"`
	Relation   string         `json:"relation,omitempty"`
	Identifier string         `json:"identifier"`
	Slugs      []string       `json:"slugs"`
	Fields     map[string]any `json:"fields"`
}

func (a *api) create(w http.ResponseWriter, r *http.Request) {
	typeName := chi.URLParam(r, "type")

	var req createRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	doc, err := a.newDocument(r, typeName, req)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	if err := a.engine.Save(r.Context(), doc); err != nil {
		a.fail(w, r, err)
		return
	}

	a.respond(w, r, http.StatusCreated, doc)
}

func (a *api) newDocument(r *http.Request, typeName string, req createRequest) (*document.Document, error) {
	reg := a.engine.Registry()
	if _, err := reg.PolicyFor(typeName); err != nil {
		return nil, err
	}
	if !reg.IsEmbedded(typeName) {
		return document.New(typeName, req.Fields), nil
	}

	if req.Parent == nil || req.Parent.Type == "" || req.Parent.Key == "" || req.Parent.Relation == "" {
		return nil, ErrParentRequired
	}
	root, err := a.engine.Root(req.Parent.Type)
	if err != nil {
		return nil, err
	}
	parent, err := a.engine.Find(r.Context(), root, req.Parent.Key)
	if err != nil {
		return nil, fmt.Errorf("parent %s/%s: %w", req.Parent.Type, req.Parent.Key, err)
	}
	return document.Embed(parent, req.Parent.Relation, typeName, req.Fields), nil
}

func (a *api) show(w http.ResponseWriter, r *http.Request) {
	doc, err := a.lookup(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	a.respond(w, r, http.StatusOK, doc)
}

func (a *api) update(w http.ResponseWriter, r *http.Request) {
	var req updateRequest
	if err := decode(w, r, &req); err != nil {
		a.fail(w, r, err)
		return
	}

	doc, err := a.lookup(r)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	doc.Merge(req.Fields)
	if err := a.engine.Save(r.Context(), doc); err != nil {
		a.fail(w, r, err)
		return
	}

	a.respond(w, r, http.StatusOK, doc)
}

func (a *api) backfill(w http.ResponseWriter, r *http.Request) {
	if a.enqueuer == nil {
		a.fail(w, r, ErrNoEnqueuer)
		return
	}
	typeName := chi.URLParam(r, "type")
	if _, err := a.engine.Registry().PolicyFor(typeName); err != nil {
		a.fail(w, r, err)
		return
	}

	enqueued, err := a.enqueuer.Enqueue(r.Context(), typeName)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]any{"type": typeName, "enqueued": enqueued})
}

// lookup resolves {type}/{key}. Embedded types are searched among the
// children of the parent named by the query string.
func (a *api) lookup(r *http.Request) (*document.Document, error) {
	typeName := chi.URLParam(r, "type")
	key := chi.URLParam(r, "key")

	reg := a.engine.Registry()
	root, err := a.engine.Root(typeName)
	if err != nil {
		return nil, err
	}
	if reg.IsEmbedded(typeName) {
		q := r.URL.Query()
		if q.Get("parent") == "" || q.Get("relation") == "" {
			return nil, ErrParentRequired
		}
		root.Embedded = true
		root.ParentID = q.Get("parent")
		root.Relation = q.Get("relation")
	}

	return a.engine.Find(r.Context(), root, key)
}

// respond materializes a missing or legacy slug before writing the record.
func (a *api) respond(w http.ResponseWriter, r *http.Request, status int, doc *document.Document) {
	identifier, err := a.engine.ToIdentifier(r.Context(), doc)
	if err != nil {
		a.fail(w, r, err)
		return
	}
	p, err := a.engine.Registry().PolicyFor(doc.Type())
	if err != nil {
		a.fail(w, r, err)
		return
	}
	slugs, _ := permalink.SlugsOf(doc.Get(p.StorageField()))

	writeJSON(w, status, recordResponse{
		ID:         doc.ID(),
		Type:       doc.Type(),
		ParentID:   doc.ParentID(),
		Relation:   doc.Relation(),
		Identifier: identifier,
		Slugs:      slugs,
		Fields:     doc.Fields(),
	})
}

func decode(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(ErrBadRequest, err)
	}
	return nil
}
