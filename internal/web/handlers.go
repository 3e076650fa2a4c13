package web

import (
	"encoding/json"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/Roblox/rojo/internal/patch"
	"github.com/Roblox/rojo/internal/rojoerr"
	"github.com/Roblox/rojo/internal/search"
	"github.com/Roblox/rojo/internal/snapshot"
	"github.com/Roblox/rojo/internal/tree"
)

// infoResponse is the body of GET /api/rojo.
type infoResponse struct {
	SessionID       string   `json:"sessionId"`
	ServerVersion   string   `json:"serverVersion"`
	ProtocolVersion int      `json:"protocolVersion"`
	RootInstanceID  string   `json:"rootInstanceId"`
	ExpectedPlaceIDs []uint64 `json:"expectedPlaceIds"`
}

func (s *Server) handleInfo(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "protocol", "unknown route")
		return
	}

	writeJSON(w, http.StatusOK, infoResponse{
		SessionID:        s.deps.SessionID.String(),
		ServerVersion:    ServerVersion,
		ProtocolVersion:  ProtocolVersion,
		RootInstanceID:   s.deps.Tree.RootID().String(),
		ExpectedPlaceIDs: s.deps.Project.ServePlaceIDs,
	})
}

// instanceWire is the JSON shape of a single instance in /api/read
// responses: name/className/properties as stored, parent and ordered
// children by ID, matching the façade's camelCase wire format (spec §6).
type instanceWire struct {
	ID         string                      `json:"id"`
	ClassName  string                      `json:"className"`
	Name       string                      `json:"name"`
	Properties map[string]snapshot.Value   `json:"properties"`
	Parent     *string                     `json:"parent"`
	Children   []string                    `json:"children"`
}

type readResponse struct {
	SessionID     string                  `json:"sessionId"`
	MessageCursor uint32                  `json:"messageCursor"`
	Instances     map[string]instanceWire `json:"instances"`
}

// handleRead serves GET /api/read/<id,id,...>: each requested instance and
// every descendant, keyed by ID. Unknown IDs are silently omitted; a
// malformed ID in the list is a 400 (spec §4.I).
func (s *Server) handleRead(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "protocol", "unknown route")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/read/")
	if raw == "" {
		writeError(w, http.StatusBadRequest, "protocol", "no instance ids given")
		return
	}

	ids := make([]tree.ID, 0)
	for _, part := range strings.Split(raw, ",") {
		id, err := uuid.Parse(part)
		if err != nil {
			writeError(w, http.StatusBadRequest, "protocol", "malformed instance id: "+part)
			return
		}
		ids = append(ids, id)
	}

	instances := make(map[string]instanceWire)
	for _, id := range ids {
		s.collectInstance(id, instances)
	}

	writeJSON(w, http.StatusOK, readResponse{
		SessionID:     s.deps.SessionID.String(),
		MessageCursor: s.deps.Queue.Cursor(),
		Instances:     instances,
	})
}

func (s *Server) collectInstance(id tree.ID, out map[string]instanceWire) {
	if _, ok := out[id.String()]; ok {
		return
	}
	inst, ok := s.deps.Tree.Get(id)
	if !ok {
		return
	}

	var parent *string
	if inst.Parent != tree.NilID {
		p := inst.Parent.String()
		parent = &p
	}

	children := make([]string, 0, len(inst.Children))
	for _, c := range inst.Children {
		children = append(children, c.String())
	}

	out[id.String()] = instanceWire{
		ID:         id.String(),
		ClassName:  inst.ClassName,
		Name:       inst.Name,
		Properties: inst.Properties,
		Parent:     parent,
		Children:   children,
	}

	for _, c := range inst.Children {
		s.collectInstance(c, out)
	}
}

type subscribeResponse struct {
	MessageCursor uint32                     `json:"messageCursor"`
	Messages      []*patch.AppliedPatchSet   `json:"messages"`
}

// handleSubscribe serves GET /api/subscribe/<cursor>: a long-poll that
// resolves when new patches are available past cursor, or immediately if
// any already are (spec §4.G).
func (s *Server) handleSubscribe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "protocol", "unknown route")
		return
	}

	raw := strings.TrimPrefix(r.URL.Path, "/api/subscribe/")
	cursor, err := strconv.ParseUint(raw, 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "protocol", "malformed cursor: "+raw)
		return
	}

	newCursor, patches := s.deps.Queue.Subscribe(r.Context(), uint32(cursor))
	if patches == nil {
		patches = []*patch.AppliedPatchSet{}
	}

	writeJSON(w, http.StatusOK, subscribeResponse{MessageCursor: newCursor, Messages: patches})
}

// writeRequestBody mirrors patch.PatchSet but with JSON-friendly field
// names and string IDs, since tree.ID doesn't round-trip through JSON keys
// the way the internal package expects.
type writeRequestBody struct {
	Added []struct {
		ParentID string                       `json:"parentId"`
		Snapshot *snapshotWire                `json:"snapshot"`
	} `json:"added"`
	Removed []string `json:"removed"`
	Updated []struct {
		ID                string                       `json:"id"`
		ChangedName       *string                      `json:"changedName"`
		ChangedClassName  *string                      `json:"changedClassName"`
		ChangedProperties map[string]*snapshot.Value   `json:"changedProperties"`
	} `json:"updated"`
}

type snapshotWire struct {
	Name       string                    `json:"name"`
	ClassName  string                    `json:"className"`
	Properties map[string]snapshot.Value `json:"properties"`
	Children   []*snapshotWire           `json:"children"`
}

func (w *snapshotWire) toSnapshot() *snapshot.InstanceSnapshot {
	if w == nil {
		return nil
	}
	snap := snapshot.New(w.Name, w.ClassName)
	for k, v := range w.Properties {
		snap.Properties[k] = v
	}
	for _, c := range w.Children {
		snap.Children = append(snap.Children, c.toSnapshot())
	}
	return snap
}

// handleWrite serves POST /api/write: a client-generated PatchSet is
// enqueued on the ChangeProcessor's write channel and applied in order with
// filesystem events (spec §4.I, §4.H).
func (s *Server) handleWrite(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusNotFound, "protocol", "unknown route")
		return
	}

	var body writeRequestBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "protocol", "malformed patch body: "+err.Error())
		return
	}

	ps := &patch.PatchSet{}

	for _, a := range body.Added {
		parentID, err := uuid.Parse(a.ParentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "protocol", "malformed parent id: "+a.ParentID)
			return
		}
		ps.Added = append(ps.Added, patch.AddOp{ParentID: parentID, Snapshot: a.Snapshot.toSnapshot()})
	}
	for _, r := range body.Removed {
		id, err := uuid.Parse(r)
		if err != nil {
			writeError(w, http.StatusBadRequest, "protocol", "malformed instance id: "+r)
			return
		}
		ps.Removed = append(ps.Removed, id)
	}
	for _, u := range body.Updated {
		id, err := uuid.Parse(u.ID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "protocol", "malformed instance id: "+u.ID)
			return
		}
		ps.Updated = append(ps.Updated, patch.UpdateOp{
			ID:                id,
			ChangedName:       u.ChangedName,
			ChangedClassName:  u.ChangedClassName,
			ChangedProperties: u.ChangedProperties,
		})
	}

	applied, err := s.deps.Processor.Write(r.Context(), ps)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, applied)
}

type searchResponse struct {
	Matches []search.Match `json:"matches"`
}

// handleSearch serves GET /api/v1/search?q=<text>: a free-text query over
// instance names, classes, and script/string sources (spec §4.L).
func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusNotFound, "protocol", "unknown route")
		return
	}

	q := r.URL.Query().Get("q")
	if q == "" {
		writeError(w, http.StatusBadRequest, "protocol", "missing required query parameter 'q'")
		return
	}

	limit := s.cfg.Search.DefaultLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			writeError(w, http.StatusBadRequest, "protocol", "malformed limit: "+raw)
			return
		}
		limit = parsed
	}
	if limit > s.cfg.Search.MaxLimit {
		limit = s.cfg.Search.MaxLimit
	}

	matches, err := s.deps.Search.Search(q, limit)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, searchResponse{Matches: matches})
}

func writeDomainError(w http.ResponseWriter, err error) {
	kind := rojoerr.KindOf(err)
	status := http.StatusInternalServerError
	switch kind {
	case rojoerr.KindConfig, rojoerr.KindDecode, rojoerr.KindProtocol:
		status = http.StatusBadRequest
	case rojoerr.KindIO, rojoerr.KindInternal:
		status = http.StatusInternalServerError
	}
	writeError(w, status, kind.String(), err.Error())
}
