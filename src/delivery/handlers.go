package delivery

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/Blackdeer1524/RelDB/src"
	"github.com/Blackdeer1524/RelDB/src/dberr"
	"github.com/Blackdeer1524/RelDB/src/query"
	"github.com/Blackdeer1524/RelDB/src/raft"
	"github.com/Blackdeer1524/RelDB/src/types"
)

const maxBodyBytes = 1 << 20

type APIHandler struct {
	Node   Node
	Logger src.Logger
}

func NewRouter(h *APIHandler) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/query", h.Query).Methods(http.MethodPost)
	r.HandleFunc("/tables", h.ListTables).Methods(http.MethodGet)
	r.HandleFunc("/tables/{name}", h.DescribeTable).Methods(http.MethodGet)
	r.HandleFunc("/cluster/join", h.Join).Methods(http.MethodPost)

	return r
}

func (h *APIHandler) Query(w http.ResponseWriter, r *http.Request) {
	var req queryRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}

	payloads, err := h.Node.Execute(r.Context(), req.SQL)
	results := toResults(payloads)
	if err != nil {
		h.writeError(w, err, results)
		return
	}

	h.writeJSON(w, http.StatusOK, queryResponse{Results: results})
}

func (h *APIHandler) ListTables(w http.ResponseWriter, r *http.Request) {
	names, err := h.Node.Tables(r.Context())
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	if names == nil {
		names = []string{}
	}
	h.writeJSON(w, http.StatusOK, names)
}

func (h *APIHandler) DescribeTable(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	th, err := h.Node.Describe(r.Context(), name)
	if err != nil {
		h.writeError(w, err, nil)
		return
	}

	h.writeJSON(w, http.StatusOK, tableResponse{Name: th.Name, Version: th.Version, Schema: th.Schema})
}

func (h *APIHandler) Join(w http.ResponseWriter, r *http.Request) {
	joiner, ok := h.Node.(Joiner)
	if !ok {
		h.writeJSON(w, http.StatusNotImplemented, errorResponse{
			Code:    "NOT_REPLICATED",
			Message: "node is not part of a raft cluster",
		})
		return
	}

	var req joinRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes)).Decode(&req); err != nil {
		h.writeJSON(w, http.StatusBadRequest, errorResponse{Code: "BAD_REQUEST", Message: err.Error()})
		return
	}

	if err := joiner.Join(req.ID, req.Addr); err != nil {
		h.writeError(w, err, nil)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}

func (h *APIHandler) writeError(w http.ResponseWriter, err error, results []resultResponse) {
	status, code := classify(err)
	if status >= http.StatusInternalServerError {
		h.Logger.Errorw("request failed", "code", code, zap.Error(err))
	}

	h.writeJSON(w, status, errorResponse{Code: code, Message: err.Error(), Results: results})
}

func classify(err error) (int, string) {
	if errors.Is(err, raft.ErrNotLeader) {
		return http.StatusServiceUnavailable, "NOT_LEADER"
	}

	kind, ok := dberr.KindOf(err)
	if !ok {
		return http.StatusInternalServerError, "INTERNAL"
	}

	switch kind {
	case dberr.KindTableNotFound:
		return http.StatusNotFound, kind.String()
	case dberr.KindAlreadyExistingTable, dberr.KindDuplicateUniqueValue:
		return http.StatusConflict, kind.String()
	case dberr.KindStorage:
		return http.StatusInternalServerError, kind.String()
	default:
		return http.StatusBadRequest, kind.String()
	}
}

func (h *APIHandler) writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.Logger.Warnw("failed to write response", zap.Error(err))
	}
}

func toResults(payloads []query.Payload) []resultResponse {
	res := make([]resultResponse, 0, len(payloads))
	for _, p := range payloads {
		r := resultResponse{
			Kind:     p.Kind,
			Table:    p.Table,
			Affected: p.Affected,
			Columns:  p.Columns,
		}

		if p.Kind == query.PayloadSelect {
			r.Rows = make([][]any, len(p.Rows))
			for i, row := range p.Rows {
				r.Rows[i] = make([]any, len(row))
				for j, v := range row {
					r.Rows[i][j] = jsonValue(v)
				}
			}
		}

		res = append(res, r)
	}

	return res
}

// jsonValue maps NULL, booleans and 64-bit numbers onto native JSON; every
// other value is rendered as its SQL text.
func jsonValue(v types.Value) any {
	switch {
	case v.IsNull():
		return nil
	case v.Type == types.Boolean:
		return v.B
	case v.Type.IsInteger():
		return v.I
	case v.Type == types.Float:
		return v.F
	default:
		return v.String()
	}
}
