package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"

	"github.com/ankitmehra/posd/internal/queue"
)

// MockServer provides a fake sync backend for testing. It honors the
// operationId idempotency contract: pushing an already applied operation is
// a no-op.
type MockServer struct {
	*httptest.Server
	mu           sync.Mutex
	applied      map[string]PushOperation
	appliedOrder []string
	rejects      map[string]string // operation id -> rejection reason
	pushFailures []failure
	pushCount    int
	pullPages    map[string]PullResponse // request cursor -> response
	lastCursor   string
	pullCursors  []string
}

type failure struct {
	status int
	body   string
}

// NewMockServer creates a mock sync backend.
func NewMockServer() *MockServer {
	m := &MockServer{
		applied:   make(map[string]PushOperation),
		rejects:   make(map[string]string),
		pullPages: make(map[string]PullResponse),
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/sync/push", m.handlePush)
	mux.HandleFunc("/sync/pull", m.handlePull)

	m.Server = httptest.NewServer(mux)
	return m
}

// RejectOperation makes the server reject a specific operation with the
// given reason inside an otherwise successful batch.
func (m *MockServer) RejectOperation(operationID, reason string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rejects[operationID] = reason
}

// FailPushes makes the next n push calls fail at the batch level with the
// given status and body.
func (m *MockServer) FailPushes(n, status int, body string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for i := 0; i < n; i++ {
		m.pushFailures = append(m.pushFailures, failure{status: status, body: body})
	}
}

// SetPullResponse registers the response returned for a pull with the given
// request cursor.
func (m *MockServer) SetPullResponse(cursor string, resp PullResponse) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pullPages[cursor] = resp
	if resp.Cursor != "" {
		m.lastCursor = resp.Cursor
	}
}

// AppliedOperation returns an applied operation for test assertions, or nil.
func (m *MockServer) AppliedOperation(operationID string) *PushOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	op, ok := m.applied[operationID]
	if !ok {
		return nil
	}
	return &op
}

// AppliedOrder returns the operation ids in the order they were first applied.
func (m *MockServer) AppliedOrder() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.appliedOrder))
	copy(out, m.appliedOrder)
	return out
}

// PushCount returns how many push calls the server has received.
func (m *MockServer) PushCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pushCount
}

// PullCursors returns the request cursors seen by the server, in order.
func (m *MockServer) PullCursors() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]string, len(m.pullCursors))
	copy(out, m.pullCursors)
	return out
}

func (m *MockServer) handlePush(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.pushCount++

	if len(m.pushFailures) > 0 {
		f := m.pushFailures[0]
		m.pushFailures = m.pushFailures[1:]
		http.Error(w, f.body, f.status)
		return
	}

	var req PushRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	var resp PushResponse
	for _, op := range req.Operations {
		if reason, rejected := m.rejects[op.OperationID]; rejected {
			resp.Results = append(resp.Results, PushResult{
				OperationID: op.OperationID,
				Status:      StatusRejected,
				Error:       reason,
			})
			continue
		}

		// Idempotency on operation id: duplicates are accepted but not
		// re-applied.
		if _, dup := m.applied[op.OperationID]; !dup {
			m.applied[op.OperationID] = op
			m.appliedOrder = append(m.appliedOrder, op.OperationID)
		}
		resp.Results = append(resp.Results, PushResult{
			OperationID: op.OperationID,
			Status:      StatusApplied,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

func (m *MockServer) handlePull(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var req PullRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json", http.StatusBadRequest)
		return
	}

	m.pullCursors = append(m.pullCursors, req.Cursor)

	resp, ok := m.pullPages[req.Cursor]
	if !ok {
		// Nothing new: echo the latest known cursor so the client does not
		// move backward.
		cursor := m.lastCursor
		if cursor == "" {
			cursor = req.Cursor
		}
		resp = PullResponse{Changes: []queue.RemoteChange{}, Cursor: cursor}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}
