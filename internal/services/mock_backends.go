package services

import (
	"context"
	"sync"

	"github.com/jwebster45206/flimo-world/pkg/game"
	"github.com/jwebster45206/flimo-world/pkg/npcapi"
	"github.com/jwebster45206/flimo-world/pkg/world"
)

// MockNPCBackend is a NPCBackend for tests. Unset Func fields succeed with
// an empty reply.
type MockNPCBackend struct {
	mu sync.Mutex

	CreateSessionFunc  func(ctx context.Context, req npcapi.CreateSessionRequest) (*npcapi.CreateSessionResponse, error)
	ThinkNPCFunc       func(ctx context.Context, sessionID, npcID string, req npcapi.ThinkRequest) (*npcapi.ThinkResponse, error)
	MoveStartFunc      func(ctx context.Context, sessionID, npcID string, req npcapi.MoveStartRequest) error
	MoveArriveFunc     func(ctx context.Context, sessionID, npcID string, req npcapi.MoveArriveRequest) error
	ChatWithNPCFunc    func(ctx context.Context, sessionID, npcID string, req npcapi.ChatRequest) (*npcapi.ChatResponse, error)
	OpenNPCChatFunc    func(ctx context.Context, sessionID, npcID string) (*npcapi.OpenChatResponse, error)
	CloseUserChatFunc  func(ctx context.Context, sessionID, npcID string) error
	GetNPCDetailsFunc  func(ctx context.Context, sessionID, npcID string) (*npcapi.NPCDetails, error)
	GetChatDetailsFunc func(ctx context.Context, sessionID, npcID string) (*npcapi.ChatDetails, error)
	InteractNPCFunc    func(ctx context.Context, sessionID, npcID string, req npcapi.InteractRequest) (*npcapi.InteractResponse, error)

	// Calls records "method:npcID" for every call, in order.
	Calls []string
}

var _ NPCBackend = (*MockNPCBackend)(nil)

func (m *MockNPCBackend) record(method, npcID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Calls = append(m.Calls, method+":"+npcID)
}

// CallLog returns a copy of Calls.
func (m *MockNPCBackend) CallLog() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.Calls...)
}

func (m *MockNPCBackend) CreateSession(ctx context.Context, req npcapi.CreateSessionRequest) (*npcapi.CreateSessionResponse, error) {
	m.record("CreateSession", "")
	if m.CreateSessionFunc != nil {
		return m.CreateSessionFunc(ctx, req)
	}
	return &npcapi.CreateSessionResponse{SessionID: "mock-session"}, nil
}

func (m *MockNPCBackend) ThinkNPC(ctx context.Context, sessionID, npcID string, req npcapi.ThinkRequest) (*npcapi.ThinkResponse, error) {
	m.record("ThinkNPC", npcID)
	if m.ThinkNPCFunc != nil {
		return m.ThinkNPCFunc(ctx, sessionID, npcID, req)
	}
	return &npcapi.ThinkResponse{}, nil
}

func (m *MockNPCBackend) MoveStart(ctx context.Context, sessionID, npcID string, req npcapi.MoveStartRequest) error {
	m.record("MoveStart", npcID)
	if m.MoveStartFunc != nil {
		return m.MoveStartFunc(ctx, sessionID, npcID, req)
	}
	return nil
}

func (m *MockNPCBackend) MoveArrive(ctx context.Context, sessionID, npcID string, req npcapi.MoveArriveRequest) error {
	m.record("MoveArrive", npcID)
	if m.MoveArriveFunc != nil {
		return m.MoveArriveFunc(ctx, sessionID, npcID, req)
	}
	return nil
}

func (m *MockNPCBackend) ChatWithNPC(ctx context.Context, sessionID, npcID string, req npcapi.ChatRequest) (*npcapi.ChatResponse, error) {
	m.record("ChatWithNPC", npcID)
	if m.ChatWithNPCFunc != nil {
		return m.ChatWithNPCFunc(ctx, sessionID, npcID, req)
	}
	return &npcapi.ChatResponse{}, nil
}

func (m *MockNPCBackend) OpenNPCChat(ctx context.Context, sessionID, npcID string) (*npcapi.OpenChatResponse, error) {
	m.record("OpenNPCChat", npcID)
	if m.OpenNPCChatFunc != nil {
		return m.OpenNPCChatFunc(ctx, sessionID, npcID)
	}
	return &npcapi.OpenChatResponse{}, nil
}

func (m *MockNPCBackend) CloseUserChat(ctx context.Context, sessionID, npcID string) error {
	m.record("CloseUserChat", npcID)
	if m.CloseUserChatFunc != nil {
		return m.CloseUserChatFunc(ctx, sessionID, npcID)
	}
	return nil
}

func (m *MockNPCBackend) GetNPCDetails(ctx context.Context, sessionID, npcID string) (*npcapi.NPCDetails, error) {
	m.record("GetNPCDetails", npcID)
	if m.GetNPCDetailsFunc != nil {
		return m.GetNPCDetailsFunc(ctx, sessionID, npcID)
	}
	return &npcapi.NPCDetails{ID: npcID}, nil
}

func (m *MockNPCBackend) GetChatDetails(ctx context.Context, sessionID, npcID string) (*npcapi.ChatDetails, error) {
	m.record("GetChatDetails", npcID)
	if m.GetChatDetailsFunc != nil {
		return m.GetChatDetailsFunc(ctx, sessionID, npcID)
	}
	return &npcapi.ChatDetails{NPCID: npcID}, nil
}

func (m *MockNPCBackend) InteractNPC(ctx context.Context, sessionID, npcID string, req npcapi.InteractRequest) (*npcapi.InteractResponse, error) {
	m.record("InteractNPC", npcID)
	if m.InteractNPCFunc != nil {
		return m.InteractNPCFunc(ctx, sessionID, npcID, req)
	}
	return &npcapi.InteractResponse{}, nil
}

// MockNavigator is a Navigator for tests. Without Func fields every path is
// empty, which walks an NPC straight to its destination.
type MockNavigator struct {
	NavigateBetweenFunc   func(ctx context.Context, req npcapi.NavigateRequest) ([]world.Point, error)
	NavigateFromCoordFunc func(ctx context.Context, req npcapi.NavigateFromCoordRequest) ([]world.Point, error)
	ListLocationsFunc     func(ctx context.Context, worldID string) ([]world.Location, error)
}

var _ Navigator = (*MockNavigator)(nil)

func (m *MockNavigator) NavigateBetween(ctx context.Context, req npcapi.NavigateRequest) ([]world.Point, error) {
	if m.NavigateBetweenFunc != nil {
		return m.NavigateBetweenFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockNavigator) NavigateFromCoord(ctx context.Context, req npcapi.NavigateFromCoordRequest) ([]world.Point, error) {
	if m.NavigateFromCoordFunc != nil {
		return m.NavigateFromCoordFunc(ctx, req)
	}
	return nil, nil
}

func (m *MockNavigator) ListLocations(ctx context.Context, worldID string) ([]world.Location, error) {
	if m.ListLocationsFunc != nil {
		return m.ListLocationsFunc(ctx, worldID)
	}
	return nil, nil
}

// MockGameStore keeps published games in memory.
type MockGameStore struct {
	mu    sync.Mutex
	games map[string]*game.Document

	GetGameCalls int
}

var _ GameStore = (*MockGameStore)(nil)

func NewMockGameStore(docs ...*game.Document) *MockGameStore {
	m := &MockGameStore{games: make(map[string]*game.Document)}
	for _, d := range docs {
		m.games[d.ID] = d
	}
	return m
}

func (m *MockGameStore) ListGames(ctx context.Context) ([]game.Summary, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]game.Summary, 0, len(m.games))
	for _, d := range m.games {
		out = append(out, d.Summarize())
	}
	return out, nil
}

func (m *MockGameStore) GetGame(ctx context.Context, id string) (*game.Document, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.GetGameCalls++
	d, ok := m.games[id]
	if !ok {
		return nil, &APIError{Status: 404, Body: "game not found"}
	}
	cp := *d
	return &cp, nil
}

func (m *MockGameStore) PublishGame(ctx context.Context, doc *game.Document, images map[string][]byte) (string, error) {
	if err := doc.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	id := doc.ID
	if id == "" {
		id = doc.Title
	}
	cp := *doc
	cp.ID = id
	m.games[id] = &cp
	return id, nil
}
