package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/jmerrifield20/NexusTrust/internal/trust/model"
)

// MemoryDeclarationStore keeps declarations in process memory.
type MemoryDeclarationStore struct {
	mu      sync.RWMutex
	byID    map[uuid.UUID]*model.Declaration
	byAgent map[string][]*model.Declaration
}

// NewMemoryDeclarationStore returns an empty store.
func NewMemoryDeclarationStore() *MemoryDeclarationStore {
	return &MemoryDeclarationStore{
		byID:    make(map[uuid.UUID]*model.Declaration),
		byAgent: make(map[string][]*model.Declaration),
	}
}

// Save implements DeclarationStore.
func (s *MemoryDeclarationStore) Save(_ context.Context, d *model.Declaration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[d.ID]; ok {
		return ErrDuplicate
	}
	cp := cloneDeclaration(d)
	s.byID[d.ID] = cp
	s.byAgent[d.AgentID] = append(s.byAgent[d.AgentID], cp)
	return nil
}

// ListByAgent implements DeclarationStore.
func (s *MemoryDeclarationStore) ListByAgent(_ context.Context, agentID string) ([]*model.Declaration, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	stored := s.byAgent[agentID]
	out := make([]*model.Declaration, len(stored))
	for i, d := range stored {
		out[i] = cloneDeclaration(d)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

// ListAgentIDs implements DeclarationStore.
func (s *MemoryDeclarationStore) ListAgentIDs(_ context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := make([]string, 0, len(s.byAgent))
	for id, decls := range s.byAgent {
		if len(decls) > 0 {
			ids = append(ids, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

// Delete implements DeclarationStore.
func (s *MemoryDeclarationStore) Delete(_ context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	d, ok := s.byID[id]
	if !ok {
		return ErrNotFound
	}
	delete(s.byID, id)
	decls := s.byAgent[d.AgentID]
	for i, x := range decls {
		if x.ID == id {
			s.byAgent[d.AgentID] = append(decls[:i:i], decls[i+1:]...)
			break
		}
	}
	if len(s.byAgent[d.AgentID]) == 0 {
		delete(s.byAgent, d.AgentID)
	}
	return nil
}
