package testutil

import (
	"context"
	"sync"
	"time"

	"github.com/cabfleet/cabfleet/internal/domain/numbering"
	"github.com/cabfleet/cabfleet/internal/types"
)

// InMemorySequenceStore implements numbering.Repository
type InMemorySequenceStore struct {
	mu        sync.Mutex
	sequences map[string]*numbering.NumberSequence
}

// NewInMemorySequenceStore creates a new in-memory number sequence store
func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{
		sequences: make(map[string]*numbering.NumberSequence),
	}
}

func sequenceKey(tenantID string, documentType types.DocumentType, period string) string {
	return tenantID + "|" + documentType.String() + "|" + period
}

func (s *InMemorySequenceStore) GetCurrent(ctx context.Context, documentType types.DocumentType, period string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	seq, ok := s.sequences[sequenceKey(types.GetTenantID(ctx), documentType, period)]
	if !ok {
		return 0, nil
	}
	return seq.Current, nil
}

func (s *InMemorySequenceStore) GetOrCreateForUpdate(ctx context.Context, documentType types.DocumentType, period string) (*numbering.NumberSequence, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tenantID := types.GetTenantID(ctx)
	key := sequenceKey(tenantID, documentType, period)

	seq, ok := s.sequences[key]
	if !ok {
		now := time.Now().UTC()
		seq = &numbering.NumberSequence{
			ID:           types.GenerateUUIDWithPrefix(types.UUID_PREFIX_SEQUENCE),
			TenantID:     tenantID,
			DocumentType: documentType,
			Period:       period,
			Current:      0,
			CreatedAt:    now,
			UpdatedAt:    now,
		}
		s.sequences[key] = seq
	}

	cp := *seq
	return &cp, nil
}

func (s *InMemorySequenceStore) Save(ctx context.Context, seq *numbering.NumberSequence) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := sequenceKey(seq.TenantID, seq.DocumentType, seq.Period)
	cp := *seq
	cp.UpdatedAt = time.Now().UTC()
	s.sequences[key] = &cp
	return nil
}

// Clear removes all sequences from the store
func (s *InMemorySequenceStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sequences = make(map[string]*numbering.NumberSequence)
}
