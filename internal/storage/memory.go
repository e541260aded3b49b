package storage

import (
	"context"
	"sync"

	"user_service/internal/models"
)

// TransientStore keeps records in process memory. It backs tests and
// deployments without a persistence requirement, and must stay observably
// identical to PersistentStore; the conformance suite enforces that.
type TransientStore struct {
	tenant string

	mu      sync.RWMutex
	records []models.UserRecord
}

func NewTransientStore(tenant string) *TransientStore {
	return &TransientStore{tenant: tenant}
}

func (s *TransientStore) TenantID() string {
	return s.tenant
}

func (s *TransientStore) FindByID(ctx context.Context, id string) (models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(func(r models.UserRecord) bool { return r.ID == id })
}

func (s *TransientStore) FindByLogin(ctx context.Context, login string) (models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(func(r models.UserRecord) bool { return r.Login == login })
}

func (s *TransientStore) FindByEmail(ctx context.Context, email string) (models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findLocked(func(r models.UserRecord) bool { return r.Email == email })
}

func (s *TransientStore) FindByPrimaryFields(ctx context.Context, q Query) (models.UserRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.findByPrimaryFieldsLocked(q)
}

func (s *TransientStore) Exists(ctx context.Context, q Query) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, err := s.findByPrimaryFieldsLocked(q)
	if err == ErrNotFound {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Create holds the write lock across the duplicate check and the append, so
// two concurrent creations with the same login or email cannot both succeed.
func (s *TransientStore) Create(ctx context.Context, rec models.UserRecord) (models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.findLocked(func(r models.UserRecord) bool { return r.Login == rec.Login }); err == nil {
		return models.UserRecord{}, ErrConflict
	}
	if _, err := s.findLocked(func(r models.UserRecord) bool { return r.Email == rec.Email }); err == nil {
		return models.UserRecord{}, ErrConflict
	}

	rec.Tenant = s.tenant
	s.records = append(s.records, rec.Clone())
	return rec, nil
}

func (s *TransientStore) Update(ctx context.Context, id string, rec models.UserRecord) (models.UserRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.records {
		if s.records[i].ID == id {
			merged := mergeRecord(s.records[i], rec)
			s.records[i] = merged
			return merged.Clone(), nil
		}
	}
	return models.UserRecord{}, ErrNotFound
}

func (s *TransientStore) Delete(ctx context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.records[:0]
	for _, r := range s.records {
		if r.ID != id {
			kept = append(kept, r)
		}
	}
	s.records = kept
	return true, nil
}

func (s *TransientStore) findByPrimaryFieldsLocked(q Query) (models.UserRecord, error) {
	switch {
	case q.ID != "":
		return s.findLocked(func(r models.UserRecord) bool { return r.ID == q.ID })
	case q.Email != "":
		return s.findLocked(func(r models.UserRecord) bool { return r.Email == q.Email })
	case q.Login != "":
		return s.findLocked(func(r models.UserRecord) bool { return r.Login == q.Login })
	default:
		return models.UserRecord{}, ErrNotFound
	}
}

func (s *TransientStore) findLocked(match func(models.UserRecord) bool) (models.UserRecord, error) {
	for _, r := range s.records {
		if match(r) {
			return r.Clone(), nil
		}
	}
	return models.UserRecord{}, ErrNotFound
}
