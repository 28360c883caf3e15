package store

import "github.com/qgenlab/qgen/internal/model"

// NopStore is a no-op recorder used in dry-run mode.
type NopStore struct{}

func NewNopStore() *NopStore { return &NopStore{} }

func (s *NopStore) Record(rec model.CallRecord) error { return nil }
