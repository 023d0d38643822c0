package sqlite

import "context"

// ExecRaw runs a statement on the underlying database, bypassing the
// repositories.
func (s *Store) ExecRaw(ctx context.Context, query string, args ...any) error {
	_, err := s.pool.DB().ExecContext(ctx, query, args...)
	return err
}
