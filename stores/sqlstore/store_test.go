package sqlstore

import (
	"errors"
	"testing"

	"guides-server/core"
)

func TestRebind(t *testing.T) {
	numbered := &Store{dialect: Dialect{Numbered: true}}
	got := numbered.rebind("UPDATE guides SET title = ?, slug = ? WHERE id = ?")
	want := "UPDATE guides SET title = $1, slug = $2 WHERE id = $3"
	if got != want {
		t.Errorf("rebind() mismatch: got %q, want %q", got, want)
	}

	plain := &Store{}
	q := "SELECT 1 WHERE a = ?"
	if got := plain.rebind(q); got != q {
		t.Errorf("rebind() should leave ? placeholders alone: got %q", got)
	}
}

func TestConflict(t *testing.T) {
	dup := errors.New("duplicate")
	s := &Store{dialect: Dialect{IsUniqueViolation: func(err error) bool { return errors.Is(err, dup) }}}

	if err := s.conflict(dup, "user bob"); !errors.Is(err, core.ErrConflict) {
		t.Errorf("conflict() error mismatch: got %v, want ErrConflict", err)
	}
	other := errors.New("disk full")
	if err := s.conflict(other, "user bob"); err != other {
		t.Errorf("conflict() should pass other errors through: got %v", err)
	}
}
