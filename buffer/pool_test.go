package buffer

import "testing"

func TestPoolDisabledRoleReturnsNil(t *testing.T) {
	p := New(128, false, false)
	if p.Slot(RoleWriteIndex) != nil {
		t.Fatal("disabled role should return nil")
	}
	if p.Slot(RoleReadVar) != nil {
		t.Fatal("disabled role should return nil")
	}
}

func TestPoolSlotsAreDisjoint(t *testing.T) {
	p := New(64, true, true)
	roles := []Role{RoleWriteData, RoleReadData, RoleWriteIndex, RoleReadIndex, RoleWriteVar, RoleReadVar}

	slots := make(map[Role][]byte)
	for _, r := range roles {
		s := p.Slot(r)
		if len(s) != 64 {
			t.Fatalf("role %d: len(slot) = %d, want 64", r, len(s))
		}
		slots[r] = s
	}

	// Writing a unique marker into each slot must not bleed into any
	// other slot.
	for i, r := range roles {
		for j := range slots[r] {
			slots[r][j] = byte(i + 1)
		}
	}
	for i, r := range roles {
		for _, b := range slots[r] {
			if b != byte(i+1) {
				t.Fatalf("role %d slot was overwritten by another role's write", r)
			}
		}
	}
}

func TestPoolSizingSkipsDisabledRoles(t *testing.T) {
	p := New(32, false, false)
	if len(p.arena) != 2*32 {
		t.Fatalf("arena size = %d, want %d (index/var disabled)", len(p.arena), 2*32)
	}

	full := New(32, true, true)
	if len(full.arena) != 6*32 {
		t.Fatalf("arena size = %d, want %d (every role enabled)", len(full.arena), 6*32)
	}
}

func TestPoolPageSize(t *testing.T) {
	p := New(256, true, false)
	if p.PageSize() != 256 {
		t.Fatalf("PageSize() = %d, want 256", p.PageSize())
	}
}
