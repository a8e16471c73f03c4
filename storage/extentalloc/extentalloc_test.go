package extentalloc

import "testing"

func TestAllocExtentBumpsAndReusesFreed(t *testing.T) {
	a := New(64, 64)

	e0, err := a.AllocExtent()
	if err != nil {
		t.Fatalf("AllocExtent: %v", err)
	}
	if e0 != 64 {
		t.Fatalf("first extent = %d, want 64", e0)
	}
	if rc := a.GetRefcount(e0); rc != 1 {
		t.Fatalf("refcount = %d, want 1", rc)
	}

	e1, err := a.AllocExtent()
	if err != nil {
		t.Fatalf("AllocExtent: %v", err)
	}
	if e1 != 128 {
		t.Fatalf("second extent = %d, want 128", e1)
	}

	if freed := a.DecRefcount(e0); !freed {
		t.Fatal("DecRefcount should report freed when refcount hits zero")
	}
	if rc := a.GetRefcount(e0); rc != 0 {
		t.Fatalf("refcount after dec = %d, want 0", rc)
	}

	e2, err := a.AllocExtent()
	if err != nil {
		t.Fatalf("AllocExtent: %v", err)
	}
	if e2 != e0 {
		t.Fatalf("third extent = %d, want reused freed extent %d", e2, e0)
	}
}

func TestIncRefcountRequiresMultipleDecs(t *testing.T) {
	a := New(64, 64)
	e, _ := a.AllocExtent()

	a.IncRefcount(e)
	if rc := a.GetRefcount(e); rc != 2 {
		t.Fatalf("refcount = %d, want 2", rc)
	}

	if freed := a.DecRefcount(e); freed {
		t.Fatal("DecRefcount should not report freed while refcount is still positive")
	}
	if freed := a.DecRefcount(e); !freed {
		t.Fatal("DecRefcount should report freed on the final reference")
	}
}

func TestIncRefcountOnUnallocatedExtentPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic incrementing an unallocated extent")
		}
	}()
	a := New(64, 64)
	a.IncRefcount(64)
}

func TestGetRefcountOnUnknownExtentIsZero(t *testing.T) {
	a := New(64, 64)
	if rc := a.GetRefcount(12345); rc != 0 {
		t.Fatalf("refcount of unknown extent = %d, want 0", rc)
	}
}
