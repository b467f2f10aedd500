package registry

import (
	"fmt"
	"sync"
	"testing"
)

type testItem struct {
	ID   string
	Name string
}

func TestBaseRegistry_Register(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	tests := []struct {
		name    string
		id      string
		item    testItem
		wantErr bool
	}{
		{
			name:    "register valid item",
			id:      "faq",
			item:    testItem{ID: "faq", Name: "FAQ search"},
			wantErr: false,
		},
		{
			name:    "register item with empty name",
			id:      "",
			item:    testItem{Name: "nameless"},
			wantErr: true,
		},
		{
			name:    "register duplicate item",
			id:      "faq",
			item:    testItem{ID: "faq", Name: "second"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := reg.Register(tt.id, tt.item)
			if (err != nil) != tt.wantErr {
				t.Errorf("Register() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestBaseRegistry_Set_Overwrites(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	reg.Set("faq", testItem{ID: "faq", Name: "first"})
	reg.Set("faq", testItem{ID: "faq", Name: "second"})

	got, ok := reg.Get("faq")
	if !ok {
		t.Fatal("expected item to exist after Set")
	}
	if got.Name != "second" {
		t.Errorf("Set() did not overwrite: got %q, want %q", got.Name, "second")
	}
	if reg.Count() != 1 {
		t.Errorf("Count() = %d, want 1", reg.Count())
	}
}

func TestBaseRegistry_GetMissing(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	if _, ok := reg.Get("nope"); ok {
		t.Error("Get() on missing name returned ok")
	}
}

func TestBaseRegistry_Names_Sorted(t *testing.T) {
	reg := NewBaseRegistry[int]()
	for i, name := range []string{"zeta", "alpha", "mid"} {
		if err := reg.Register(name, i); err != nil {
			t.Fatalf("Register(%q) failed: %v", name, err)
		}
	}

	got := reg.Names()
	want := []string{"alpha", "mid", "zeta"}
	if len(got) != len(want) {
		t.Fatalf("Names() returned %d entries, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Names()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBaseRegistry_Remove(t *testing.T) {
	reg := NewBaseRegistry[testItem]()

	if err := reg.Remove("missing"); err == nil {
		t.Error("Remove() on missing name should fail")
	}

	if err := reg.Register("faq", testItem{ID: "faq"}); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Remove("faq"); err != nil {
		t.Errorf("Remove() failed: %v", err)
	}
	if reg.Count() != 0 {
		t.Errorf("Count() after remove = %d, want 0", reg.Count())
	}
}

func TestBaseRegistry_Clear(t *testing.T) {
	reg := NewBaseRegistry[int]()
	for i := 0; i < 5; i++ {
		if err := reg.Register(fmt.Sprintf("item-%d", i), i); err != nil {
			t.Fatalf("Register failed: %v", err)
		}
	}

	reg.Clear()
	if reg.Count() != 0 {
		t.Errorf("Count() after Clear = %d, want 0", reg.Count())
	}
}

func TestBaseRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewBaseRegistry[int]()

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			name := fmt.Sprintf("item-%d", n)
			reg.Set(name, n)
			reg.Get(name)
			reg.List()
			reg.Names()
		}(i)
	}
	wg.Wait()

	if reg.Count() != 16 {
		t.Errorf("Count() = %d, want 16", reg.Count())
	}
}
