package assert

import "testing"

func TestThat(t *testing.T) {
	tests := []struct {
		name      string
		cond      bool
		wantPanic bool
	}{
		{"true condition does not panic", true, false},
		{"false condition panics", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			defer func() {
				r := recover()
				if tt.wantPanic && r == nil {
					t.Fatal("expected a panic, got none")
				}
				if !tt.wantPanic && r != nil {
					t.Fatalf("unexpected panic: %v", r)
				}
			}()
			That(tt.cond, "batch %d out of range", 3)
		})
	}
}
