package config

import "testing"

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"valid", Config{PageSize: 4096, ExtentSize: 4096 * 32, NumBatches: 4}, false},
		{"page size not power of two", Config{PageSize: 4000, ExtentSize: 4096 * 32, NumBatches: 4}, true},
		{"extent size not a multiple of page size", Config{PageSize: 4096, ExtentSize: 5000, NumBatches: 4}, true},
		{"zero batches", Config{PageSize: 4096, ExtentSize: 4096, NumBatches: 0}, true},
		{"too many batches", Config{PageSize: 4096, ExtentSize: 4096, NumBatches: 9}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
