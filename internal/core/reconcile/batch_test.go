package reconcile

import "testing"

func TestPartition(t *testing.T) {
	items := []int{1, 2, 3, 4, 5, 6, 7}

	tests := []struct {
		name  string
		size  int
		sizes []int
	}{
		{"even split", 7, []int{7}},
		{"remainder", 3, []int{3, 3, 1}},
		{"size one", 1, []int{1, 1, 1, 1, 1, 1, 1}},
		{"larger than input", 50, []int{7}},
		{"zero means one batch", 0, []int{7}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			batches := Partition(items, tt.size)
			if len(batches) != len(tt.sizes) {
				t.Fatalf("got %d batches, want %d", len(batches), len(tt.sizes))
			}
			n := 0
			for i, b := range batches {
				if len(b) != tt.sizes[i] {
					t.Errorf("batch %d size = %d, want %d", i, len(b), tt.sizes[i])
				}
				for _, v := range b {
					n++
					if v != n {
						t.Errorf("item order broken: got %d at position %d", v, n)
					}
				}
			}
		})
	}
}

func TestPartitionEmpty(t *testing.T) {
	if got := Partition([]string{}, 10); got != nil {
		t.Errorf("Partition(empty) = %v, want nil", got)
	}
}
