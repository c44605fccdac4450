package backup

import "testing"

func TestNewTargetRejectsEmptyBucket(t *testing.T) {
	if _, err := NewTarget(Config{}); err == nil {
		t.Fatal("expected an error for an empty bucket name")
	}
}
