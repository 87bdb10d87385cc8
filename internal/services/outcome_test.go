package services_test

import (
	"testing"

	"shellgame-backend/internal/models"
	"shellgame-backend/internal/services"
)

func TestDeriveOutcomeSlot(t *testing.T) {
	cases := []struct {
		hash string
		want int
	}{
		{"00000000", 0},
		{"00000001", 1},
		{"00000002", 2},
		{"00000003", 0},
		// 0xa1b2c3d4 = 2712847316, 2712847316 % 3 = 2
		{"a1b2c3d4", 2},
		{"a1b2c3d4ffffffffffffffff", 2},
		// max uint32: 4294967295 % 3 = 0
		{"ffffffff", 0},
	}

	for _, tc := range cases {
		got, err := services.DeriveOutcomeSlot(tc.hash)
		if err != nil {
			t.Errorf("DeriveOutcomeSlot(%q) failed: %v", tc.hash, err)
			continue
		}
		if got != tc.want {
			t.Errorf("DeriveOutcomeSlot(%q) = %d, want %d", tc.hash, got, tc.want)
		}
	}
}

func TestDeriveOutcomeSlotDeterministic(t *testing.T) {
	hashes := []string{"a1b2c3d4", "deadbeefcafe", "0123456789abcdef", "ffffffff00000000"}

	for _, h := range hashes {
		first, err := services.DeriveOutcomeSlot(h)
		if err != nil {
			t.Fatalf("derivation failed for %q: %v", h, err)
		}
		second, _ := services.DeriveOutcomeSlot(h)
		if first != second {
			t.Errorf("derivation not deterministic for %q: %d then %d", h, first, second)
		}
		if first < 0 || first >= models.SlotCount {
			t.Errorf("slot out of range for %q: %d", h, first)
		}
	}
}

func TestDeriveOutcomeSlotMalformed(t *testing.T) {
	for _, h := range []string{"", "a1b2", "1234567", "zzzzzzzz", "g1b2c3d4"} {
		if _, err := services.DeriveOutcomeSlot(h); !models.IsKind(err, models.KindMalformedHash) {
			t.Errorf("DeriveOutcomeSlot(%q) should fail closed with malformed hash, got %v", h, err)
		}
	}
}
