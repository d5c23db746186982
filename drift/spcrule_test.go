package drift

import "testing"

func TestParseSPCRule_Default(t *testing.T) {
	cfg, err := ParseSPCRule("8 16 4 8 2 4 1 1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.ZoneConsecutive != [4]int{8, 16, 4, 8} {
		t.Errorf("unexpected zone consecutive thresholds: %v", cfg.ZoneConsecutive)
	}
	if cfg.TrendLength != 2 {
		t.Errorf("expected trend length 2, got %d", cfg.TrendLength)
	}
	if cfg.AlternatingLength != 4 {
		t.Errorf("expected alternating length 4, got %d", cfg.AlternatingLength)
	}
}

func TestParseSPCRule_WrongDigitCount(t *testing.T) {
	if _, err := ParseSPCRule("8 16 4"); err == nil {
		t.Fatal("expected error for wrong digit count")
	}
}

func TestParseSPCRule_NonNumeric(t *testing.T) {
	if _, err := ParseSPCRule("a 16 4 8 2 4 1 1"); err == nil {
		t.Fatal("expected error for non-numeric digit")
	}
}
