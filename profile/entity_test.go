package profile

import "testing"

func TestNewEntity(t *testing.T) {
	tests := []struct {
		name      string
		space     string
		entity    string
		version   string
		driftType DriftType
		wantErr   bool
	}{
		{"valid spc", "fraud", "scorer", "1.0.0", DriftSPC, false},
		{"valid llm", "chat", "assistant", "2.3.1", DriftLLM, false},
		{"missing space", "", "scorer", "1.0.0", DriftSPC, true},
		{"missing version", "fraud", "scorer", "", DriftSPC, true},
		{"unknown drift type", "fraud", "scorer", "1.0.0", DriftType("bogus"), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, err := NewEntity(tt.space, tt.entity, tt.version, tt.driftType)
			if tt.wantErr {
				if err == nil {
					t.Fatal("expected error, got nil")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if e.EntityID == "" {
				t.Error("expected a non-empty entity id")
			}
		})
	}
}

func TestEntity_Key(t *testing.T) {
	e := Entity{Space: "fraud", Name: "scorer", Version: "1.0.0", DriftType: DriftPSI}
	want := "fraud/scorer/1.0.0/psi"
	if got := e.Key(); got != want {
		t.Errorf("Key() = %q, want %q", got, want)
	}
}

func TestDriftType_Valid(t *testing.T) {
	valid := []DriftType{DriftSPC, DriftPSI, DriftCustom, DriftLLM}
	for _, d := range valid {
		if !d.Valid() {
			t.Errorf("expected %s to be valid", d)
		}
	}
	if DriftType("unknown").Valid() {
		t.Error("expected unknown drift type to be invalid")
	}
}
