package skillregistry

import "testing"

func TestMemoryRegistry_Has(t *testing.T) {
	r := NewMemoryRegistry([]Skill{
		{Name: "get_weather", Required: []string{"city"}},
	})

	if !r.Has("get_weather") {
		t.Errorf("expected get_weather to be present")
	}
	if r.Has("evil_shell") {
		t.Errorf("expected evil_shell to be absent")
	}
}

func TestMemoryRegistry_ValidateArguments(t *testing.T) {
	r := NewMemoryRegistry([]Skill{
		{Name: "get_weather", Required: []string{"city"}},
		{Name: "ping", Required: nil},
	})

	tests := []struct {
		name string
		args map[string]any
		want bool
	}{
		{"get_weather", map[string]any{"city": "nyc"}, true},
		{"get_weather", map[string]any{}, false},
		{"ping", map[string]any{}, true},
		{"unknown", map[string]any{}, false},
	}

	for _, tt := range tests {
		got := r.ValidateArguments(tt.name, tt.args)
		if got != tt.want {
			t.Errorf("ValidateArguments(%q, %v) = %v, want %v", tt.name, tt.args, got, tt.want)
		}
	}
}
