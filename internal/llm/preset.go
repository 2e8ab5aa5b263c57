package llm

import "strings"

// RoleParams are the concrete invocation parameters a preset assigns to one
// pipeline role.
type RoleParams struct {
	Provider    string  `json:"provider"`
	Model       string  `json:"model"`
	Temperature float32 `json:"temperature"`
	MaxTokens   int     `json:"maxTokens"`
}

// Preset maps each pipeline role to provider/model parameters. A request may
// name a preset; unknown names fall back to the default preset.
type Preset struct {
	Name  string              `json:"name"`
	Roles map[Role]RoleParams `json:"roles"`
}

// PresetTable holds the named presets known to the process.
type PresetTable struct {
	presets     map[string]Preset
	defaultName string
}

func NewPresetTable(defaultName string, presets ...Preset) *PresetTable {
	t := &PresetTable{
		presets:     make(map[string]Preset, len(presets)),
		defaultName: strings.ToLower(strings.TrimSpace(defaultName)),
	}
	for _, p := range presets {
		t.presets[strings.ToLower(strings.TrimSpace(p.Name))] = p
	}
	return t
}

// Resolve returns the params for role under the named preset, falling back
// to the default preset when name is empty or unknown, and to the default
// preset's role entry when the named preset omits the role.
func (t *PresetTable) Resolve(name string, role Role) (RoleParams, bool) {
	if t == nil {
		return RoleParams{}, false
	}
	def := t.presets[t.defaultName]
	p, ok := t.presets[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		p = def
	}
	if rp, ok := p.Roles[role]; ok && rp.Model != "" {
		return rp, true
	}
	if rp, ok := def.Roles[role]; ok && rp.Model != "" {
		return rp, true
	}
	return RoleParams{}, false
}

// DefaultName reports the table's default preset name.
func (t *PresetTable) DefaultName() string { return t.defaultName }

// DefaultPresets returns the built-in preset set used when no preset file is
// configured. Classification and validation run cooler and smaller than
// reasoning and content.
func DefaultPresets(provider, fastModel, strongModel string) []Preset {
	return []Preset{
		{
			Name: "standard",
			Roles: map[Role]RoleParams{
				RoleClassification: {Provider: provider, Model: fastModel, Temperature: 0.1, MaxTokens: 1024},
				RoleReasoning:      {Provider: provider, Model: strongModel, Temperature: 0.4, MaxTokens: 4096},
				RoleContent:        {Provider: provider, Model: strongModel, Temperature: 0.7, MaxTokens: 4096},
				RoleValidation:     {Provider: provider, Model: fastModel, Temperature: 0.0, MaxTokens: 1024},
			},
		},
		{
			Name: "fast",
			Roles: map[Role]RoleParams{
				RoleClassification: {Provider: provider, Model: fastModel, Temperature: 0.1, MaxTokens: 1024},
				RoleReasoning:      {Provider: provider, Model: fastModel, Temperature: 0.4, MaxTokens: 2048},
				RoleContent:        {Provider: provider, Model: fastModel, Temperature: 0.7, MaxTokens: 2048},
			},
		},
	}
}
