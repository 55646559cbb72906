package incident

import "strings"

// Tone selects the voice of a generated draft
type Tone string

const (
	ToneProfessional Tone = "professional"
	ToneCasual       Tone = "casual"
	ToneUrgent       Tone = "urgent"
	ToneReassuring   Tone = "reassuring"
	ToneTechnical    Tone = "technical"
)

// DefaultTone is used for empty or unrecognised tone names
const DefaultTone = ToneProfessional

// ToneConfig holds the generation parameters of a tone
type ToneConfig struct {
	Temperature float32
	Style       string
}

var tones = map[Tone]ToneConfig{
	ToneProfessional: {Temperature: 0.3, Style: "professional and formal"},
	ToneCasual:       {Temperature: 0.7, Style: "casual and approachable"},
	ToneUrgent:       {Temperature: 0.2, Style: "urgent and direct"},
	ToneReassuring:   {Temperature: 0.5, Style: "calm and reassuring"},
	ToneTechnical:    {Temperature: 0.4, Style: "technical and detailed"},
}

// ParseTone maps a client-supplied name onto the closed tone set
func ParseTone(name string) Tone {
	tone := Tone(strings.ToLower(strings.TrimSpace(name)))
	if _, ok := tones[tone]; ok {
		return tone
	}
	return DefaultTone
}

// Config returns the generation parameters for t
func (t Tone) Config() ToneConfig {
	if cfg, ok := tones[t]; ok {
		return cfg
	}
	return tones[DefaultTone]
}

// Tones lists the supported tones
func Tones() []Tone {
	return []Tone{ToneProfessional, ToneCasual, ToneUrgent, ToneReassuring, ToneTechnical}
}
