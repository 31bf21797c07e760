package intake

import (
	"encoding/json"
	"regexp"
	"strings"
	"unicode/utf8"
)

// FallbackReply is returned whenever nothing displayable can be recovered
// from the model output. The patient always gets a reply.
const FallbackReply = "I'm sorry, I didn't quite catch that. Could you say that again in your own words?"

const (
	salvageMinLen = 10
	salvageMaxLen = 500
)

// ValidationResult is the always-non-empty envelope produced from raw model
// text. Reply is never empty, for any input.
type ValidationResult struct {
	IsValid      bool   `json:"isValid"`
	Reply        string `json:"reply"`
	Err          string `json:"error,omitempty"`
	WasRecovered bool   `json:"wasRecovered"`

	// ParsedData is the raw updatedData object when one was present.
	ParsedData    json.RawMessage `json:"parsedData,omitempty"`
	DoctorThought json.RawMessage `json:"doctorThought,omitempty"`
	ActiveAgent   string          `json:"activeAgent,omitempty"`

	HasValidReply       bool `json:"hasValidReply"`
	HasValidUpdatedData bool `json:"hasValidUpdatedData"`
	HasValidActiveAgent bool `json:"hasValidActiveAgent"`

	// Strategy names the extraction step that produced the reply.
	Strategy string `json:"validationDetails"`
}

// envelope is the structured reply the model is instructed to emit. Fields
// are decoded key by key so one wrong-typed field cannot discard an
// otherwise usable reply.
type envelope struct {
	fields map[string]json.RawMessage
}

func (e *envelope) str(key string) string {
	raw, ok := e.fields[key]
	if !ok {
		return ""
	}
	var s string
	if json.Unmarshal(raw, &s) != nil {
		return ""
	}
	return s
}

func (e *envelope) raw(key string) json.RawMessage { return e.fields[key] }

// alternateReply returns the first non-empty alternate field in fixed
// priority order, ending with the doctor-thought next move.
func (e *envelope) alternateReply() string {
	for _, key := range []string{"text", "content", "response", "answer", "output"} {
		if candidate := e.str(key); strings.TrimSpace(candidate) != "" {
			return candidate
		}
	}
	if dtRaw := e.raw("doctorThought"); len(dtRaw) > 0 {
		var dt struct {
			NextMove string `json:"nextMove"`
		}
		if json.Unmarshal(dtRaw, &dt) == nil && strings.TrimSpace(dt.NextMove) != "" {
			return dt.NextMove
		}
	}
	return ""
}

// extractor is one strategy of the recovery chain. It reports whether it
// produced a usable result; the first success wins.
type extractor func(raw string) (ValidationResult, bool)

var extractorChain = []struct {
	name string
	run  extractor
}{
	{"empty_input", extractEmpty},
	{"json_envelope", extractEnvelope},
	{"plain_text", extractPlainText},
	{"capitalized_sentences", extractSentences},
}

// Validate turns raw model text into a structured reply envelope. It is
// total: it never panics and always returns a non-empty Reply, no matter how
// mangled the input is.
func Validate(raw string) ValidationResult {
	for _, step := range extractorChain {
		if result, ok := step.run(raw); ok {
			result.Strategy = step.name
			return result
		}
	}
	return ValidationResult{
		IsValid:  false,
		Reply:    FallbackReply,
		Err:      "no displayable content could be recovered",
		Strategy: "fallback",
	}
}

func extractEmpty(raw string) (ValidationResult, bool) {
	if strings.TrimSpace(raw) != "" {
		return ValidationResult{}, false
	}
	return ValidationResult{
		IsValid: false,
		Reply:   FallbackReply,
		Err:     "empty model response",
	}, true
}

// extractEnvelope extracts a JSON object from a fenced block, falling back
// to brace-matching, and interprets it as the structured envelope.
func extractEnvelope(raw string) (ValidationResult, bool) {
	payload, ok := extractJSON(raw)
	if !ok {
		return ValidationResult{}, false
	}
	var env envelope
	if err := json.Unmarshal([]byte(payload), &env.fields); err != nil || env.fields == nil {
		return ValidationResult{}, false
	}

	result := ValidationResult{
		ActiveAgent:         env.str("activeAgent"),
		HasValidActiveAgent: IsValidAgent(env.str("activeAgent")),
	}
	if updated := env.raw("updatedData"); isPlainObject(updated) {
		result.ParsedData = updated
		result.HasValidUpdatedData = true
	}
	if dt := env.raw("doctorThought"); isPlainObject(dt) {
		result.DoctorThought = dt
	}

	reply := env.str("reply")
	if strings.TrimSpace(reply) == "" {
		reply = env.str("message")
	}
	if strings.TrimSpace(reply) != "" {
		result.IsValid = true
		result.Reply = reply
		result.HasValidReply = true
		return result, true
	}

	if alt := env.alternateReply(); alt != "" {
		result.IsValid = true
		result.Reply = alt
		result.WasRecovered = true
		result.HasValidReply = false
		return result, true
	}

	// Parsed fine but carried nothing displayable. Salvage the surrounding
	// prose here rather than falling through: the well-typed fields already
	// extracted must not be thrown away with the reply.
	if remainder := strings.TrimSpace(stripStructuredSpans(raw)); len(remainder) > salvageMinLen {
		result.IsValid = false
		result.Reply = clipSalvage(remainder)
		result.Err = "envelope carried no displayable reply"
		result.WasRecovered = true
		result.HasValidReply = false
		return result, true
	}
	return ValidationResult{}, false
}

// extractPlainText salvages conversational prose around a broken payload:
// fenced blocks and any brace span are stripped, and whatever substantial
// text remains becomes the reply.
func extractPlainText(raw string) (ValidationResult, bool) {
	remainder := strings.TrimSpace(stripStructuredSpans(raw))
	if len(remainder) <= salvageMinLen {
		return ValidationResult{}, false
	}
	return ValidationResult{
		IsValid:      false,
		Reply:        clipSalvage(remainder),
		Err:          "model response was not a structured envelope",
		WasRecovered: true,
	}, true
}

// clipSalvage bounds a salvaged reply, cutting on a rune boundary so a
// multi-byte character is never split at the truncation point.
func clipSalvage(s string) string {
	if len(s) <= salvageMaxLen {
		return s
	}
	cut := salvageMaxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}

var sentenceRe = regexp.MustCompile(`[A-Z][^.!?]{2,}[.!?]`)

// extractSentences is the last resort before the fixed fallback: up to the
// first three capitalized sentences found anywhere in the raw text.
func extractSentences(raw string) (ValidationResult, bool) {
	sentences := sentenceRe.FindAllString(raw, 3)
	if len(sentences) == 0 {
		return ValidationResult{}, false
	}
	return ValidationResult{
		IsValid:      false,
		Reply:        strings.Join(sentences, " "),
		Err:          "recovered sentence fragments from malformed response",
		WasRecovered: true,
	}, true
}

var fencedBlockRe = regexp.MustCompile("(?s)```(?:json)?\\s*(.*?)```")

// extractJSON pulls a candidate JSON payload out of raw text: first from a
// fenced code block, then by matching the first '{' to the last '}'.
func extractJSON(raw string) (string, bool) {
	if m := fencedBlockRe.FindStringSubmatch(raw); m != nil {
		candidate := strings.TrimSpace(m[1])
		if candidate != "" {
			return candidate, true
		}
	}
	start := strings.Index(raw, "{")
	end := strings.LastIndex(raw, "}")
	if start >= 0 && end > start {
		return raw[start : end+1], true
	}
	return "", false
}

// stripStructuredSpans removes fenced blocks and the outermost brace span,
// leaving surrounding prose.
func stripStructuredSpans(raw string) string {
	out := fencedBlockRe.ReplaceAllString(raw, " ")
	start := strings.Index(out, "{")
	end := strings.LastIndex(out, "}")
	if start >= 0 && end > start {
		out = out[:start] + " " + out[end+1:]
	}
	return out
}

// isPlainObject reports whether raw is a JSON object rather than null, an
// array or a primitive. Anything else must never reach the merge engine.
func isPlainObject(raw json.RawMessage) bool {
	trimmed := strings.TrimSpace(string(raw))
	if !strings.HasPrefix(trimmed, "{") {
		return false
	}
	var probe map[string]json.RawMessage
	return json.Unmarshal(raw, &probe) == nil
}
