package fixes

import (
	"encoding/json"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
)

// malformedPattern matches a left-brace or comma immediately followed by the
// literal two-character property name `{}` quoted-colon sequence `{}":` and
// optional whitespace — the signature of the `{}":` corruption pattern.
//
// Go's regexp (RE2) handles this fine: the pattern needs no backreferences
// or lookaround, so there is no need to reach for dlclark/regexp2 here even
// though go.mod carries it transitively (it is pulled in only by
// pkoukk/tiktoken-go's BPE tokenizer, which has its own backreference needs
// unrelated to this fixer).
var malformedPattern = regexp.MustCompile(`[,{]\{\}":\s*`)

// malformedHeuristics is the fixed, ordered list of fallback parameter-name
// guesses tried when more than one schema parameter is missing.
var malformedHeuristics = []string{
	"file_path", "path", "filepath", "filename",
	"output", "output_path", "destination", "target",
}

// MalformedArgumentsFixer repairs the `{"content":"...",{}":"/path"}`
// corruption: a property name replaced by the unquoted literal `{}`. Repair
// requires the request's tool schemas to know which parameter name belongs
// there.
//
// Grounded on original_source/llama-proxy/src/fixes/toolcall_malformed_arguments_fix.rs.
type MalformedArgumentsFixer struct {
	logger *slog.Logger
}

func NewMalformedArgumentsFixer(logger *slog.Logger) *MalformedArgumentsFixer {
	if logger == nil {
		logger = slog.Default()
	}
	return &MalformedArgumentsFixer{logger: logger}
}

func (f *MalformedArgumentsFixer) Name() string { return "toolcall_malformed_arguments" }

func (f *MalformedArgumentsFixer) Description() string {
	return `Fixes malformed tool call arguments with invalid property names like {}":`
}

func (f *MalformedArgumentsFixer) LogLevel() FixLogLevel { return LogInfo }

func (f *MalformedArgumentsFixer) Applies(response map[string]any, request map[string]any) bool {
	if request == nil {
		return false
	}
	if _, ok := request["tools"]; !ok {
		return false
	}
	_, _, ok := firstToolCallArguments(response)
	return ok
}

// extractToolSchemas builds name -> declared parameter names from the
// request's tools array.
func extractToolSchemas(request map[string]any) map[string][]string {
	schemas := make(map[string][]string)
	tools, _ := request["tools"].([]any)
	for _, t := range tools {
		tool, ok := t.(map[string]any)
		if !ok {
			continue
		}
		fn, ok := tool["function"].(map[string]any)
		if !ok {
			continue
		}
		name, _ := fn["name"].(string)
		if name == "" {
			continue
		}
		var params []string
		if p, ok := fn["parameters"].(map[string]any); ok {
			if props, ok := p["properties"].(map[string]any); ok {
				for k := range props {
					params = append(params, k)
				}
			}
		}
		schemas[name] = params
	}
	return schemas
}

// aggressiveParseJSON tries a standard parse first, then falls back to a
// regex-based key/value scan that tolerates the unquoted `{}` pseudo-key.
func aggressiveParseJSON(s string) map[string]any {
	var v map[string]any
	if err := json.Unmarshal([]byte(s), &v); err == nil {
		return v
	}

	result := make(map[string]any)

	strPattern := regexp.MustCompile(`"([^"]+)"\s*:\s*"([^"]*)"`)
	for _, m := range strPattern.FindAllStringSubmatch(s, -1) {
		result[m[1]] = m[2]
	}

	unquotedStrPattern := regexp.MustCompile(`[,{]([^\s"]+)"\s*:\s*"([^"]*)"`)
	for _, m := range unquotedStrPattern.FindAllStringSubmatch(s, -1) {
		result[m[1]] = m[2]
	}

	numPattern := regexp.MustCompile(`"([^"]+)"\s*:\s*(-?[0-9]+\.?[0-9]*)`)
	for _, m := range numPattern.FindAllStringSubmatch(s, -1) {
		if n, err := strconv.ParseFloat(m[2], 64); err == nil {
			result[m[1]] = n
		}
	}

	boolPattern := regexp.MustCompile(`"([^"]+)"\s*:\s*(true|false)`)
	for _, m := range boolPattern.FindAllStringSubmatch(s, -1) {
		result[m[1]] = m[2] == "true"
	}

	if len(result) == 0 {
		return nil
	}
	return result
}

// fixArguments attempts to repair a malformed arguments string using the
// tool's declared schema. Returns ("", false) if no repair is possible.
func (f *MalformedArgumentsFixer) fixArguments(argsStr, toolName string, schemas map[string][]string) (string, bool) {
	if !malformedPattern.MatchString(argsStr) {
		return "", false
	}

	f.logger.Warn("detected malformed arguments with {}\" pattern",
		"fix_name", f.Name(), "tool_name", toolName, "malformed_args", argsStr)

	schemaParams, ok := schemas[toolName]
	if !ok {
		return "", false
	}

	parsed := aggressiveParseJSON(argsStr)
	if parsed == nil {
		f.logger.Error("could not parse malformed arguments even with aggressive parsing",
			"fix_name", f.Name(), "tool_name", toolName, "malformed_args", argsStr)
		return "", false
	}

	var missing []string
	for _, p := range schemaParams {
		if p == "{}" {
			continue
		}
		if _, present := parsed[p]; !present {
			missing = append(missing, p)
		}
	}

	if len(missing) == 0 {
		f.logger.Error("no missing parameters found, cannot determine replacement",
			"fix_name", f.Name(), "tool_name", toolName)
		return "", false
	}

	_, hasPlaceholder := parsed["{}"]

	if len(missing) == 1 && hasPlaceholder {
		correctParam := missing[0]
		fixedArgs := strings.Replace(argsStr, `{}":`, `"`+correctParam+`":`, 1)
		if isValidJSON(fixedArgs) {
			return fixedArgs, true
		}
		f.logger.Error("fixed arguments are still invalid JSON",
			"fix_name", f.Name(), "tool_name", toolName, "fixed_args", fixedArgs)
		return "", false
	}

	if len(missing) > 1 && hasPlaceholder {
		missingSet := make(map[string]bool, len(missing))
		for _, m := range missing {
			missingSet[m] = true
		}
		for _, guess := range malformedHeuristics {
			if !missingSet[guess] {
				continue
			}
			fixedArgs := strings.Replace(argsStr, `{}":`, `"`+guess+`":`, 1)
			if isValidJSON(fixedArgs) {
				return fixedArgs, true
			}
		}
	}

	return "", false
}

func (f *MalformedArgumentsFixer) fixToolCalls(out map[string]any, schemas map[string][]string) bool {
	fixedAny := false
	for _, c := range choicesOf(out) {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		tcs, _ := toolCallsIn(choice)
		for _, tc := range tcs {
			toolCall, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, ok := toolCall["function"].(map[string]any)
			if !ok {
				continue
			}
			name, _ := fn["name"].(string)
			args, ok := fn["arguments"].(string)
			if !ok {
				continue
			}
			if fixed, ok := f.fixArguments(args, name, schemas); ok {
				fn["arguments"] = fixed
				fixedAny = true
			}
		}
	}
	return fixedAny
}

func (f *MalformedArgumentsFixer) Apply(response map[string]any, request map[string]any) (map[string]any, FixAction) {
	if request == nil {
		return response, ActionNotApplicable()
	}
	schemas := extractToolSchemas(request)
	if len(schemas) == 0 {
		f.logger.Warn("no tool schemas in request - cannot fix malformed arguments without context",
			"fix_name", f.Name())
		return response, ActionNotApplicable()
	}

	out := deepCopyJSON(response)
	if f.fixToolCalls(out, schemas) {
		return out, ActionFixed(`{}" corrupted property name`, "schema-derived parameter name")
	}
	return response, ActionNotApplicable()
}

// ApplyStream fixes malformed arguments inside a streaming delta chunk using
// request-supplied tool schemas. No accumulation is needed: the pattern is
// self-contained within whatever partial text has arrived.
func (f *MalformedArgumentsFixer) ApplyStream(chunk map[string]any, request map[string]any, _ *Accumulator) (map[string]any, FixAction) {
	if request == nil {
		return chunk, ActionNotApplicable()
	}
	schemas := extractToolSchemas(request)
	if len(schemas) == 0 {
		return chunk, ActionNotApplicable()
	}

	out := deepCopyJSON(chunk)
	fixedAny := false
	for _, c := range choicesOf(out) {
		choice, ok := c.(map[string]any)
		if !ok {
			continue
		}
		delta, ok := choice["delta"].(map[string]any)
		if !ok {
			continue
		}
		tcs, _ := delta["tool_calls"].([]any)
		for _, tc := range tcs {
			toolCall, ok := tc.(map[string]any)
			if !ok {
				continue
			}
			fn, ok := toolCall["function"].(map[string]any)
			if !ok {
				continue
			}
			name, _ := fn["name"].(string)
			args, ok := fn["arguments"].(string)
			if !ok || !malformedPattern.MatchString(args) {
				continue
			}
			if fixed, ok := f.fixArguments(args, name, schemas); ok {
				fn["arguments"] = fixed
				fixedAny = true
			}
		}
	}

	if !fixedAny {
		return chunk, ActionNotApplicable()
	}
	return out, ActionFixed(`{}" corrupted property name`, "schema-derived parameter name")
}
