package patch

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	toml "github.com/pelletier/go-toml/v2"
)

// Keys recognized in a patch document.
const (
	keyTitleID     = "title_id"
	keyTitleName   = "title_name"
	keyPatch       = "patch"
	keyID          = "id"
	keyName        = "name"
	keyDescription = "description"
	keyDesc        = "desc"
	keyAuthor      = "author"
	keyEnabled     = "enabled"
	keyIsEnabled   = "is_enabled"
	keyEdit        = "edit"
	keySize        = "size"
	keyAddress     = "address"
	keyValue       = "value"
)

// Decode decodes TOML text into a document tree and parses it with Parse.
func Decode(data []byte, source string) (*File, []Diagnostic, error) {
	var tree map[string]any
	if err := toml.Unmarshal(data, &tree); err != nil {
		return nil, nil, fmt.Errorf("%w: parsing %s: %w", ErrSourceUnreadable, source, err)
	}
	return Parse(tree, source)
}

// Parse builds a File from a decoded document tree. Malformed edits are
// skipped and reported as diagnostics; the only fatal condition is a
// missing or unusable title_id, reported as an error wrapping
// ErrMissingTitleID.
func Parse(tree map[string]any, source string) (*File, []Diagnostic, error) {
	raw, ok := tree[keyTitleID]
	if !ok {
		return nil, nil, &Diagnostic{
			Category: CatMissingTitleID,
			Source:   source,
			Edit:     -1,
			Field:    keyTitleID,
			Err:      ErrMissingTitleID,
		}
	}
	titleID, err := parseTitleID(raw)
	if err != nil {
		return nil, nil, &Diagnostic{
			Category: CatMissingTitleID,
			Source:   source,
			Edit:     -1,
			Field:    keyTitleID,
			Err:      fmt.Errorf("%w: %w", ErrMissingTitleID, err),
		}
	}

	p := &parser{source: source}
	f := &File{
		TitleID:   titleID,
		TitleName: p.str(tree, keyTitleName),
		Source:    source,
	}

	seen := make(map[uint32]bool)
	for i, block := range p.tables(tree, keyPatch) {
		def := p.definition(i, block)
		if seen[def.ID] {
			p.warn(Diagnostic{
				Category: CatDuplicatePatchID,
				PatchID:  def.ID,
				HasPatch: true,
				Edit:     -1,
				Field:    keyID,
				Err:      fmt.Errorf("%w: %d", ErrDuplicatePatchID, def.ID),
			})
		}
		seen[def.ID] = true
		f.Definitions = append(f.Definitions, def)
	}
	return f, p.diags, nil
}

// parser accumulates diagnostics while walking one document.
type parser struct {
	source string
	diags  []Diagnostic
}

func (p *parser) warn(d Diagnostic) {
	d.Source = p.source
	p.diags = append(p.diags, d)
}

func (p *parser) definition(index int, block map[string]any) *Definition {
	def := &Definition{Enabled: true}

	if raw, ok := block[keyID]; ok {
		id, err := toUint(raw, 32)
		if err != nil {
			p.warn(Diagnostic{
				Category: CatMalformedValue,
				Edit:     -1,
				Field:    fmt.Sprintf("patch[%d].%s", index, keyID),
				Err:      fmt.Errorf("%w: %w", ErrMalformedValue, err),
			})
		}
		def.ID = uint32(id)
	} else {
		p.warn(Diagnostic{
			Category: CatMalformedValue,
			Edit:     -1,
			Field:    fmt.Sprintf("patch[%d].%s", index, keyID),
			Err:      fmt.Errorf("%w: missing", ErrMalformedValue),
		})
	}

	def.Name = p.str(block, keyName)
	def.Description = p.str(block, keyDescription)
	if def.Description == "" {
		def.Description = p.str(block, keyDesc)
	}
	def.Author = p.str(block, keyAuthor)

	for _, key := range []string{keyEnabled, keyIsEnabled} {
		raw, ok := block[key]
		if !ok {
			continue
		}
		b, isBool := raw.(bool)
		if !isBool {
			p.warn(Diagnostic{
				Category: CatMalformedValue,
				PatchID:  def.ID,
				HasPatch: true,
				Edit:     -1,
				Field:    key,
				Err:      fmt.Errorf("%w: want boolean, got %T", ErrMalformedValue, raw),
			})
			continue
		}
		def.Enabled = b
		break
	}

	for j, raw := range p.tables(block, keyEdit) {
		e, err := parseEdit(raw)
		if err != nil {
			p.warn(Diagnostic{
				Category: CategoryFor(err),
				PatchID:  def.ID,
				HasPatch: true,
				Edit:     j,
				Err:      err,
			})
			continue
		}
		def.Edits = append(def.Edits, e)
	}

	// Edits may also be grouped under their size token, as in
	// [[patch.be32]]. Groups are read in width order.
	for _, key := range editGroups(block) {
		w, err := ParseWidth(key)
		if err != nil {
			p.warn(Diagnostic{
				Category: CatUnrecognizedWidth,
				PatchID:  def.ID,
				HasPatch: true,
				Edit:     -1,
				Field:    key,
				Err:      err,
			})
			continue
		}
		for j, raw := range p.tables(block, key) {
			e, err := parseEditAt(w, raw)
			if err != nil {
				p.warn(Diagnostic{
					Category: CategoryFor(err),
					PatchID:  def.ID,
					HasPatch: true,
					Edit:     j,
					Field:    key,
					Err:      err,
				})
				continue
			}
			def.Edits = append(def.Edits, e)
		}
	}
	return def
}

// definitionKeys are the patch block keys that never hold edit groups.
var definitionKeys = map[string]bool{
	keyID: true, keyName: true, keyDescription: true, keyDesc: true,
	keyAuthor: true, keyEnabled: true, keyIsEnabled: true, keyEdit: true,
}

// editGroups returns the size token keys of block plus any other key
// holding tables, ordered by width and then by name. Keys that are not
// size tokens sort last.
func editGroups(block map[string]any) []string {
	var keys []string
	for k, v := range block {
		if definitionKeys[k] {
			continue
		}
		if _, err := ParseWidth(k); err != nil && !isTables(v) {
			continue
		}
		keys = append(keys, k)
	}
	rank := func(k string) Width {
		if w, err := ParseWidth(k); err == nil {
			return w
		}
		return DWord + 1
	}
	slices.SortFunc(keys, func(a, b string) int {
		if c := cmp.Compare(rank(a), rank(b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return keys
}

// isTables reports whether v decoded from a table or an array of tables.
func isTables(v any) bool {
	switch t := v.(type) {
	case map[string]any, []map[string]any:
		return true
	case []any:
		if len(t) == 0 {
			return false
		}
		for _, item := range t {
			if _, ok := item.(map[string]any); !ok {
				return false
			}
		}
		return true
	}
	return false
}

func parseEdit(t map[string]any) (Edit, error) {
	token, ok := t[keySize].(string)
	if !ok {
		return Edit{}, fmt.Errorf("%w: size must be a string, got %T", ErrUnrecognizedWidth, t[keySize])
	}
	w, err := ParseWidth(token)
	if err != nil {
		return Edit{}, err
	}
	return parseEditAt(w, t)
}

// parseEditAt reads the address and value of an edit whose width is
// already known.
func parseEditAt(w Width, t map[string]any) (Edit, error) {
	rawAddr, ok := t[keyAddress]
	if !ok {
		return Edit{}, fmt.Errorf("%w: missing", ErrMalformedAddress)
	}
	addr, err := toUint(rawAddr, 32)
	if err != nil {
		return Edit{}, fmt.Errorf("%w: %w", ErrMalformedAddress, err)
	}

	rawVal, ok := t[keyValue]
	if !ok {
		return Edit{}, fmt.Errorf("%w: value missing", ErrMalformedValue)
	}
	v, err := valueBits(rawVal, w)
	if err != nil {
		return Edit{}, err
	}
	return NewEdit(w, uint32(addr), v)
}

// valueBits converts a decoded value into the raw bit pattern for w.
// Negative integers within the signed range of w are stored in two's
// complement. Floats are accepted for Word (single precision) and DWord
// (double precision).
func valueBits(raw any, w Width) (uint64, error) {
	switch v := raw.(type) {
	case float64:
		switch w {
		case Word:
			if math.Abs(v) > math.MaxFloat32 && !math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: %g overflows single precision", ErrValueOutOfRange, v)
			}
			return uint64(math.Float32bits(float32(v))), nil
		case DWord:
			return math.Float64bits(v), nil
		}
		return 0, fmt.Errorf("%w: float %g needs a word or dword width", ErrValueOutOfRange, v)
	case string:
		s := strings.TrimSpace(v)
		if strings.HasPrefix(s, "-") {
			n, err := strconv.ParseInt(s, 0, 64)
			if err != nil {
				return 0, fmt.Errorf("%w: %q", ErrMalformedValue, v)
			}
			return signedBits(n, w)
		}
		n, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrMalformedValue, v)
		}
		return n, nil
	}

	n, signed, err := toInteger(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %w", ErrMalformedValue, err)
	}
	if signed < 0 {
		return signedBits(signed, w)
	}
	return n, nil
}

func signedBits(n int64, w Width) (uint64, error) {
	if w < DWord {
		lim := int64(1) << (8*uint(w) - 1)
		if n < -lim {
			return 0, fmt.Errorf("%w: %d does not fit in %d signed byte(s)", ErrValueOutOfRange, n, w.Bytes())
		}
	}
	return uint64(n) & w.Max(), nil
}

// toInteger normalizes decoder integer types. signed is the value when it
// is negative, zero otherwise.
func toInteger(raw any) (n uint64, signed int64, err error) {
	switch v := raw.(type) {
	case int64:
		if v < 0 {
			return 0, v, nil
		}
		return uint64(v), 0, nil
	case int:
		if v < 0 {
			return 0, int64(v), nil
		}
		return uint64(v), 0, nil
	case uint64:
		return v, 0, nil
	case uint32:
		return uint64(v), 0, nil
	}
	return 0, 0, fmt.Errorf("want integer, got %T", raw)
}

// toUint converts an integer or numeric string into an unsigned value of at
// most bits bits. Strings may carry a 0x, 0o or 0b prefix.
func toUint(raw any, bits int) (uint64, error) {
	if s, ok := raw.(string); ok {
		n, err := strconv.ParseUint(strings.TrimSpace(s), 0, bits)
		if err != nil {
			return 0, fmt.Errorf("%q is not an unsigned %d-bit number", s, bits)
		}
		return n, nil
	}
	n, signed, err := toInteger(raw)
	if err != nil {
		return 0, err
	}
	if signed < 0 {
		return 0, fmt.Errorf("%d is negative", signed)
	}
	if bits < 64 && n>>uint(bits) != 0 {
		return 0, fmt.Errorf("%#x exceeds %d bits", n, bits)
	}
	return n, nil
}

// parseTitleID accepts an integer or a hexadecimal string, with or without
// a 0x prefix, as title ids are conventionally written in hex.
func parseTitleID(raw any) (uint32, error) {
	if s, ok := raw.(string); ok {
		s = strings.TrimSpace(s)
		s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
		n, err := strconv.ParseUint(s, 16, 32)
		if err != nil {
			return 0, fmt.Errorf("%q is not a 32-bit hex title id", raw)
		}
		return uint32(n), nil
	}
	n, err := toUint(raw, 32)
	return uint32(n), err
}

// str returns t[key] as a string, warning when it holds another type.
func (p *parser) str(t map[string]any, key string) string {
	raw, ok := t[key]
	if !ok {
		return ""
	}
	s, ok := raw.(string)
	if !ok {
		p.warn(Diagnostic{
			Category: CatMalformedValue,
			Edit:     -1,
			Field:    key,
			Err:      fmt.Errorf("%w: want string, got %T", ErrMalformedValue, raw),
		})
	}
	return s
}

// tables returns t[key] as a list of tables. Non-table entries are reported
// and dropped.
func (p *parser) tables(t map[string]any, key string) []map[string]any {
	switch v := t[key].(type) {
	case nil:
		return nil
	case []map[string]any:
		return v
	case map[string]any:
		return []map[string]any{v}
	case []any:
		out := make([]map[string]any, 0, len(v))
		for i, item := range v {
			m, ok := item.(map[string]any)
			if !ok {
				p.warn(Diagnostic{
					Category: CatMalformedValue,
					Edit:     -1,
					Field:    fmt.Sprintf("%s[%d]", key, i),
					Err:      fmt.Errorf("%w: want table, got %T", ErrMalformedValue, item),
				})
				continue
			}
			out = append(out, m)
		}
		return out
	default:
		p.warn(Diagnostic{
			Category: CatMalformedValue,
			Edit:     -1,
			Field:    key,
			Err:      fmt.Errorf("%w: want array of tables, got %T", ErrMalformedValue, v),
		})
		return nil
	}
}
