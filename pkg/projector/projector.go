package projector

import (
	"strconv"
	"strings"

	"passbridge/pkg/consts"
	"passbridge/pkg/entities"
)

const (
	defaultStampIcon = "⭐"
	defaultEmptyIcon = "⚪️"
)

// Known field keys with projection rules. Anything else is passed through
// from the template, so campaigns can carry arbitrary custom fields.
const (
	KeyStamps = "stamps"
	KeyPoints = "points"
	KeyTier   = "tier"
)

// Project maps a template plus live state to concrete field values. Pure
// and deterministic; all platform-specific rendering happens downstream in
// the builders.
func Project(tmpl *entities.PassTemplate, state entities.LiveState) entities.ConcreteFields {
	return entities.ConcreteFields{
		Header:    projectSlot(tmpl.Fields.Header, state),
		Primary:   projectSlot(tmpl.Fields.Primary, state),
		Secondary: projectSlot(tmpl.Fields.Secondary, state),
		Auxiliary: projectSlot(tmpl.Fields.Auxiliary, state),
		Back:      projectSlot(tmpl.Fields.Back, state),
	}
}

func projectSlot(fields []entities.TemplateField, state entities.LiveState) []entities.Field {
	if len(fields) == 0 {
		return nil
	}

	out := make([]entities.Field, 0, len(fields))
	for _, field := range fields {
		projected := entities.Field{
			Key:           field.Key,
			Label:         field.Label,
			TextAlignment: field.TextAlignment,
		}

		switch field.Key {
		case KeyStamps:
			value, ok := renderStamps(field, state)
			if !ok {
				// max_stamps of 0 means there is nothing to count;
				// fall back to pass-through rather than divide downstream
				projected.Value = Substitute(field.Value, state)
				break
			}
			projected.Value = value
		case KeyPoints:
			projected.Value = strconv.Itoa(state.Points)
		case KeyTier:
			projected.Value = strings.ToUpper(state.Tier)
		default:
			projected.Value = Substitute(field.Value, state)
		}

		out = append(out, projected)
	}

	return out
}

func renderStamps(field entities.TemplateField, state entities.LiveState) (string, bool) {
	max := state.MaxStamps
	if max <= 0 {
		return "", false
	}

	current := state.Stamps
	if current < 0 {
		current = 0
	}
	if current > max {
		current = max
	}

	if field.RenderMode != consts.RenderModeIcon {
		return strconv.Itoa(current) + " von " + strconv.Itoa(max), true
	}

	icon := field.StampIcon
	if icon == "" {
		icon = defaultStampIcon
	}
	empty := field.EmptyIcon
	if empty == "" {
		empty = defaultEmptyIcon
	}

	parts := make([]string, 0, max)
	for i := 0; i < current; i++ {
		parts = append(parts, icon)
	}
	for i := current; i < max; i++ {
		parts = append(parts, empty)
	}

	return strings.TrimSpace(strings.Join(parts, " ")), true
}

// Substitute replaces {placeholder} tokens in a template value with live
// state entries.
func Substitute(value string, state entities.LiveState) string {
	if !strings.Contains(value, "{") {
		return value
	}

	replacements := []string{
		"{stamps}", strconv.Itoa(state.Stamps),
		"{max_stamps}", strconv.Itoa(state.MaxStamps),
		"{points}", strconv.Itoa(state.Points),
		"{redemptions}", strconv.Itoa(state.Redemptions),
		"{tier}", state.Tier,
		"{latest_news}", state.LatestNews,
		"{customer_number}", state.CustomerNumber,
	}
	for key, val := range state.Extra {
		replacements = append(replacements, "{"+key+"}", val)
	}

	return strings.NewReplacer(replacements...).Replace(value)
}

// SuggestRenderMode inspects a legacy stored field value and infers whether
// the author styled it with pictographs. Used once when importing templates
// authored before render_mode existed, never at render time.
func SuggestRenderMode(storedValue string) string {
	if containsPictograph(storedValue) {
		return consts.RenderModeIcon
	}

	return consts.RenderModeText
}

// FirstPictograph returns the first pictographic rune of a legacy stored
// value, so the glyph the merchant authored survives the import instead of
// being swapped for the default stamp icon.
func FirstPictograph(s string) string {
	for _, r := range s {
		if isPictograph(r) {
			return string(r)
		}
	}

	return ""
}

func containsPictograph(s string) bool {
	for _, r := range s {
		if isPictograph(r) {
			return true
		}
	}

	return false
}

func isPictograph(r rune) bool {
	switch {
	case r >= 0x1F000 && r <= 0x1FAFF: // emoji and symbol planes
		return true
	case r >= 0x2600 && r <= 0x27BF: // misc symbols and dingbats
		return true
	case r >= 0x2B00 && r <= 0x2BFF: // arrows, stars, circles
		return true
	}

	return false
}
