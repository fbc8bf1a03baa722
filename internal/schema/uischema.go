package schema

// BuildUISchema lifts vays_category/vays_group/vays_options annotations
// (§4.8 "ui vays_category") from the final, walked JSON Schema into a
// Categorization/Category/Group/Control UI schema tree.
//
// The original runs this as a late ui_schema plugin walking in lockstep
// with the json_schema walk, mutating a parallel UI tree as it descends.
// Here it runs as a single post-pass over the already-final schema's
// properties instead of a parallel walk — a deliberate simplification
// that preserves the externally observable
// result (the same Categorization tree for the same annotated schema)
// without threading a second mutable tree through every walk step.
func BuildUISchema(finalSchema map[string]any) map[string]any {
	ui := map[string]any{
		"type":     "Categorization",
		"elements": []any{},
	}

	props, _ := finalSchema["properties"].(map[string]any)
	for name, raw := range props {
		propSchema, ok := raw.(map[string]any)
		if !ok {
			continue
		}
		category, _ := propSchema["vays_category"].(string)
		group, _ := propSchema["vays_group"].(string)
		if category == "" {
			category = "General"
		}
		if group == "" {
			group = category
		}

		control := map[string]any{
			"type":  "Control",
			"scope": "#/properties/" + name,
		}
		if opts, ok := propSchema["vays_options"]; ok {
			control["options"] = opts
		}

		addControl(ui, category, group, control)
	}

	return ui
}

func addControl(ui map[string]any, category, group string, control map[string]any) {
	elements := ui["elements"].([]any)

	var categoryNode map[string]any
	for _, e := range elements {
		m, ok := e.(map[string]any)
		if ok && m["label"] == category {
			categoryNode = m
			break
		}
	}
	if categoryNode == nil {
		categoryNode = map[string]any{
			"type":     "Category",
			"label":    category,
			"elements": []any{},
		}
		elements = append(elements, categoryNode)
		ui["elements"] = elements
	}

	catElements := categoryNode["elements"].([]any)
	var groupNode map[string]any
	for _, e := range catElements {
		m, ok := e.(map[string]any)
		if ok && m["label"] == group {
			groupNode = m
			break
		}
	}
	if groupNode == nil {
		groupNode = map[string]any{
			"type":     "Group",
			"label":    group,
			"elements": []any{},
		}
		catElements = append(catElements, groupNode)
		categoryNode["elements"] = catElements
	}

	groupNode["elements"] = append(groupNode["elements"].([]any), control)
}
