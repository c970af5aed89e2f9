package selector

import "strings"

// canonicalRoleTable normalises common role spellings to the canonical form
// used throughout the core. Platform engines translate their native role
// constants into this same set (internal/platform).
var canonicalRoleTable = map[string]string{
	"button":        "Button",
	"edit":          "Edit",
	"textbox":       "Edit",
	"menuitem":      "MenuItem",
	"menu":          "Menu",
	"document":      "Document",
	"window":        "Window",
	"dialog":        "Dialog",
	"pane":          "Pane",
	"group":         "Group",
	"text":          "Text",
	"label":         "Text",
	"checkbox":      "CheckBox",
	"radiobutton":   "RadioButton",
	"combobox":      "ComboBox",
	"listbox":       "ListBox",
	"listitem":      "ListItem",
	"tree":          "Tree",
	"treeitem":      "TreeItem",
	"tab":           "Tab",
	"tabitem":       "TabItem",
	"toolbar":       "ToolBar",
	"statusbar":     "StatusBar",
	"scrollbar":     "ScrollBar",
	"slider":        "Slider",
	"progressbar":   "ProgressBar",
	"image":         "Image",
	"hyperlink":     "Hyperlink",
	"table":         "Table",
	"row":           "Row",
	"cell":          "Cell",
	"header":        "Header",
	"headeritem":    "HeaderItem",
	"separator":     "Separator",
	"titlebar":      "TitleBar",
	"splitbutton":   "SplitButton",
	"spinner":       "Spinner",
	"calendar":      "Calendar",
	"custom":        "Custom",
	"appbar":        "AppBar",
}

// canonicalRole normalises a role string for comparison and rendering.
// Unrecognised roles pass through unchanged so new platform roles are never
// silently lost (callers fall back to "Unknown" only at the platform
// mapping boundary, not here).
func canonicalRole(role string) string {
	key := strings.ToLower(strings.TrimSpace(role))
	if canonical, ok := canonicalRoleTable[key]; ok {
		return canonical
	}
	return strings.TrimSpace(role)
}
