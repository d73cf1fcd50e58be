// SPDX-License-Identifier: MPL-2.0

package pymeta

import (
	"fmt"
	"slices"
	"strings"
)

const (
	// ConsoleScriptsGroup is the entry point group for [project.scripts].
	ConsoleScriptsGroup = "console_scripts"
	// GUIScriptsGroup is the entry point group for [project.gui-scripts].
	GUIScriptsGroup = "gui_scripts"
)

// EntryPoints maps an entry point group to its name -> object reference pairs.
type EntryPoints map[string]map[string]string

// Add registers a single entry point.
func (e EntryPoints) Add(group, name, ref string) {
	if e[group] == nil {
		e[group] = make(map[string]string)
	}
	e[group][name] = ref
}

// Empty reports whether no entry point is declared.
func (e EntryPoints) Empty() bool {
	for _, entries := range e {
		if len(entries) > 0 {
			return false
		}
	}
	return true
}

// Render returns the entry_points.txt content with groups and names sorted.
func (e EntryPoints) Render() string {
	groups := make([]string, 0, len(e))
	for group, entries := range e {
		if len(entries) > 0 {
			groups = append(groups, group)
		}
	}
	slices.Sort(groups)

	var sb strings.Builder
	for i, group := range groups {
		if i > 0 {
			sb.WriteString("\n")
		}
		fmt.Fprintf(&sb, "[%s]\n", group)
		names := make([]string, 0, len(e[group]))
		for name := range e[group] {
			names = append(names, name)
		}
		slices.Sort(names)
		for _, name := range names {
			fmt.Fprintf(&sb, "%s=%s\n", name, e[group][name])
		}
	}
	return sb.String()
}

// ConsoleScripts returns the console_scripts entries sorted by name.
func (e EntryPoints) ConsoleScripts() [][2]string {
	entries := e[ConsoleScriptsGroup]
	names := make([]string, 0, len(entries))
	for name := range entries {
		names = append(names, name)
	}
	slices.Sort(names)
	out := make([][2]string, 0, len(names))
	for _, name := range names {
		out = append(out, [2]string{name, entries[name]})
	}
	return out
}
