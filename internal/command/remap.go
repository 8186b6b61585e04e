package command

// legacyAliases maps retired command ids to their canonical equivalents.
// Old extension host builds still send these; the table is part of the
// bridge contract and is consulted on every dispatch, before lookup.
var legacyAliases = map[string]string{
	"exthost.openDiff":            "diff.open",
	"exthost.closeAllDiffs":       "diff.closeAll",
	"exthost.getWorkspaceFolders": "workspace.folders",
}

// Canonical resolves a possibly-legacy command id to its canonical form.
// Unknown ids pass through unchanged.
func Canonical(id string) string {
	if canonical, ok := legacyAliases[id]; ok {
		return canonical
	}
	return id
}

// IsLegacy reports whether id is a retired alias.
func IsLegacy(id string) bool {
	_, ok := legacyAliases[id]
	return ok
}
