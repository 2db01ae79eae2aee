package site

// Merge collapses the per-site plugin lists into a single first-site-wins
// view (spec §4.7). The primary entry for each plugin name comes from the
// earliest site in order that published it; a later site publishing a
// different version of the same plugin is retained under the synthetic key
// "name:version" rather than dropped.
func Merge(sites []*Site) map[string]PluginEntry {
	merged := make(map[string]PluginEntry)

	for _, s := range sites {
		for _, p := range s.GetAvailables() {
			primary, exists := merged[p.Name]
			switch {
			case !exists:
				merged[p.Name] = p
			case primary.Version == p.Version:
				// Same (name, version) already represented; first site wins.
			default:
				merged[p.Name+":"+p.Version] = p
			}
		}
	}
	return merged
}
