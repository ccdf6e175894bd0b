package layout

import "sort"

// OrphanReport names the tolerated document inconsistencies: geometry
// records whose instance no longer exists, and instances that have no
// geometry record. Renderers skip both instead of failing.
type OrphanReport struct {
	OrphanGeometry    []string `json:"orphanGeometry,omitempty"`
	MissingGeometry   []string `json:"missingGeometry,omitempty"`
	DuplicateGeometry []string `json:"duplicateGeometry,omitempty"`
}

// Clean reports whether the document satisfies the one-to-one mapping between
// instances and geometry records.
func (r OrphanReport) Clean() bool {
	return len(r.OrphanGeometry) == 0 && len(r.MissingGeometry) == 0 && len(r.DuplicateGeometry) == 0
}

// Analyze cross-references instances against geometry and reports violations
// in sorted order.
func (d *Document) Analyze() OrphanReport {
	var report OrphanReport

	seen := make(map[string]int, len(d.Layout))
	for _, item := range d.Layout {
		seen[item.I]++
		if _, ok := d.Instances[item.I]; !ok {
			report.OrphanGeometry = append(report.OrphanGeometry, item.I)
		}
	}
	for id, count := range seen {
		if count > 1 {
			report.DuplicateGeometry = append(report.DuplicateGeometry, id)
		}
	}
	for id := range d.Instances {
		if seen[id] == 0 {
			report.MissingGeometry = append(report.MissingGeometry, id)
		}
	}

	sort.Strings(report.OrphanGeometry)
	sort.Strings(report.MissingGeometry)
	sort.Strings(report.DuplicateGeometry)
	return report
}
