package facts

import "strconv"

// Delta captures added and removed fact rows between two snapshots.
type Delta struct {
	Added   Tables `json:"added"`
	Removed Tables `json:"removed"`
}

// Empty reports whether the delta carries no rows
func (d Delta) Empty() bool {
	return d.Added.Count() == 0 && d.Removed.Count() == 0
}

// ComputeDelta computes row-level additions and removals between two snapshots.
func ComputeDelta(prev, next Tables) Delta {
	return Delta{
		Added:   diffTables(prev, next),
		Removed: diffTables(next, prev),
	}
}

func diffTables(from, to Tables) Tables {
	return Tables{
		Files: diffRows(from.Files, to.Files, func(r FileRow) string {
			return r.Path + "|" + r.Language
		}),
		Modules: diffRows(from.Modules, to.Modules, func(r ModuleRow) string {
			return r.Name + "|" + r.File + "|" + intKey(r.Line) + "|" + intKey(r.Column)
		}),
		Ports: diffRows(from.Ports, to.Ports, func(r PortRow) string {
			return r.Module + "|" + r.Name + "|" + r.Direction + "|" + r.Type + "|" + r.File + "|" + intKey(r.Line)
		}),
		Parameters: diffRows(from.Parameters, to.Parameters, func(r ParameterRow) string {
			return r.Module + "|" + r.Name + "|" + r.Default + "|" + r.File + "|" + intKey(r.Line)
		}),
		Instances: diffRows(from.Instances, to.Instances, func(r InstanceRow) string {
			return r.Module + "|" + r.Name + "|" + r.Target + "|" + r.File + "|" + intKey(r.Line) + "|" + boolKey(r.Resolved)
		}),
		Duplicates: diffRows(from.Duplicates, to.Duplicates, func(r DuplicateRow) string {
			return r.Name + "|" + r.File + "|" + r.Winner
		}),
	}
}

func diffRows[T any](from, to []T, key func(T) string) []T {
	fromSet := make(map[string]struct{}, len(from))
	for _, row := range from {
		fromSet[key(row)] = struct{}{}
	}
	diff := []T{}
	for _, row := range to {
		if _, ok := fromSet[key(row)]; !ok {
			diff = append(diff, row)
		}
	}
	return diff
}

func boolKey(v bool) string {
	if v {
		return "1"
	}
	return "0"
}

func intKey(v int) string {
	return strconv.Itoa(v)
}
