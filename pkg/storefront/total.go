package storefront

import "github.com/google/uuid"

// ComputeTotal sums unit price times quantity over the lines whose id is in
// selected. It reads no store and returns 0 for an empty selection. Ids in
// selected that match no line are ignored, and a line is counted once no
// matter how often its id is repeated.
func ComputeTotal(lines []*CartLine, selected []uuid.UUID) int64 {
	if len(selected) == 0 {
		return 0
	}
	set := make(map[uuid.UUID]struct{}, len(selected))
	for _, id := range selected {
		set[id] = struct{}{}
	}

	var total int64
	seen := make(map[uuid.UUID]struct{}, len(set))
	for _, line := range lines {
		if line == nil {
			continue
		}
		if _, ok := set[line.ID]; !ok {
			continue
		}
		if _, dup := seen[line.ID]; dup {
			continue
		}
		seen[line.ID] = struct{}{}
		total += line.Subtotal()
	}
	return total
}
