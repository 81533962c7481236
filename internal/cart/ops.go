package cart

const (
	opAdd            = "add"
	opUpdateQuantity = "update_quantity"
	opRemove         = "remove"
	opRemoveSelected = "remove_selected"
)

// mutation is a pure transform of the cart. Every transform returns a fresh
// slice so snapshots already handed out are never modified.
type mutation struct {
	op    string
	apply func([]LineItem) []LineItem
}

func addItem(item LineItem) mutation {
	return mutation{op: opAdd, apply: func(items []LineItem) []LineItem {
		out := make([]LineItem, len(items), len(items)+1)
		copy(out, items)
		for i := range out {
			if out[i].SameEntry(item) {
				out[i].Quantity += item.Quantity
				return out
			}
		}
		return append(out, item)
	}}
}

// setQuantity matches on item id alone, across all users.
func setQuantity(itemID int64, quantity int) mutation {
	return mutation{op: opUpdateQuantity, apply: func(items []LineItem) []LineItem {
		out := make([]LineItem, len(items))
		copy(out, items)
		for i := range out {
			if out[i].ItemID == itemID {
				out[i].Quantity = quantity
			}
		}
		return out
	}}
}

// removeItem matches on item id alone, across all users.
func removeItem(itemID int64) mutation {
	return mutation{op: opRemove, apply: func(items []LineItem) []LineItem {
		return filterOut(items, func(it LineItem) bool { return it.ItemID == itemID })
	}}
}

func removeSelected(selected []LineItem) mutation {
	ids := make(map[int64]struct{}, len(selected))
	for _, it := range selected {
		ids[it.ItemID] = struct{}{}
	}
	return mutation{op: opRemoveSelected, apply: func(items []LineItem) []LineItem {
		return filterOut(items, func(it LineItem) bool {
			_, hit := ids[it.ItemID]
			return hit
		})
	}}
}

func filterOut(items []LineItem, drop func(LineItem) bool) []LineItem {
	out := make([]LineItem, 0, len(items))
	for _, it := range items {
		if !drop(it) {
			out = append(out, it)
		}
	}
	return out
}
