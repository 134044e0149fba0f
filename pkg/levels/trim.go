package levels

// TrimTail drops entries from the end of list so that at most maxValues
// remain. The backing array is reused.
func TrimTail[T any](list []T, maxValues int) []T {
	if maxValues < 0 {
		maxValues = 0
	}
	if len(list) > maxValues {
		return list[:maxValues]
	}
	return list
}

// TrimHead drops entries from the front of list so that at most maxValues
// remain.
func TrimHead[T any](list []T, maxValues int) []T {
	if maxValues < 0 {
		maxValues = 0
	}
	if len(list) > maxValues {
		return list[len(list)-maxValues:]
	}
	return list
}

// Trim keeps count entries starting at offset.
func Trim[T any](list []T, offset, count int) []T {
	if offset < 0 {
		offset = 0
	}
	list = TrimHead(list, len(list)-offset)
	return TrimTail(list, count)
}
