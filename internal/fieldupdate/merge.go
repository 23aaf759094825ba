package fieldupdate

// MergeArrayValue returns the value set to submit for an array field whose
// current contents are current. A nil current slice is treated as empty.
// If value is already present the current order is kept as is; otherwise it is
// appended. Matching is exact and case-sensitive.
//
// The returned slice never aliases current.
func MergeArrayValue(current []string, value string) []string {
	merged := make([]string, 0, len(current)+1)
	merged = append(merged, current...)

	for _, existing := range current {
		if existing == value {
			return merged
		}
	}

	return append(merged, value)
}
