package progress

// State is the running position of one streamed search.
type State struct {
	Current  int64 `json:"current"`
	Total    int64 `json:"total"`
	Complete bool  `json:"complete"`
}

// Percent returns completion in the range 0-100.
func (s State) Percent() float64 {
	if s.Complete {
		return 100
	}
	if s.Total <= 0 {
		return 0
	}
	p := float64(s.Current) / float64(s.Total) * 100
	if p > 100 {
		return 100
	}
	return p
}
