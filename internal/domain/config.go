package domain

import "strings"

// IndexNaming builds backing index names of the form
// "<prefix><sep><taxonomy><sep><hub><sep><release>".
type IndexNaming struct {
	Separator string
	Hub       string
	Release   string
}

// DefaultIndexNaming returns the naming used by the reference deployment.
func DefaultIndexNaming() IndexNaming {
	return IndexNaming{
		Separator: "--",
		Hub:       "goat",
		Release:   "latest",
	}
}

// Name returns the index for prefix (a record category or schema kind)
// under taxonomy.
func (n IndexNaming) Name(prefix, taxonomy string) string {
	return strings.Join([]string{prefix, taxonomy, n.Hub, n.Release}, n.Separator)
}
