package question

import (
	"fmt"
	"sort"
	"strings"
)

// Topic is a node of the topic tree.
type Topic struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	ParentID  string `json:"parent_id,omitempty"`
	Path      string `json:"path"`
	Depth     int    `json:"depth"`
	TopicArea string `json:"topic_area,omitempty"`
}

// PathSeparator joins slugs in Topic.Path.
const PathSeparator = "/"

// BuildTopicTree resolves parents and fills Path and Depth on every topic.
// A topic whose parent is unknown, or which sits on a cycle, is re-rooted;
// one problem string is returned per re-rooted topic. Order is preserved.
func BuildTopicTree(topics []Topic) ([]Topic, []string) {
	var problems []string
	out := make([]Topic, len(topics))
	copy(out, topics)

	index := make(map[string]int, len(out))
	for i, t := range out {
		index[t.ID] = i
	}
	for i := range out {
		p := out[i].ParentID
		if p == "" {
			continue
		}
		if p == out[i].ID {
			problems = append(problems, fmt.Sprintf("Topic %s is its own parent.", out[i].ID))
			out[i].ParentID = ""
			continue
		}
		if _, ok := index[p]; !ok {
			problems = append(problems, fmt.Sprintf("Topic %s references unknown parent %s.", out[i].ID, p))
			out[i].ParentID = ""
		}
	}

	// A chain that returns to its starting topic is a cycle; cut that topic's edge.
	for i := range out {
		seen := map[string]bool{}
		cur := out[i].ParentID
		for cur != "" && !seen[cur] {
			if cur == out[i].ID {
				problems = append(problems, fmt.Sprintf("Topic %s is part of a parent cycle.", out[i].ID))
				out[i].ParentID = ""
				break
			}
			seen[cur] = true
			cur = out[index[cur]].ParentID
		}
	}

	for i := range out {
		chain := []string{out[i].ID}
		cur := out[i].ParentID
		for cur != "" {
			chain = append(chain, cur)
			cur = out[index[cur]].ParentID
		}
		for l, r := 0, len(chain)-1; l < r; l, r = l+1, r-1 {
			chain[l], chain[r] = chain[r], chain[l]
		}
		out[i].Path = strings.Join(chain, PathSeparator)
		out[i].Depth = len(chain) - 1
	}
	return out, problems
}

// SortTopics orders topics by path so parents precede children.
func SortTopics(topics []Topic) {
	sort.SliceStable(topics, func(i, j int) bool { return topics[i].Path < topics[j].Path })
}
