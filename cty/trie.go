package cty

// prefixTrie is a read-only byte trie over prefix keys.
//
// Walking the callsign from the root, every terminal node passed is the best
// match so far; the last one seen is the longest matching prefix. This is the
// same answer as trying substrings of length N, N-1, ... 1 against a map.
// Nodes live in a slice so child links are small indices.
type prefixTrie struct {
	nodes []trieNode
}

type trieNode struct {
	next        map[byte]int
	terminalKey string
}

func buildPrefixTrie(keys []string) prefixTrie {
	tr := prefixTrie{nodes: []trieNode{{next: make(map[byte]int)}}}
	for _, key := range keys {
		if key == "" {
			continue
		}
		state := 0
		for i := 0; i < len(key); i++ {
			ch := key[i]
			next := tr.nodes[state].next
			if next == nil {
				next = make(map[byte]int)
				tr.nodes[state].next = next
			}
			child, ok := next[ch]
			if !ok {
				child = len(tr.nodes)
				tr.nodes = append(tr.nodes, trieNode{})
				next[ch] = child
			}
			state = child
		}
		tr.nodes[state].terminalKey = key
	}
	return tr
}

func (tr *prefixTrie) longestPrefixKey(cs string) (string, bool) {
	if len(tr.nodes) == 0 || cs == "" {
		return "", false
	}
	state := 0
	best := ""
	for i := 0; i < len(cs); i++ {
		child, ok := tr.nodes[state].next[cs[i]]
		if !ok {
			break
		}
		state = child
		if key := tr.nodes[state].terminalKey; key != "" {
			best = key
		}
	}
	return best, best != ""
}
