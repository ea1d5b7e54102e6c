package ngram

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/bits-and-blooms/bloom/v3"
)

var (
	// ErrCountUnderflow is returned when a decrement would take a count below zero
	ErrCountUnderflow = errors.New("n-gram count underflow")

	// ErrInvalidOrder is returned for a non-positive maximum order
	ErrInvalidOrder = errors.New("invalid n-gram order")
)

// TrieNode represents a node in the counting trie
type TrieNode struct {
	tokenID    int               // Token ID at this node
	count      int64             // Occurrences of the sequence ending at this node
	childTotal int64             // Sum of children counts (continuations of this sequence)
	children   map[int]*TrieNode // Children indexed by token ID
}

// NewTrieNode creates a new trie node
func NewTrieNode(tokenID int) *TrieNode {
	return &TrieNode{
		tokenID:  tokenID,
		children: make(map[int]*TrieNode),
	}
}

// Counter stores n-gram counts of every order 1..K in a single trie keyed by token id.
// A path from the root spells an id sequence; its node holds that sequence's count.
// Nodes are kept when their count drops to zero so a forget/relearn pair leaves the
// structure untouched.
type Counter struct {
	order       int
	root        *TrieNode
	totalNGrams int64              // Sum of all node counts
	nodeCount   int64              // Nodes below the root
	bloomFilter *bloom.BloomFilter // Every path ever created, for fast negative lookups
	useBloom    bool
}

// NewCounter creates a counter of maximum order K without a bloom filter
func NewCounter(order int) (*Counter, error) {
	return NewCounterWithBloom(order, false, 0, 0)
}

// NewCounterWithBloom creates a counter with an optional bloom filter in front of trie lookups.
// The filter never yields false negatives, so lookups stay exact.
func NewCounterWithBloom(order int, useBloom bool, expectedItems uint, falsePositiveRate float64) (*Counter, error) {
	if order < 1 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidOrder, order)
	}

	c := &Counter{
		order:    order,
		root:     NewTrieNode(-1),
		useBloom: useBloom,
	}

	if useBloom {
		if expectedItems == 0 {
			expectedItems = 100000
		}
		if falsePositiveRate <= 0 || falsePositiveRate >= 1 {
			falsePositiveRate = 0.01
		}
		c.bloomFilter = bloom.NewWithEstimates(expectedItems, falsePositiveRate)
	}

	return c, nil
}

// Order returns the maximum n-gram order K
func (c *Counter) Order() int {
	return c.order
}

// suffixLength returns how many trailing ids of a sequence are counted
func (c *Counter) suffixLength(ids []int) int {
	if len(ids) < c.order {
		return len(ids)
	}
	return c.order
}

// Increment adds one to the count of every suffix of length 1..min(len, K)
func (c *Counter) Increment(ids []int) {
	n := c.suffixLength(ids)
	for length := 1; length <= n; length++ {
		c.insert(ids[len(ids)-length:])
	}
}

// insert walks (creating as needed) the path for ids and bumps its count
func (c *Counter) insert(ids []int) {
	var key []byte
	parent := c.root
	current := c.root
	for _, id := range ids {
		key = binary.AppendUvarint(key, uint64(id))
		child, exists := current.children[id]
		if !exists {
			child = NewTrieNode(id)
			current.children[id] = child
			c.nodeCount++
			if c.useBloom {
				c.bloomFilter.Add(key)
			}
		}
		parent = current
		current = child
	}

	current.count++
	parent.childTotal++
	c.totalNGrams++
}

// Decrement subtracts one from the count of every suffix of length 1..min(len, K).
// If any of those counts is already zero nothing is changed and ErrCountUnderflow is returned.
func (c *Counter) Decrement(ids []int) error {
	n := c.suffixLength(ids)

	type step struct {
		node   *TrieNode
		parent *TrieNode
	}
	steps := make([]step, 0, n)
	for length := 1; length <= n; length++ {
		suffix := ids[len(ids)-length:]
		node, parent := c.findWithParent(suffix)
		if node == nil || node.count == 0 {
			return fmt.Errorf("%w: sequence %v at order %d", ErrCountUnderflow, suffix, length)
		}
		steps = append(steps, step{node: node, parent: parent})
	}

	for _, s := range steps {
		s.node.count--
		s.parent.childTotal--
		c.totalNGrams--
	}
	return nil
}

// CountsAt returns the count of the trailing `order` ids (the whole sequence if shorter)
func (c *Counter) CountsAt(ids []int, order int) int64 {
	if order <= 0 || len(ids) == 0 {
		return 0
	}
	if order > len(ids) {
		order = len(ids)
	}
	node := c.find(ids[len(ids)-order:])
	if node == nil {
		return 0
	}
	return node.count
}

// ContextCount returns how many counted continuations follow context.
// The empty context yields the total unigram mass.
func (c *Counter) ContextCount(context []int) int64 {
	node := c.find(context)
	if node == nil {
		return 0
	}
	return node.childTotal
}

// Continuations returns the ids ever observed directly after context, including
// those whose count is currently zero
func (c *Counter) Continuations(context []int) []int {
	node := c.find(context)
	if node == nil {
		return nil
	}
	ids := make([]int, 0, len(node.children))
	for id := range node.children {
		ids = append(ids, id)
	}
	return ids
}

func (c *Counter) find(ids []int) *TrieNode {
	node, _ := c.findWithParent(ids)
	return node
}

func (c *Counter) findWithParent(ids []int) (*TrieNode, *TrieNode) {
	if len(ids) == 0 {
		return c.root, nil
	}

	if c.useBloom {
		var key []byte
		for _, id := range ids {
			key = binary.AppendUvarint(key, uint64(id))
		}
		if !c.bloomFilter.Test(key) {
			return nil, nil
		}
	}

	parent := c.root
	current := c.root
	for _, id := range ids {
		child, exists := current.children[id]
		if !exists {
			return nil, nil
		}
		parent = current
		current = child
	}
	return current, parent
}

// TotalNGrams returns the sum of counts over all orders
func (c *Counter) TotalNGrams() int64 {
	return c.totalNGrams
}

// MemoryStats returns memory usage statistics
func (c *Counter) MemoryStats() TrieMemoryStats {
	stats := TrieMemoryStats{
		TotalNodes:      c.nodeCount,
		TotalNGrams:     c.totalNGrams,
		NodeMemoryBytes: c.nodeCount * 64, // Approx: tokenID(8) + counts(16) + map header(8) + entry(32)
	}
	if c.useBloom {
		stats.BloomMemoryBytes = int64(c.bloomFilter.Cap() / 8)
	}
	return stats
}

// TrieMemoryStats contains memory usage statistics
type TrieMemoryStats struct {
	TotalNodes       int64 `json:"total_nodes"`
	TotalNGrams      int64 `json:"total_ngrams"`
	NodeMemoryBytes  int64 `json:"node_memory_bytes"`
	BloomMemoryBytes int64 `json:"bloom_memory_bytes"`
}

// TotalMemoryBytes returns the estimated total memory usage
func (s TrieMemoryStats) TotalMemoryBytes() int64 {
	return s.NodeMemoryBytes + s.BloomMemoryBytes
}

// SerializableTrieNode represents a serialized trie node
type SerializableTrieNode struct {
	ID          int         // Node ID in serialized form
	TokenID     int         // Token ID
	Count       int64       // Frequency
	ChildrenIDs map[int]int // TokenID -> child node ID
}

// CounterSnapshot is the flattened, encodable form of a Counter
type CounterSnapshot struct {
	Order int
	Nodes []SerializableTrieNode
}

// Snapshot flattens the trie; the root always receives ID 0
func (c *Counter) Snapshot() CounterSnapshot {
	nodes := make([]SerializableTrieNode, 0, c.nodeCount+1)
	nextID := 0

	var flatten func(*TrieNode)
	flatten = func(node *TrieNode) {
		sNode := SerializableTrieNode{
			ID:          nextID,
			TokenID:     node.tokenID,
			Count:       node.count,
			ChildrenIDs: make(map[int]int, len(node.children)),
		}
		nextID++

		for tokenID, child := range node.children {
			sNode.ChildrenIDs[tokenID] = nextID
			flatten(child)
		}
		nodes = append(nodes, sNode)
	}
	flatten(c.root)

	return CounterSnapshot{Order: c.order, Nodes: nodes}
}

// RestoreCounter rebuilds a counter from a snapshot, recomputing continuation totals
// and the bloom filter
func RestoreCounter(snapshot CounterSnapshot, useBloom bool, expectedItems uint, falsePositiveRate float64) (*Counter, error) {
	c, err := NewCounterWithBloom(snapshot.Order, useBloom, expectedItems, falsePositiveRate)
	if err != nil {
		return nil, err
	}
	if len(snapshot.Nodes) == 0 {
		return c, nil
	}

	byID := make(map[int]SerializableTrieNode, len(snapshot.Nodes))
	for _, sNode := range snapshot.Nodes {
		byID[sNode.ID] = sNode
	}
	rootNode, ok := byID[0]
	if !ok {
		return nil, fmt.Errorf("snapshot has no root node")
	}

	var rebuild func(sNode SerializableTrieNode, node *TrieNode, key []byte, depth int) error
	rebuild = func(sNode SerializableTrieNode, node *TrieNode, key []byte, depth int) error {
		if depth > c.order {
			return fmt.Errorf("snapshot path deeper than order %d", c.order)
		}
		for tokenID, childID := range sNode.ChildrenIDs {
			sChild, exists := byID[childID]
			if !exists {
				return fmt.Errorf("snapshot references missing node %d", childID)
			}
			if sChild.Count < 0 {
				return fmt.Errorf("snapshot node %d has negative count", childID)
			}
			child := NewTrieNode(tokenID)
			child.count = sChild.Count
			node.children[tokenID] = child
			node.childTotal += sChild.Count
			c.nodeCount++
			c.totalNGrams += sChild.Count

			childKey := binary.AppendUvarint(append([]byte(nil), key...), uint64(tokenID))
			if c.useBloom {
				c.bloomFilter.Add(childKey)
			}
			if err := rebuild(sChild, child, childKey, depth+1); err != nil {
				return err
			}
		}
		return nil
	}

	if err := rebuild(rootNode, c.root, nil, 0); err != nil {
		return nil, err
	}
	return c, nil
}
