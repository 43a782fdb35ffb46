package mining

import (
	"strconv"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Config holds the parse-tree parameters.
type Config struct {
	// Depth is the total tree depth including the length level and the leaf.
	// A depth of 4 gives two literal token levels.
	Depth int

	// SimTh is the similarity threshold for joining an existing cluster:
	// the fraction of non-wildcard template positions that must match.
	SimTh float64

	// MaxChildren caps both the branches per inner node and the clusters per
	// leaf bucket. A full leaf evicts its least-recently-matched cluster.
	MaxChildren int

	// MaxClusters caps clusters process-wide; exceeding it evicts the
	// least-recently-matched cluster across all leaves.
	MaxClusters int

	// ExtraDelimiters are split into token boundaries in addition to
	// whitespace.
	ExtraDelimiters string

	// ParamString is the wildcard marker used in templates.
	ParamString string
}

// DefaultConfig returns the mining parameters used in production:
// depth 4, similarity 0.4, 100 children per node, 1000 clusters total.
func DefaultConfig() Config {
	return Config{
		Depth:           4,
		SimTh:           0.4,
		MaxChildren:     100,
		MaxClusters:     1000,
		ExtraDelimiters: ":=,\"'[](){}<>|\\/?!;&%$#@^*+-_~" + "`",
		ParamString:     "<*>",
	}
}

// Result is the miner's verdict for one message.
type Result struct {
	TemplateID  string `json:"template_id"`
	Template    string `json:"template"`
	ClusterSize int64  `json:"cluster_size"`
}

// Cluster is one learned template: its token skeleton, occurrence count, and
// recency for LRU eviction and tie-breaking.
type Cluster struct {
	ID          uint64
	Tokens      []string
	Size        int64
	lastMatched uint64
	leaf        *node
}

// Template returns the cluster's template string.
func (c *Cluster) Template() string {
	return strings.Join(c.Tokens, " ")
}

type node struct {
	children map[string]*node
	clusters []*Cluster
}

func newNode() *node {
	return &node{children: make(map[string]*node)}
}

// Tree is the fixed-depth parse tree. Level 0 indexes by token count,
// inner levels by the literal token at that position with a dedicated
// wildcard branch, and leaves hold cluster buckets.
//
// Tree is not safe for concurrent use; the Miner actor serializes access.
type Tree struct {
	cfg        Config
	lengthRoot map[int]*node
	clusters   *lru.Cache[uint64, *Cluster]
	nextID     uint64
	clock      uint64
}

// NewTree creates an empty parse tree.
func NewTree(cfg Config) (*Tree, error) {
	t := &Tree{
		cfg:        cfg,
		lengthRoot: make(map[int]*node),
		nextID:     1,
	}
	cache, err := lru.NewWithEvict[uint64, *Cluster](cfg.MaxClusters, func(_ uint64, c *Cluster) {
		t.unlink(c)
	})
	if err != nil {
		return nil, err
	}
	t.clusters = cache
	return t, nil
}

// Tokenize splits a message on whitespace and the configured extra
// delimiters. The wildcard marker survives as a single token even though it
// is built from delimiter characters. Tokens are never re-split afterwards.
func (t *Tree) Tokenize(message string) []string {
	const sentinel = "\x00"
	message = strings.ReplaceAll(message, t.cfg.ParamString, sentinel)
	var b strings.Builder
	b.Grow(len(message))
	for _, r := range message {
		if strings.ContainsRune(t.cfg.ExtraDelimiters, r) {
			b.WriteRune(' ')
		} else {
			b.WriteRune(r)
		}
	}
	tokens := strings.Fields(b.String())
	for i, token := range tokens {
		if strings.Contains(token, sentinel) {
			tokens[i] = strings.ReplaceAll(token, sentinel, t.cfg.ParamString)
		}
	}
	return tokens
}

// Add masks, tokenizes, and inserts one message, returning the matched or
// newly created cluster's verdict.
func (t *Tree) Add(message string) Result {
	tokens := t.Tokenize(Mask(message, t.cfg.ParamString))
	cluster := t.insert(tokens)
	return Result{
		TemplateID:  strconv.FormatUint(cluster.ID, 10),
		Template:    cluster.Template(),
		ClusterSize: cluster.Size,
	}
}

func (t *Tree) insert(tokens []string) *Cluster {
	leaf := t.descend(tokens, true)

	best, bestSim := t.bestMatch(leaf, tokens)
	if best != nil && bestSim >= t.cfg.SimTh {
		t.generalize(best, tokens)
		best.Size++
		t.touch(best)
		return best
	}

	// No similar cluster in the bucket: create one. A full bucket drops its
	// least-recently-matched cluster first.
	if len(leaf.clusters) >= t.cfg.MaxChildren {
		t.evictFromLeaf(leaf)
	}

	cluster := &Cluster{
		ID:     t.nextID,
		Tokens: append([]string(nil), tokens...),
		Size:   1,
		leaf:   leaf,
	}
	t.nextID++
	leaf.clusters = append(leaf.clusters, cluster)
	t.touch(cluster)
	return cluster
}

// descend walks from the length level through the literal token levels to
// the leaf bucket, creating nodes along the way when create is set.
func (t *Tree) descend(tokens []string, create bool) *node {
	current, ok := t.lengthRoot[len(tokens)]
	if !ok {
		if !create {
			return nil
		}
		current = newNode()
		t.lengthRoot[len(tokens)] = current
	}

	maxLevels := t.cfg.Depth - 2
	for i := 0; i < maxLevels && i < len(tokens); i++ {
		key := tokens[i]
		// Digit-bearing tokens route to the wildcard branch so lines that
		// differ only in embedded numbers share a leaf.
		if key != t.cfg.ParamString && containsDigit(key) {
			key = t.cfg.ParamString
		}

		child, ok := current.children[key]
		if !ok {
			if key != t.cfg.ParamString && len(current.children) >= t.cfg.MaxChildren {
				key = t.cfg.ParamString
				child, ok = current.children[key]
			}
		}
		if !ok {
			if !create {
				return nil
			}
			child = newNode()
			current.children[key] = child
		}
		current = child
	}
	return current
}

// bestMatch scans a leaf bucket for the most similar cluster. Similarity is
// the fraction of non-wildcard template positions whose literal token equals
// the line's token; a template of only wildcards matches with similarity 1.
// Ties go to the most recently matched cluster.
func (t *Tree) bestMatch(leaf *node, tokens []string) (*Cluster, float64) {
	var best *Cluster
	bestSim := -1.0
	for _, cluster := range leaf.clusters {
		if len(cluster.Tokens) != len(tokens) {
			continue
		}
		sim := t.similarity(cluster.Tokens, tokens)
		if sim > bestSim || (sim == bestSim && best != nil && cluster.lastMatched > best.lastMatched) {
			best = cluster
			bestSim = sim
		}
	}
	return best, bestSim
}

func (t *Tree) similarity(template, tokens []string) float64 {
	literals := 0
	matches := 0
	for i, tok := range template {
		if tok == t.cfg.ParamString {
			continue
		}
		literals++
		if tok == tokens[i] {
			matches++
		}
	}
	if literals == 0 {
		return 1.0
	}
	return float64(matches) / float64(literals)
}

// generalize widens the template in place: any position that disagrees with
// the new line becomes the wildcard.
func (t *Tree) generalize(cluster *Cluster, tokens []string) {
	for i, tok := range cluster.Tokens {
		if tok != t.cfg.ParamString && tok != tokens[i] {
			cluster.Tokens[i] = t.cfg.ParamString
		}
	}
}

// touch records a match on the cluster: bumps the logical clock and refreshes
// the process-wide LRU. Cluster IDs are never reused after eviction.
func (t *Tree) touch(cluster *Cluster) {
	t.clock++
	cluster.lastMatched = t.clock
	t.clusters.Add(cluster.ID, cluster)
}

func (t *Tree) evictFromLeaf(leaf *node) {
	var oldest *Cluster
	for _, cluster := range leaf.clusters {
		if oldest == nil || cluster.lastMatched < oldest.lastMatched {
			oldest = cluster
		}
	}
	if oldest != nil {
		t.clusters.Remove(oldest.ID) // eviction callback unlinks from the leaf
	}
}

// unlink removes a cluster from its leaf bucket after LRU eviction.
func (t *Tree) unlink(cluster *Cluster) {
	leaf := cluster.leaf
	if leaf == nil {
		return
	}
	for i, c := range leaf.clusters {
		if c == cluster {
			leaf.clusters = append(leaf.clusters[:i], leaf.clusters[i+1:]...)
			break
		}
	}
	cluster.leaf = nil
}

// Len returns the number of live clusters.
func (t *Tree) Len() int {
	return t.clusters.Len()
}

// Snapshot returns the live clusters ordered oldest-match first, plus the ID
// counter and logical clock, for persistence.
func (t *Tree) Snapshot() ([]*Cluster, uint64, uint64) {
	keys := t.clusters.Keys() // oldest to newest
	clusters := make([]*Cluster, 0, len(keys))
	for _, key := range keys {
		if c, ok := t.clusters.Peek(key); ok {
			clusters = append(clusters, c)
		}
	}
	return clusters, t.nextID, t.clock
}

// Restore rebuilds the tree from snapshot state. Clusters must be supplied
// oldest-match first so LRU recency is preserved. The ID counter continues
// from the snapshot, keeping template IDs stable across restarts.
func (t *Tree) Restore(clusters []*Cluster, nextID, clock uint64) {
	for _, cluster := range clusters {
		leaf := t.descend(cluster.Tokens, true)
		cluster.leaf = leaf
		leaf.clusters = append(leaf.clusters, cluster)
		t.clusters.Add(cluster.ID, cluster)
	}
	if nextID > t.nextID {
		t.nextID = nextID
	}
	if clock > t.clock {
		t.clock = clock
	}
}

func containsDigit(s string) bool {
	for _, r := range s {
		if r >= '0' && r <= '9' {
			return true
		}
	}
	return false
}
