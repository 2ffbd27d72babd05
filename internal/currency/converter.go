// Package currency implements the engine's bidirectional rate graph and
// BFS-based multi-hop conversion between any two registered currencies.
package currency

import (
	"sort"

	"github.com/fxsim/backtester/pkg/ferrors"
)

type edge struct {
	to   string
	rate float64
}

// Converter is a bidirectional graph keyed by free-form ISO currency codes;
// the graph assigns no semantics to the codes themselves.
type Converter struct {
	adjacency map[string][]edge
	// insertion order per node, so BFS neighbor iteration is deterministic
	// even though adjacency is a map.
	order map[string][]string
}

// NewConverter returns an empty currency graph.
func NewConverter() *Converter {
	return &Converter{
		adjacency: make(map[string][]edge),
		order:     make(map[string][]string),
	}
}

// RegisterPair stores a directed edge base->quote at rate, and its inverse
// quote->base at 1/rate, so BFS may traverse either direction.
func (c *Converter) RegisterPair(base, quote string, rate float64) {
	c.addEdge(base, quote, rate)
	c.addEdge(quote, base, 1/rate)
}

func (c *Converter) addEdge(from, to string, rate float64) {
	for i, e := range c.adjacency[from] {
		if e.to == to {
			c.adjacency[from][i].rate = rate
			return
		}
	}

	c.adjacency[from] = append(c.adjacency[from], edge{to: to, rate: rate})
	c.order[from] = append(c.order[from], to)
}

// Convert returns amount if from == to; otherwise the direct edge, else the
// inverse edge, else a BFS shortest path from `from` to `to`, multiplying or
// dividing along each hop. Fails with NoPath if `to` is unreachable.
func (c *Converter) Convert(amount float64, from, to string) (float64, error) {
	if from == to {
		return amount, nil
	}

	if rate, ok := directRate(c.adjacency[from], to); ok {
		return amount * rate, nil
	}

	path, ok := c.bfsPath(from, to)
	if !ok {
		return 0, ferrors.Newf(ferrors.ErrCodeNoConversionPath, "no conversion path from %s to %s", from, to)
	}

	result := amount
	for i := 0; i+1 < len(path); i++ {
		rate, _ := directRate(c.adjacency[path[i]], path[i+1])
		result *= rate
	}

	return result, nil
}

func directRate(edges []edge, to string) (float64, bool) {
	for _, e := range edges {
		if e.to == to {
			return e.rate, true
		}
	}

	return 0, false
}

// bfsPath returns the shortest path from `from` to `to` inclusive of both
// endpoints, breaking ties deterministically by the order edges were
// registered.
func (c *Converter) bfsPath(from, to string) ([]string, bool) {
	if from == to {
		return []string{from}, true
	}

	visited := map[string]bool{from: true}
	prev := map[string]string{}
	queue := []string{from}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for _, neighbor := range c.order[node] {
			if visited[neighbor] {
				continue
			}

			visited[neighbor] = true
			prev[neighbor] = node

			if neighbor == to {
				return reconstructPath(prev, from, to), true
			}

			queue = append(queue, neighbor)
		}
	}

	return nil, false
}

func reconstructPath(prev map[string]string, from, to string) []string {
	path := []string{to}
	for path[len(path)-1] != from {
		path = append(path, prev[path[len(path)-1]])
	}

	// reverse
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	return path
}

// ValidatePaths checks that the graph is connected starting from any one
// registered currency; disconnected components are reported as a NoPath
// error naming the unreachable node.
func (c *Converter) ValidatePaths() error {
	nodes := c.sortedNodes()
	if len(nodes) == 0 {
		return nil
	}

	start := nodes[0]
	visited := map[string]bool{start: true}
	queue := []string{start}

	for len(queue) > 0 {
		node := queue[0]
		queue = queue[1:]

		for _, neighbor := range c.order[node] {
			if !visited[neighbor] {
				visited[neighbor] = true
				queue = append(queue, neighbor)
			}
		}
	}

	for _, node := range nodes {
		if !visited[node] {
			return ferrors.Newf(ferrors.ErrCodeNoConversionPath, "currency graph disconnected: %s unreachable from %s", node, start)
		}
	}

	return nil
}

func (c *Converter) sortedNodes() []string {
	seen := map[string]bool{}
	for node, neighbors := range c.order {
		seen[node] = true
		for _, n := range neighbors {
			seen[n] = true
		}
	}

	nodes := make([]string, 0, len(seen))
	for node := range seen {
		nodes = append(nodes, node)
	}
	sort.Strings(nodes)

	return nodes
}
