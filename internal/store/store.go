// Package store provides the in-memory graph storage behind the run drawer.
// It differs from the library default in two ways that the drawer relies on:
// vertices keep their insertion order, so rendering the same run twice
// produces byte-identical output, and vertex properties can be updated after
// the run finished to attach measured durations.
package store

import (
	"sync"

	"github.com/dominikbraun/graph"
)

// Store is the graph.Store extension used by the drawer.
type Store[K comparable, T any] interface {
	graph.Store[K, T]
	// Order lists the vertex hashes in insertion order.
	Order() []K
	// UpdateVertex applies property options to an existing vertex.
	UpdateVertex(k K, options ...func(*graph.VertexProperties))
}

// Memory is an insertion-ordered, mutex-guarded Store implementation.
type Memory[K comparable, T any] struct {
	lock             sync.RWMutex
	order            []K
	vertices         map[K]T
	vertexProperties map[K]*graph.VertexProperties

	// outEdges and inEdges index every edge by both endpoints for O(1)
	// lookups in either direction.
	outEdges map[K]map[K]graph.Edge[K] // source -> target
	inEdges  map[K]map[K]graph.Edge[K] // target -> source
}

// NewMemory creates an empty Memory store.
func NewMemory[K comparable, T any]() *Memory[K, T] {
	return &Memory[K, T]{
		vertices:         make(map[K]T),
		vertexProperties: make(map[K]*graph.VertexProperties),
		outEdges:         make(map[K]map[K]graph.Edge[K]),
		inEdges:          make(map[K]map[K]graph.Edge[K]),
	}
}

func (s *Memory[K, T]) AddVertex(k K, t T, p graph.VertexProperties) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.vertices[k]; ok {
		return graph.ErrVertexAlreadyExists
	}

	s.vertices[k] = t
	s.vertexProperties[k] = &p
	s.order = append(s.order, k)

	return nil
}

func (s *Memory[K, T]) Vertex(k K) (T, graph.VertexProperties, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	v, ok := s.vertices[k]
	if !ok {
		return v, graph.VertexProperties{}, graph.ErrVertexNotFound
	}

	return v, *s.vertexProperties[k], nil
}

func (s *Memory[K, T]) RemoveVertex(k K) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.vertices[k]; !ok {
		return graph.ErrVertexNotFound
	}

	if len(s.inEdges[k]) > 0 || len(s.outEdges[k]) > 0 {
		return graph.ErrVertexHasEdges
	}

	delete(s.inEdges, k)
	delete(s.outEdges, k)
	delete(s.vertices, k)
	delete(s.vertexProperties, k)

	for i, hash := range s.order {
		if hash == k {
			s.order = append(s.order[:i], s.order[i+1:]...)

			break
		}
	}

	return nil
}

func (s *Memory[K, T]) ListVertices() ([]K, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]K(nil), s.order...), nil
}

func (s *Memory[K, T]) VertexCount() (int, error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return len(s.vertices), nil
}

func (s *Memory[K, T]) AddEdge(sourceHash, targetHash K, edge graph.Edge[K]) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	if _, ok := s.outEdges[sourceHash]; !ok {
		s.outEdges[sourceHash] = make(map[K]graph.Edge[K])
	}

	s.outEdges[sourceHash][targetHash] = edge

	if _, ok := s.inEdges[targetHash]; !ok {
		s.inEdges[targetHash] = make(map[K]graph.Edge[K])
	}

	s.inEdges[targetHash][sourceHash] = edge

	return nil
}

func (s *Memory[K, T]) UpdateEdge(sourceHash, targetHash K, edge graph.Edge[K]) error {
	if _, err := s.Edge(sourceHash, targetHash); err != nil {
		return err
	}

	s.lock.Lock()
	defer s.lock.Unlock()

	s.outEdges[sourceHash][targetHash] = edge
	s.inEdges[targetHash][sourceHash] = edge

	return nil
}

func (s *Memory[K, T]) RemoveEdge(sourceHash, targetHash K) error {
	s.lock.Lock()
	defer s.lock.Unlock()

	delete(s.inEdges[targetHash], sourceHash)
	delete(s.outEdges[sourceHash], targetHash)

	return nil
}

func (s *Memory[K, T]) Edge(sourceHash, targetHash K) (graph.Edge[K], error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	sourceEdges, ok := s.outEdges[sourceHash]
	if !ok {
		return graph.Edge[K]{}, graph.ErrEdgeNotFound
	}

	edge, ok := sourceEdges[targetHash]
	if !ok {
		return graph.Edge[K]{}, graph.ErrEdgeNotFound
	}

	return edge, nil
}

func (s *Memory[K, T]) ListEdges() ([]graph.Edge[K], error) {
	s.lock.RLock()
	defer s.lock.RUnlock()

	res := make([]graph.Edge[K], 0)

	// Walk both endpoints in insertion order so that repeated listings of
	// the same graph agree.
	for _, source := range s.order {
		for _, target := range s.order {
			if edge, ok := s.outEdges[source][target]; ok {
				res = append(res, edge)
			}
		}
	}

	return res, nil
}

func (s *Memory[K, T]) Order() []K {
	s.lock.RLock()
	defer s.lock.RUnlock()

	return append([]K(nil), s.order...)
}

func (s *Memory[K, T]) UpdateVertex(k K, options ...func(*graph.VertexProperties)) {
	s.lock.Lock()
	defer s.lock.Unlock()

	props, ok := s.vertexProperties[k]
	if !ok {
		return
	}

	for _, opt := range options {
		opt(props)
	}
}

var _ Store[string, string] = (*Memory[string, string])(nil)
