package graph

import (
	"github.com/wyfcoding/rmq/xerrors"
)

// TourVisitor 接收深度优先遍历的访问事件。
// 每个访问事件依次调用一次 VisitVertex 与 VisitDepth，两者顺序一致，
// 从而保证欧拉序列 E[p] 与深度序列 L[p] 描述同一次访问。
type TourVisitor[V comparable] interface {
	VisitVertex(v V)
	VisitDepth(depth int)
}

// Traversal 代表一次外部提供的深度优先遍历，它把访问事件推送给 visitor。
// 一个有 k 个子节点的顶点会出现 k+1 次：进入时一次，每个子树返回后各一次。
type Traversal[V comparable] func(visitor TourVisitor[V])

// TourRecorder 把访问事件依次追加到 Tour 与 Depths。
type TourRecorder[V comparable] struct {
	Tour   []V
	Depths []int
}

// VisitVertex 实现 TourVisitor。
func (r *TourRecorder[V]) VisitVertex(v V) { r.Tour = append(r.Tour, v) }

// VisitDepth 实现 TourVisitor。
func (r *TourRecorder[V]) VisitDepth(depth int) { r.Depths = append(r.Depths, depth) }

// Edge 表示一条父子边 Parent -> Child。
type Edge[V comparable] struct {
	Child  V
	Parent V
}

// ChildrenTraversal 从 root 出发按 children 给出的顺序做迭代式深度优先遍历，避免深树导致栈溢出。
// 已访问过的顶点会被跳过，因此对非树输入得到的是其 DFS 生成树的欧拉序列。
func ChildrenTraversal[V comparable](root V, children func(V) []V) Traversal[V] {
	return func(visitor TourVisitor[V]) {
		type frame struct {
			v     V
			depth int
			next  int
		}
		emit := func(v V, depth int) {
			visitor.VisitVertex(v)
			visitor.VisitDepth(depth)
		}

		visited := map[V]struct{}{root: {}}
		stack := []frame{{v: root}}
		emit(root, 0)

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			kids := children(top.v)
			if top.next == len(kids) {
				stack = stack[:len(stack)-1]
				if len(stack) > 0 {
					parent := stack[len(stack)-1]
					emit(parent.v, parent.depth)
				}
				continue
			}

			child := kids[top.next]
			top.next++
			if _, ok := visited[child]; ok {
				continue
			}
			visited[child] = struct{}{}
			depth := top.depth + 1
			stack = append(stack, frame{v: child, depth: depth})
			emit(child, depth)
		}
	}
}

// AdjacencyTraversal 对以 adj 邻接表表示、顶点编号为 [0, len(adj)) 的树做遍历。
// adj 为空时不产生任何事件。
func AdjacencyTraversal(root int, adj [][]int) Traversal[int] {
	if len(adj) == 0 {
		return func(TourVisitor[int]) {}
	}
	return ChildrenTraversal(root, func(v int) []int { return adj[v] })
}

// ParentTraversal 由父子边构造遍历。isolated 声明没有任何边的顶点（例如只有根的树）。
// 输入必须恰好构成一棵有根树：每个顶点至多一个父节点、恰好一个根、所有顶点可从根到达，
// 否则返回 xerrors.ErrNotTree。没有任何顶点时返回空遍历。
func ParentTraversal[V comparable](edges []Edge[V], isolated ...V) (Traversal[V], error) {
	children := make(map[V][]V)
	parent := make(map[V]V, len(edges))
	var vertices []V
	seen := make(map[V]struct{})
	addVertex := func(v V) {
		if _, ok := seen[v]; !ok {
			seen[v] = struct{}{}
			vertices = append(vertices, v)
		}
	}

	for _, e := range edges {
		if p, ok := parent[e.Child]; ok && p != e.Parent {
			return nil, xerrors.ErrNotTree.Derive("vertex %v has parents %v and %v", e.Child, p, e.Parent)
		} else if ok {
			continue
		}
		parent[e.Child] = e.Parent
		children[e.Parent] = append(children[e.Parent], e.Child)
		addVertex(e.Parent)
		addVertex(e.Child)
	}
	for _, v := range isolated {
		addVertex(v)
	}

	if len(vertices) == 0 {
		return func(TourVisitor[V]) {}, nil
	}

	var roots []V
	for _, v := range vertices {
		if _, ok := parent[v]; !ok {
			roots = append(roots, v)
		}
	}
	switch {
	case len(roots) == 0:
		return nil, xerrors.ErrNotTree.Derive("no root: every vertex has a parent")
	case len(roots) > 1:
		return nil, xerrors.ErrNotTree.Derive("%d roots, first two %v and %v", len(roots), roots[0], roots[1])
	}

	root := roots[0]
	reached := 1
	queue := []V{root}
	for len(queue) > 0 {
		v := queue[0]
		queue = queue[1:]
		reached += len(children[v])
		queue = append(queue, children[v]...)
		if reached > len(vertices) {
			break
		}
	}
	if reached != len(vertices) {
		return nil, xerrors.ErrNotTree.Derive("%d of %d vertices reachable from root %v", reached, len(vertices), root)
	}

	return ChildrenTraversal(root, func(v V) []V { return children[v] }), nil
}
