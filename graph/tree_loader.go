package graph

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/neo4j/neo4j-go-driver/v6/neo4j"
	"github.com/wyfcoding/rmq/engine"
	"github.com/wyfcoding/rmq/retry"
	"github.com/wyfcoding/rmq/xerrors"
)

// DefaultTreeQuery 读取 (:Node)-[:CHILD_OF]->(:Node) 形式的树，没有父节点的顶点返回 parent = null。
const DefaultTreeQuery = `MATCH (c:Node)
OPTIONAL MATCH (c)-[:CHILD_OF]->(p:Node)
RETURN c.id AS child, p.id AS parent`

// querier 是 TreeLoader 依赖的最小查询能力，*Client 满足该接口。
type querier interface {
	ExecuteQuery(ctx context.Context, cypher string, params map[string]any) (*neo4j.EagerResult, error)
}

// TreeLoader 通过 Cypher 查询加载父子边，实现 engine.TreeSource。
// 查询必须返回 child 与 parent 两列；parent 为 null 或空字符串表示根或孤立顶点。
type TreeLoader struct {
	client querier
	cypher string
	params map[string]any
	retry  *retry.Config
}

// NewTreeLoader 创建加载器，cypher 为空时使用 DefaultTreeQuery。
func NewTreeLoader(client *Client, cypher string, params map[string]any) *TreeLoader {
	if cypher == "" {
		cypher = DefaultTreeQuery
	}
	return &TreeLoader{client: client, cypher: cypher, params: params}
}

// WithRetry 对瞬时失败按 cfg 退避重试。熔断打开时不重试。
func (l *TreeLoader) WithRetry(cfg retry.Config) *TreeLoader {
	l.retry = &cfg
	return l
}

// Edges 实现 engine.TreeSource。
func (l *TreeLoader) Edges(ctx context.Context) ([]engine.Edge, error) {
	query := func() (*neo4j.EagerResult, error) {
		return l.client.ExecuteQuery(ctx, l.cypher, l.params)
	}

	var (
		res *neo4j.EagerResult
		err error
	)
	if l.retry != nil {
		res, err = retry.Do(ctx, query, transient, *l.retry)
	} else {
		res, err = query()
	}
	if err != nil {
		return nil, err
	}
	return edgesFromRecords(res.Records)
}

func transient(err error) bool {
	switch {
	case errors.Is(err, xerrors.ErrCircuitOpen),
		errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return false
	case errors.Is(err, xerrors.ErrSourceUnavailable), errors.Is(err, ErrRateLimit):
		return true
	default:
		return false
	}
}

func edgesFromRecords(records []*neo4j.Record) ([]engine.Edge, error) {
	edges := make([]engine.Edge, 0, len(records))
	for i, rec := range records {
		child, err := stringColumn(rec, "child", false)
		if err != nil {
			return nil, xerrors.ErrNotTree.Derive("record %d: %v", i, err)
		}
		parent, err := stringColumn(rec, "parent", true)
		if err != nil {
			return nil, xerrors.ErrNotTree.Derive("record %d: %v", i, err)
		}
		edges = append(edges, engine.Edge{Child: child, Parent: parent})
	}
	return edges, nil
}

// stringColumn 读取字符串列；整数 id 统一转为十进制字符串。
func stringColumn(rec *neo4j.Record, key string, nullable bool) (string, error) {
	v, ok := rec.Get(key)
	if !ok {
		return "", fmt.Errorf("missing column %q", key)
	}
	switch x := v.(type) {
	case nil:
		if nullable {
			return "", nil
		}
		return "", fmt.Errorf("column %q is null", key)
	case string:
		if x == "" && !nullable {
			return "", fmt.Errorf("column %q is empty", key)
		}
		return x, nil
	case int64:
		return strconv.FormatInt(x, 10), nil
	default:
		return "", fmt.Errorf("column %q has unsupported type %T", key, v)
	}
}
