package health

import (
	"context"
	"errors"

	"github.com/wyfcoding/rmq/graph"
)

// Neo4jChecker 通过客户端执行一次轻量查询检查 Neo4j 可用性。
func Neo4jChecker(client *graph.Client) Checker {
	return func(ctx context.Context) error {
		if client == nil {
			return errors.New("neo4j client is nil")
		}
		_, err := client.ExecuteQuery(ctx, "RETURN 1", nil)
		return err
	}
}
