// 文件: pkg/quote/id.go
// 报价 ID：雪花算法 (github.com/bwmarrin/snowflake)

package quote

import (
	"sync"

	"github.com/bwmarrin/snowflake"
)

var (
	node     *snowflake.Node
	nodeErr  error
	initOnce sync.Once
)

// InitIDGenerator 初始化雪花节点，nodeID: 0-1023
// 只有第一次调用生效
func InitIDGenerator(nodeID int64) error {
	initOnce.Do(func() {
		node, nodeErr = snowflake.NewNode(nodeID)
	})
	return nodeErr
}

// NextID 生成报价 ID，未初始化时使用节点 0
func NextID() int64 {
	if err := InitIDGenerator(0); err != nil || node == nil {
		return 0
	}
	return node.Generate().Int64()
}
