// Package snowflake 生成消息 ID 与订单号
package snowflake

import (
	"sync"

	"github.com/bwmarrin/snowflake"
	"go.uber.org/zap"
)

var (
	node     *snowflake.Node
	nodeOnce sync.Once
)

// Init 以给定机器号初始化节点，只有第一次调用生效
// 机器号超出 [0,1023] 时回退为 1
func Init(machineID int64) {
	nodeOnce.Do(func() {
		if machineID < 0 || machineID > 1023 {
			zap.L().Warn("invalid snowflake machine id, fallback to 1", zap.Int64("machineID", machineID))
			machineID = 1
		}
		var err error
		node, err = snowflake.NewNode(machineID)
		if err != nil {
			zap.L().Fatal("init snowflake node", zap.Error(err))
		}
		zap.L().Info("snowflake node initialized", zap.Int64("machineID", machineID))
	})
}

// GenerateID 生成 int64 ID
func GenerateID() int64 {
	Init(1)
	return node.Generate().Int64()
}

// GenerateIDString 字符串形式，避免前端精度丢失
func GenerateIDString() string {
	Init(1)
	return node.Generate().String()
}
