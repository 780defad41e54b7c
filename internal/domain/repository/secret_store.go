// Package repository 定义领域仓储接口
// 密钥存储负责用户二次认证属性的持久化操作
package repository

import (
	"context"

	"github.com/turtacn/mfagate/internal/domain/models"
)

// SecretStore 定义用户二次认证属性仓储接口
// SecretStore persists the one-time-code secret, its confirmation flag and the push transaction marker
// on the user record.
// 实现类：
//   - internal/infrastructure/redis/secret_store.go
//   - internal/infrastructure/persistence/postgres/attribute_store.go
//   - internal/infrastructure/memory/secret_store.go
type SecretStore interface {
	// Get 读取用户的二次认证属性
	// 参数：
	//   - ctx: 请求上下文
	//   - username: 用户唯一标识符
	// 返回：
	//   - *models.UserAttributes: 用户属性；用户尚无属性时返回零值属性（不是错误）
	//   - error: 存储不可用时返回错误
	Get(ctx context.Context, username string) (*models.UserAttributes, error)

	// Set 一次性写入密钥、确认标志和事务标记（后写者胜）
	// 返回：
	//   - error: 存储只读或权限不足时返回 errors.ErrAttributeStorageUnsupported
	Set(ctx context.Context, username string, attrs *models.UserAttributes) error

	// CompareAndSwapTransaction 仅当当前事务状态等于 expected 时原子地替换为 next
	// 返回：
	//   - bool: 是否由本次调用完成替换
	//   - error: 存储不可用时返回错误
	CompareAndSwapTransaction(ctx context.Context, username string, expected, next models.TransactionState) (bool, error)

	// Delete 删除用户的全部二次认证属性（管理端显式重新注册）
	Delete(ctx context.Context, username string) error
}
