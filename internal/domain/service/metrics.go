// Package service defines the interfaces for domain services.
package service

import (
	"time"
)

// Metrics defines the interface for collecting business metrics.
// This abstraction allows the application layer to remain independent of the specific monitoring implementation (e.g., Prometheus).
// Metrics 定义了收集业务指标的接口。
// 这种抽象使应用层能够独立于具体的监控实现（例如 Prometheus）。
type Metrics interface {
	// RecordVerification records the decision of one verification attempt.
	// RecordVerification 记录一次验证尝试的决策。
	RecordVerification(decision, reason string, duration time.Duration)

	// RecordPoll records the number of polls spent on one push transaction and whether it was approved.
	// RecordPoll 记录一次推送事务所花费的轮询次数以及是否获批。
	RecordPoll(attempts int, approved bool)

	// RecordRemoteCall records the latency and error status of a call to the remote verification service.
	// RecordRemoteCall 记录对远程验证服务调用的延迟和错误状态。
	RecordRemoteCall(operation string, duration time.Duration, err error)

	// RecordSecretProvisioned records a newly generated or rolled-out secret.
	// RecordSecretProvisioned 记录新生成或下发的密钥。
	RecordSecretProvisioned(source string)

	// RecordStoreOperation records the duration of a secret store operation.
	// RecordStoreOperation 记录密钥存储操作的持续时间。
	RecordStoreOperation(operation string, duration time.Duration, err error)

	// RecordVaultAPI records the latency and error status of a Vault API call.
	// RecordVaultAPI 记录 Vault API 调用的延迟和错误状态。
	RecordVaultAPI(operation string, duration time.Duration, err error)
}

// NoopMetrics discards every measurement.
type NoopMetrics struct{}

func (NoopMetrics) RecordVerification(string, string, time.Duration)  {}
func (NoopMetrics) RecordPoll(int, bool)                              {}
func (NoopMetrics) RecordRemoteCall(string, time.Duration, error)     {}
func (NoopMetrics) RecordSecretProvisioned(string)                    {}
func (NoopMetrics) RecordStoreOperation(string, time.Duration, error) {}
func (NoopMetrics) RecordVaultAPI(string, time.Duration, error)       {}
