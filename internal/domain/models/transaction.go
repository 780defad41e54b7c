// Package models defines the domain models.
package models

import "fmt"

// TransactionStatus represents the status of a remote push challenge for one user.
// TransactionStatus 表示单个用户的远程推送挑战的状态。
type TransactionStatus int

const (
	// TransactionAbsent indicates that no push challenge is active.
	// TransactionAbsent 表示当前没有活动的推送挑战。
	TransactionAbsent TransactionStatus = iota
	// TransactionPending indicates that a push challenge was triggered and awaits out-of-band approval.
	// TransactionPending 表示推送挑战已触发，正在等待带外批准。
	TransactionPending
	// TransactionResolvedOK indicates that the remote side confirmed the attempt.
	// TransactionResolvedOK 表示远程端已确认此次尝试。
	TransactionResolvedOK
	// TransactionTimedOut indicates that the poll budget was exhausted without approval.
	// TransactionTimedOut 表示轮询预算已耗尽但未获批准。
	TransactionTimedOut
)

var transactionStatusNames = map[TransactionStatus]string{
	TransactionAbsent:     "absent",
	TransactionPending:    "pending",
	TransactionResolvedOK: "resolved-ok",
	TransactionTimedOut:   "timed-out",
}

// String returns the persisted name of the status.
func (s TransactionStatus) String() string {
	if name, ok := transactionStatusNames[s]; ok {
		return name
	}
	return fmt.Sprintf("unknown(%d)", int(s))
}

// ParseTransactionStatus maps a persisted name back to a status. Unknown or empty names map to absent.
func ParseTransactionStatus(name string) TransactionStatus {
	for status, n := range transactionStatusNames {
		if n == name {
			return status
		}
	}
	return TransactionAbsent
}

// TransactionState is the persisted marker correlating a user with an in-flight or resolved push challenge.
// The value is threaded through a verification attempt and stored with the user's secret; it is never
// held by the verification service itself.
// TransactionState 是将用户与进行中或已解决的推送挑战关联起来的持久化标记。
type TransactionState struct {
	// Status is the current status of the transaction.
	// Status 是事务的当前状态。
	Status TransactionStatus
	// ID is the opaque remote transaction id. Only meaningful while pending.
	// ID 是不透明的远程事务 ID，仅在待定状态下有意义。
	ID string
}

// NoTransaction returns the absent state.
func NoTransaction() TransactionState {
	return TransactionState{Status: TransactionAbsent}
}

// PendingTransaction returns a pending state for id.
func PendingTransaction(id string) TransactionState {
	return TransactionState{Status: TransactionPending, ID: id}
}

// ResolvedTransaction returns the resolved-ok state.
func ResolvedTransaction() TransactionState {
	return TransactionState{Status: TransactionResolvedOK}
}

// TimedOutTransaction returns the timed-out state.
func TimedOutTransaction() TransactionState {
	return TransactionState{Status: TransactionTimedOut}
}

// IsPending reports whether a pollable push challenge is active.
func (t TransactionState) IsPending() bool {
	return t.Status == TransactionPending && t.ID != ""
}

// IsResolved reports whether the remote side confirmed the attempt.
func (t TransactionState) IsResolved() bool {
	return t.Status == TransactionResolvedOK
}

// IsTimedOut reports whether the poll budget of the previous challenge was exhausted.
func (t TransactionState) IsTimedOut() bool {
	return t.Status == TransactionTimedOut
}

// IsActive reports whether the state blocks a new transaction from starting.
func (t TransactionState) IsActive() bool {
	return t.Status != TransactionAbsent
}

// Equal compares two states; ids only matter for pending states.
func (t TransactionState) Equal(other TransactionState) bool {
	if t.Status != other.Status {
		return false
	}
	if t.Status == TransactionPending {
		return t.ID == other.ID
	}
	return true
}

func (t TransactionState) String() string {
	if t.Status == TransactionPending {
		return fmt.Sprintf("pending(%s)", t.ID)
	}
	return t.Status.String()
}
