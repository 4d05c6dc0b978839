package domain

import (
	"time"

	"github.com/google/uuid"
)

type NoticeKind string

const (
	NoticeOutOfStock      NoticeKind = "out_of_stock"
	NoticeNotFound        NoticeKind = "not_found"
	NoticeUpstreamFailure NoticeKind = "upstream_failure"
)

type Operation string

const (
	OperationAdd         Operation = "add_item"
	OperationRemove      Operation = "remove_item"
	OperationSetQuantity Operation = "set_quantity"
)

const MessageOutOfStock = "Requested quantity is out of stock"

// FailureMessage is the user-facing text for a failed operation that is not
// an out-of-stock condition.
func (o Operation) FailureMessage() string {
	switch o {
	case OperationAdd:
		return "Failed to add item"
	case OperationRemove:
		return "Failed to remove item"
	case OperationSetQuantity:
		return "Failed to update item quantity"
	default:
		return "Cart operation failed"
	}
}

// Notice is a user-visible condition raised by a failed cart operation.
type Notice struct {
	ID        uuid.UUID  `json:"id"`
	Kind      NoticeKind `json:"kind"`
	Operation Operation  `json:"operation"`
	ItemID    int        `json:"item_id"`
	Message   string     `json:"message"`
	At        time.Time  `json:"at"`
}

func NewNotice(kind NoticeKind, op Operation, itemID int) Notice {
	msg := op.FailureMessage()
	if kind == NoticeOutOfStock {
		msg = MessageOutOfStock
	}
	return Notice{
		ID:        uuid.New(),
		Kind:      kind,
		Operation: op,
		ItemID:    itemID,
		Message:   msg,
		At:        time.Now(),
	}
}
