package pfr

import (
	"fmt"
)

// Status is the per-transaction response code carried in the datagram
// trailer. A device only fills it in after interacting with the
// transaction; an unanswered datagram keeps StatusOK from the
// initiator, which is why arrival is tracked separately.
type Status uint16

const (
	StatusOK            Status = 0
	StatusInvalidLength Status = 1
	StatusAddressError  Status = 2
)

var statusName = map[Status]string{
	StatusOK:            "OK",
	StatusInvalidLength: "InvalidLength",
	StatusAddressError:  "AddressError",
}

func (s Status) String() string {
	if sn, ok := statusName[s]; ok {
		return sn
	}
	return fmt.Sprintf("Status(%d)", uint(s))
}

func (s Status) IsError() bool {
	return s != StatusOK
}
