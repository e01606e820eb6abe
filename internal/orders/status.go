package orders

import (
	"fmt"
	"strings"

	"github.com/ariefcatur/go-petstore/internal/apperr"
)

type Status string

const (
	StatusProcessing Status = "processing"
	StatusInTransit  Status = "in-transit"
	StatusDelivered  Status = "delivered"
)

// Skipping ahead is allowed; going back is not.
var validNext = map[Status]map[Status]bool{
	StatusProcessing: {StatusInTransit: true, StatusDelivered: true},
	StatusInTransit:  {StatusDelivered: true},
	StatusDelivered:  {},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func ParseStatus(s string) (Status, error) {
	st := Status(strings.TrimSpace(s))
	if _, ok := validNext[st]; !ok {
		return "", apperr.Validation("status",
			fmt.Sprintf("invalid status %q: must be one of processing, in-transit, delivered", s))
	}
	return st, nil
}
