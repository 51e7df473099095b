package application

import (
	"fmt"

	"github.com/google/uuid"

	"card_pricer/internal/domain"
	"card_pricer/pkg/errcodes"
	"card_pricer/pkg/lox"
)

func parseIDs(raw []string) ([]uuid.UUID, error) {
	return lox.MapErr(raw, func(s string) (uuid.UUID, error) {
		id, err := uuid.Parse(s)
		if err != nil {
			return uuid.Nil, domain.WrapError(err, errcodes.ValidationError, fmt.Sprintf("invalid card id %q", s))
		}
		return id, nil
	})
}
