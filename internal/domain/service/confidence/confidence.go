package confidence

import "card_pricer/internal/domain/entity"

var order = []entity.Confidence{ //nolint:gochecknoglobals
	entity.ConfidenceHigh,
	entity.ConfidenceMedium,
	entity.ConfidenceLow,
	entity.ConfidenceEstimated,
	entity.ConfidenceNone,
}

// Machine проходит уровни high → medium → low → estimated → none строго по
// порядку и останавливается на первом успехе. none, терминальное состояние.
type Machine struct {
	pos  int
	done bool
}

func NewMachine() *Machine {
	return &Machine{}
}

func (m *Machine) State() entity.Confidence {
	return order[m.pos]
}

// Stage: стадия поиска, которая проверяется в текущем состоянии; 0 для none.
func (m *Machine) Stage() entity.Stage {
	if m.State() == entity.ConfidenceNone {
		return 0
	}
	return entity.Stage(m.pos + 1)
}

func (m *Machine) Done() bool {
	return m.done || m.State() == entity.ConfidenceNone
}

// Observe фиксирует результат текущей стадии: успех завершает автомат,
// неудача переводит на следующий уровень.
func (m *Machine) Observe(found bool) entity.Confidence {
	if m.Done() {
		return m.State()
	}

	if found {
		m.done = true
	} else {
		m.pos++
	}

	return m.State()
}
