package lox

// MapErr применяет iteratee к каждому элементу и останавливается на первой
// ошибке.
func MapErr[T, R any](collection []T, iteratee func(item T) (R, error)) ([]R, error) {
	result := make([]R, len(collection))

	for i, item := range collection {
		var err error
		if result[i], err = iteratee(item); err != nil {
			return nil, err
		}
	}

	return result, nil
}

// Partition разбивает коллекцию на успешно преобразованные элементы и
// исходные элементы, на которых iteratee вернул ошибку.
func Partition[T, R any](collection []T, iteratee func(item T) (R, error)) ([]R, []T) {
	var (
		ok  []R
		bad []T
	)

	for _, item := range collection {
		r, err := iteratee(item)
		if err != nil {
			bad = append(bad, item)
			continue
		}
		ok = append(ok, r)
	}

	return ok, bad
}
