package reconcile

import "github.com/garyjia/claim-reconciler/internal/models"

// externalIndex stores external records once and references them by key.
// Consuming a key removes it, so each external record is matched at most once.
type externalIndex struct {
	records  []models.ExternalRecord
	byKey    map[Key][]int
	consumed []bool
}

func newExternalIndex(capacity int) *externalIndex {
	return &externalIndex{
		records:  make([]models.ExternalRecord, 0, capacity),
		byKey:    make(map[Key][]int, capacity),
		consumed: make([]bool, 0, capacity),
	}
}

func (ix *externalIndex) add(rec models.ExternalRecord) {
	pos := len(ix.records)
	ix.records = append(ix.records, rec)
	ix.consumed = append(ix.consumed, false)

	key := KeyOf(rec.Plate, rec.Date)
	ix.byKey[key] = append(ix.byKey[key], pos)
}

// consume returns every unconsumed record under key, in input order, and removes the key
func (ix *externalIndex) consume(key Key) []models.ExternalRecord {
	positions, ok := ix.byKey[key]
	if !ok {
		return nil
	}
	delete(ix.byKey, key)

	matched := make([]models.ExternalRecord, 0, len(positions))
	for _, pos := range positions {
		ix.consumed[pos] = true
		matched = append(matched, ix.records[pos])
	}
	return matched
}

// remaining returns the records never consumed, in input order
func (ix *externalIndex) remaining() []models.ExternalRecord {
	var left []models.ExternalRecord
	for pos, rec := range ix.records {
		if !ix.consumed[pos] {
			left = append(left, rec)
		}
	}
	return left
}
