package catalog

import (
	"errors"
	"fmt"
)

var ErrInvalidTariff = errors.New("invalid tariff id")

// UnitsPerUSDT is the number of token units in one USDT (6 decimals)
const UnitsPerUSDT = 1_000_000

// Tariff is a single service plan
type Tariff struct {
	ID            int
	Price         uint64 // in token units
	TradingPairs  int
	DurationWeeks int
}

// Catalog is a fixed table of tariffs indexed 1..N
type Catalog struct {
	tariffs []Tariff
}

// New builds a catalog, assigning ids 1..N in input order
func New(tariffs []Tariff) (*Catalog, error) {
	if len(tariffs) == 0 {
		return nil, errors.New("catalog must contain at least one tariff")
	}

	c := &Catalog{tariffs: make([]Tariff, len(tariffs))}
	for i, t := range tariffs {
		if t.Price == 0 || t.TradingPairs <= 0 || t.DurationWeeks <= 0 {
			return nil, fmt.Errorf("tariff %d: price, trading pairs and duration must be positive", i+1)
		}
		t.ID = i + 1
		c.tariffs[i] = t
	}

	return c, nil
}

// Default returns the reference catalog of 13 tariffs
func Default() *Catalog {
	c, err := New(defaultTariffs())
	if err != nil {
		panic(err)
	}
	return c
}

func defaultTariffs() []Tariff {
	plan := func(usdt uint64, pairs, weeks int) Tariff {
		return Tariff{Price: usdt * UnitsPerUSDT, TradingPairs: pairs, DurationWeeks: weeks}
	}

	return []Tariff{
		plan(552, 1, 2),
		plan(1040, 1, 4),
		plan(1600, 2, 4),
		plan(2240, 3, 4),
		plan(1980, 1, 8),
		plan(3040, 2, 8),
		plan(4280, 3, 8),
		plan(2880, 1, 12),
		plan(4440, 2, 12),
		plan(6240, 3, 12),
		plan(5520, 1, 24),
		plan(8520, 2, 24),
		plan(11990, 3, 24),
	}
}

// Get returns the tariff with the given id
func (c *Catalog) Get(id int) (Tariff, error) {
	if id <= 0 || id > len(c.tariffs) {
		return Tariff{}, fmt.Errorf("%w: %d", ErrInvalidTariff, id)
	}
	return c.tariffs[id-1], nil
}

// Len returns the number of tariffs
func (c *Catalog) Len() int {
	return len(c.tariffs)
}

// All returns a copy of all tariffs ordered by id
func (c *Catalog) All() []Tariff {
	out := make([]Tariff, len(c.tariffs))
	copy(out, c.tariffs)
	return out
}
