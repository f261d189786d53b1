package regions

import "time"

//idGenerator hands out millisecond timestamps, bumped past the last id it has
//issued or observed so that two regions created within the same millisecond,
//or after the clock moved backwards, still get distinct increasing ids
type idGenerator struct {
	now  func() time.Time
	last int64
}

func newIDGenerator(now func() time.Time) *idGenerator {
	return &idGenerator{now: now}
}

func (g *idGenerator) next() int64 {
	id := g.now().UnixMilli()
	if id <= g.last {
		id = g.last + 1
	}
	g.last = id
	return id
}

func (g *idGenerator) observe(id int64) {
	if id > g.last {
		g.last = id
	}
}
