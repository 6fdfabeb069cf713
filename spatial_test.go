package main

import "testing"

func TestSpatialGridInsertAndQuery(t *testing.T) {
	grid := NewSpatialGrid(8)

	grid.Insert(3, 4, EntityRef{Kind: RefTank, Idx: 0})
	grid.Insert(3, 4, EntityRef{Kind: RefBullet, Idx: 2})

	if got := len(grid.Query(3, 4)); got != 2 {
		t.Fatalf("expected 2 refs at (3,4), got %d", got)
	}
	if grid.Occupied(4, 3) {
		t.Error("(4,3) should be empty")
	}
	ref, ok := grid.First(3, 4, RefBullet)
	if !ok || ref.Idx != 2 {
		t.Errorf("expected bullet 2, got %+v (found=%v)", ref, ok)
	}
	if _, ok := grid.First(3, 4, RefMine); ok {
		t.Error("no mine was inserted")
	}
}

func TestSpatialGridOffGrid(t *testing.T) {
	grid := NewSpatialGrid(4)
	grid.Insert(-1, 0, EntityRef{Kind: RefTank})
	grid.Insert(4, 0, EntityRef{Kind: RefTank})

	for _, c := range []Cell{{-1, 0}, {4, 0}, {0, 4}} {
		if grid.Occupied(c.X, c.Y) {
			t.Errorf("off-grid cell %v should never be occupied", c)
		}
	}
}

func TestSpatialGridClear(t *testing.T) {
	grid := NewSpatialGrid(4)
	grid.Insert(1, 1, EntityRef{Kind: RefMine})
	grid.Clear()

	if results := grid.Query(1, 1); len(results) != 0 {
		t.Errorf("expected 0 results after clear, got %d", len(results))
	}
}

func TestQueueGetAndEmpty(t *testing.T) {
	q := NewQueue[int]()
	q.Push(1, 2)
	q.Push(3)
	if q.Len() != 3 {
		t.Fatalf("expected 3 queued, got %d", q.Len())
	}
	got := q.GetAndEmpty()
	if len(got) != 3 || got[0] != 1 || got[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", got)
	}
	if q.Len() != 0 || len(q.GetAndEmpty()) != 0 {
		t.Error("queue should be empty after GetAndEmpty")
	}
}
