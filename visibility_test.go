package main

import "testing"

func TestVisibilityWallBlocksSight(t *testing.T) {
	walls := newBoolGrid(5)
	walls[2][2] = true
	vm := NewVisibilityManager(walls, 0)

	vis := vm.Compute(0, 2)
	if !vis[1][2] {
		t.Error("adjacent cell should be visible")
	}
	if !vis[2][2] {
		t.Error("the wall itself should be visible")
	}
	if vis[4][2] {
		t.Error("cell behind the wall should be hidden")
	}
	if !vis[4][0] {
		t.Error("cell with a clear line should be visible")
	}
}

func TestVisibilityRadius(t *testing.T) {
	vm := NewVisibilityManager(newBoolGrid(7), 2)
	vis := vm.Compute(3, 3)
	if !vis[5][5] {
		t.Error("cell at radius should be visible")
	}
	if vis[6][3] || vis[0][0] {
		t.Error("cells beyond radius should be hidden")
	}
}

func TestVisibilityCached(t *testing.T) {
	vm := NewVisibilityManager(newBoolGrid(4), 0)
	a := vm.Compute(1, 1)
	b := vm.Compute(1, 1)
	if &a[0][0] != &b[0][0] {
		t.Error("expected the cached grid to be reused")
	}
	if len(vm.cache) != 1 {
		t.Errorf("expected 1 cache entry, got %d", len(vm.cache))
	}
}

func TestVisibilityOffGrid(t *testing.T) {
	vm := NewVisibilityManager(newBoolGrid(4), 0)
	vis := vm.Compute(-1, -1)
	for x := range vis {
		for y := range vis[x] {
			if vis[x][y] {
				t.Fatalf("dead tank should see nothing, (%d,%d) visible", x, y)
			}
		}
	}
}

func TestUnionGrid(t *testing.T) {
	a := newBoolGrid(3)
	b := newBoolGrid(3)
	a[0][0] = true
	b[2][1] = true
	unionGrid(a, b)
	if !a[0][0] || !a[2][1] || a[1][1] {
		t.Error("union should contain exactly the cells of both grids")
	}
}
