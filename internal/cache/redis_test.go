package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"

	"github.com/Spok95/okr-tracker/internal/table"
)

func setupTestRedis(t *testing.T) (*Redis, *miniredis.Miniredis) {
	s := miniredis.RunT(t)
	c, err := NewRedis("redis://"+s.Addr(), 30*time.Second, nil)
	if err != nil {
		t.Fatalf("NewRedis failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c, s
}

func TestRedis_PutGet(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	in := &table.Table{
		Name:    "OKRs",
		Columns: []string{"ID", "ThucDat"},
		Rows:    []table.Row{{"ID": "kr-1", "ThucDat": "4"}},
		Version: 7,
	}
	c.Put(ctx, "OKRs", in)

	got, ok := c.Get(ctx, "OKRs")
	if !ok {
		t.Fatal("ожидали попадание")
	}
	if got.Version != 7 || len(got.Rows) != 1 || got.Rows[0]["ThucDat"] != "4" {
		t.Fatalf("получили %+v", got)
	}
}

func TestRedis_InvalidateAllBumpsGeneration(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	c.Put(ctx, "Users", &table.Table{Name: "Users"})
	c.Put(ctx, "OKRs", &table.Table{Name: "OKRs"})
	c.Invalidate(ctx, table.AllTables)

	for _, name := range []string{"Users", "OKRs"} {
		if _, ok := c.Get(ctx, name); ok {
			t.Fatalf("%s должна быть сброшена", name)
		}
	}

	c.Put(ctx, "Users", &table.Table{Name: "Users", Version: 2})
	got, ok := c.Get(ctx, "Users")
	if !ok || got.Version != 2 {
		t.Fatalf("новое поколение должно работать: %+v %v", got, ok)
	}
}

func TestRedis_InvalidateOne(t *testing.T) {
	c, _ := setupTestRedis(t)
	ctx := context.Background()

	c.Put(ctx, "Users", &table.Table{Name: "Users"})
	c.Put(ctx, "Periods", &table.Table{Name: "Periods"})
	c.Invalidate(ctx, "Users")

	if _, ok := c.Get(ctx, "Users"); ok {
		t.Fatal("Users должна быть сброшена")
	}
	if _, ok := c.Get(ctx, "Periods"); !ok {
		t.Fatal("Periods должна остаться")
	}
}

func TestRedis_ExpiresByTTL(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()

	c.Put(ctx, "Periods", &table.Table{Name: "Periods"})
	s.FastForward(31 * time.Second)

	if _, ok := c.Get(ctx, "Periods"); ok {
		t.Fatal("запись должна истечь по TTL")
	}
}

func TestRedis_UnavailableIsMiss(t *testing.T) {
	c, s := setupTestRedis(t)
	ctx := context.Background()

	c.Put(ctx, "Users", &table.Table{Name: "Users"})
	s.Close()

	if _, ok := c.Get(ctx, "Users"); ok {
		t.Fatal("недоступный Redis должен давать промах, а не данные")
	}
}
