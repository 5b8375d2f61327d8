package txcache

import (
	"testing"

	"github.com/blkrelay/relaynode/hashutil"
	"github.com/blkrelay/relaynode/utils"
)

func checkEntry(t *testing.T, prefix string, expect []byte, e Entry, ok bool) {
	if !ok {
		t.Fatalf("%s: expected entry, found none", prefix)
	}
	if err := utils.TCheckBytes(prefix, expect, e.Data); err != nil {
		t.Fatal(err)
	}
}

func TestAddAndRemoveByContent(t *testing.T) {
	c := New(10, hashutil.Default)

	tx0 := []byte("tx0")
	tx1 := []byte("tx1")
	tx2 := []byte("tx2")
	c.Add(tx0, false)
	c.Add(tx1, false)
	c.Add(tx2, false)

	if err := utils.TCheckInt("len", 3, c.Len()); err != nil {
		t.Fatal(err)
	}

	slotIdx, ok := c.RemoveByContent(tx1)
	if err := utils.TCheckInt("removed slot", 1, slotIdx); err != nil {
		t.Fatal(err)
	}
	if !ok {
		t.Fatal("expected to find tx1")
	}

	// tx2 should have renumbered down from slot 2 to slot 1.
	e, ok := c.RemoveByIndex(1)
	checkEntry(t, "renumbered tx2", tx2, e, ok)

	if _, ok := c.RemoveByContent(tx1); ok {
		t.Fatal("tx1 should no longer be present after removal")
	}
}

func TestCapacityEvictsOldest(t *testing.T) {
	c := New(2, hashutil.Default)

	tx0 := []byte("tx0")
	tx1 := []byte("tx1")
	tx2 := []byte("tx2")
	c.Add(tx0, false)
	c.Add(tx1, false)
	c.Add(tx2, false) // evicts tx0

	if c.Contains(tx0) {
		t.Fatal("tx0 should have been evicted at capacity")
	}
	if !c.Contains(tx1) || !c.Contains(tx2) {
		t.Fatal("tx1 and tx2 should still be present")
	}

	if err := utils.TCheckInt("len", 2, c.Len()); err != nil {
		t.Fatal(err)
	}
}

func TestFlagCountTracksOversize(t *testing.T) {
	c := New(10, hashutil.Default)

	c.Add([]byte("small"), false)
	c.Add([]byte("big"), true)

	if err := utils.TCheckInt("flag count", 1, c.FlagCount()); err != nil {
		t.Fatal(err)
	}

	c.RemoveByContent([]byte("big"))
	if err := utils.TCheckInt("flag count after removal", 0, c.FlagCount()); err != nil {
		t.Fatal(err)
	}
}

func TestRemoveByIndexRenumbers(t *testing.T) {
	c := New(10, hashutil.Default)

	txs := [][]byte{[]byte("a"), []byte("b"), []byte("c"), []byte("d")}
	for _, tx := range txs {
		c.Add(tx, false)
	}

	// remove slot 0 ("a"); "b","c","d" should renumber to 0,1,2.
	e, ok := c.RemoveByIndex(0)
	checkEntry(t, "first removal", txs[0], e, ok)

	e, ok = c.RemoveByIndex(0)
	checkEntry(t, "renumbered b", txs[1], e, ok)

	e, ok = c.RemoveByIndex(1)
	checkEntry(t, "renumbered d", txs[3], e, ok)
}

func TestClearDropsEverything(t *testing.T) {
	c := New(10, hashutil.Default)
	c.Add([]byte("tx0"), false)
	c.Add([]byte("tx1"), true)

	c.Clear()

	if err := utils.TCheckInt("len after clear", 0, c.Len()); err != nil {
		t.Fatal(err)
	}
	if err := utils.TCheckInt("flag count after clear", 0, c.FlagCount()); err != nil {
		t.Fatal(err)
	}
}

func TestLockHintFreezesRemoveByContentIndices(t *testing.T) {
	c := New(10, hashutil.Default)

	txs := make([][]byte, 10)
	for i := range txs {
		txs[i] = []byte{byte(i)}
		c.Add(txs[i], false)
	}

	// Within one LockHint/EndBatch pair, each RemoveByContent must
	// return the slot the tx held when the batch opened, even though
	// an eagerly-renumbering cache would have shifted it by the time
	// later calls in the same batch run.
	c.LockHint()
	slot3, ok := c.RemoveByContent(txs[3])
	if !ok || slot3 != 3 {
		t.Fatalf("tx3: got slot %d, ok=%v, want 3", slot3, ok)
	}
	slot7, ok := c.RemoveByContent(txs[7])
	if !ok || slot7 != 7 {
		t.Fatalf("tx7: got slot %d, ok=%v, want 7 (frozen, not renumbered by the tx3 removal)", slot7, ok)
	}
	slot0, ok := c.RemoveByContent(txs[0])
	if !ok || slot0 != 0 {
		t.Fatalf("tx0: got slot %d, ok=%v, want 0", slot0, ok)
	}

	if err := utils.TCheckInt("len during batch", 7, c.Len()); err != nil {
		t.Fatal(err)
	}
	c.EndBatch()
	if err := utils.TCheckInt("len after batch", 7, c.Len()); err != nil {
		t.Fatal(err)
	}

	// after compaction, surviving entries renumber densely from 0.
	e, ok := c.RemoveByIndex(0)
	checkEntry(t, "first surviving slot after compaction", txs[1], e, ok)
}

func TestForAllVisitsInsertionOrder(t *testing.T) {
	c := New(10, hashutil.Default)
	txs := [][]byte{[]byte("a"), []byte("b"), []byte("c")}
	for _, tx := range txs {
		c.Add(tx, false)
	}

	var seen [][]byte
	c.ForAll(func(tx []byte) {
		seen = append(seen, tx)
	})

	if err := utils.TCheckInt("visited count", len(txs), len(seen)); err != nil {
		t.Fatal(err)
	}
	for i := range txs {
		if err := utils.TCheckBytes("order", txs[i], seen[i]); err != nil {
			t.Fatal(err)
		}
	}
}
