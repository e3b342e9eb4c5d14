package localstore

import (
	"context"
	"reflect"
	"testing"

	"commissionflow/catalog"
	"commissionflow/commission"
)

func openTestProvider(t *testing.T) *Provider {
	t.Helper()
	p, err := Open(t.TempDir(), "commission-tracker-test")
	if err != nil {
		t.Fatalf("open provider: %v", err)
	}
	t.Cleanup(func() { _ = p.Close() })
	return p
}

func record(id string, note string) commission.Record {
	return commission.Record{
		ID:          id,
		ClientID:    "REQ-0001",
		ClientName:  "Mei",
		Type:        catalog.TypeFlowingSand,
		Status:      0,
		Note:        note,
		OwnerID:     "main-artist",
		OwnerName:   "主委託老師",
		ContactInfo: "line:mei01",
		Description: "【選擇商品】：\n- 名片流麻（7x10cm） x 1 ($400)",
		Price:       400,
		CreatedAt:   1700000000000,
		UpdatedAt:   1700000000000,
	}
}

func TestProvider_WriteReadRoundTrip(t *testing.T) {
	p := openTestProvider(t)
	ctx := context.Background()

	want := record("main-artist_REQ-0001", "申請審核中...")
	if err := p.Write(ctx, want.ID, want); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got []commission.Record
	cancel, err := p.Subscribe(ctx, func(recs []commission.Record) { got = recs }, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if len(got) != 1 {
		t.Fatalf("expected one record, got %d", len(got))
	}
	if !reflect.DeepEqual(got[0], want) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got[0], want)
	}
}

func TestProvider_UpsertOverwrites(t *testing.T) {
	p := openTestProvider(t)
	ctx := context.Background()

	id := "main-artist_REQ-0001"
	if err := p.Write(ctx, id, record(id, "first")); err != nil {
		t.Fatalf("first write: %v", err)
	}
	if err := p.Write(ctx, id, record(id, "second")); err != nil {
		t.Fatalf("second write: %v", err)
	}

	recs, err := p.loadAll(ctx)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(recs) != 1 {
		t.Fatalf("upsert duplicated: %d rows", len(recs))
	}
	if recs[0].Note != "second" {
		t.Fatalf("last write should win, got %q", recs[0].Note)
	}
}

func TestProvider_RemoveUnknownIDIsNoError(t *testing.T) {
	p := openTestProvider(t)
	if err := p.Remove(context.Background(), "ghost_404"); err != nil {
		t.Fatalf("removing unknown id: %v", err)
	}
}

func TestProvider_EchoesMutationsToSubscriber(t *testing.T) {
	p := openTestProvider(t)
	ctx := context.Background()

	var deliveries int
	var last []commission.Record
	cancel, err := p.Subscribe(ctx, func(recs []commission.Record) {
		deliveries++
		last = recs
	}, nil)
	if err != nil {
		t.Fatalf("subscribe: %v", err)
	}
	defer cancel()

	if deliveries != 1 {
		t.Fatalf("expected immediate initial snapshot, got %d deliveries", deliveries)
	}

	id := "main-artist_REQ-0001"
	if err := p.Write(ctx, id, record(id, "x")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if deliveries != 2 || len(last) != 1 {
		t.Fatalf("write not echoed: %d deliveries, %d records", deliveries, len(last))
	}

	if err := p.Remove(ctx, id); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if deliveries != 3 || len(last) != 0 {
		t.Fatalf("remove not echoed: %d deliveries, %d records", deliveries, len(last))
	}
}

func TestProvider_DurableAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	p, err := Open(dir, "commission-tracker-test")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	id := "main-artist_REQ-0001"
	if err := p.Write(ctx, id, record(id, "durable")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := p.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(dir, "commission-tracker-test")
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer reopened.Close()

	recs, err := reopened.loadAll(ctx)
	if err != nil {
		t.Fatalf("load after reopen: %v", err)
	}
	if len(recs) != 1 || recs[0].Note != "durable" {
		t.Fatalf("data did not survive reopen: %+v", recs)
	}
}
