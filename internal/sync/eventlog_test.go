package syncx

import (
	"context"
	"testing"

	"github.com/mind-engage/quiztab/internal/db"
)

func TestAppendAndSince(t *testing.T) {
	ctx := context.Background()
	conn, err := db.Open(ctx, db.DriverSQLite, "file:eventlog_test?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer conn.Close()

	repo := NewEventRepo(conn, "")
	for _, key := range []string{"pack_1", "att_1"} {
		e, err := NewEvent(TypePackImported, key, map[string]string{"id": key})
		if err != nil {
			t.Fatalf("event: %v", err)
		}
		if err := repo.Append(ctx, e); err != nil {
			t.Fatalf("append: %v", err)
		}
	}

	all, err := repo.Since(ctx, 0, 10)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(all) != 2 || all[0].Key != "pack_1" || all[0].SiteID != "local" {
		t.Fatalf("unexpected events: %+v", all)
	}
	rest, err := repo.Since(ctx, all[0].Seq, 10)
	if err != nil {
		t.Fatalf("since: %v", err)
	}
	if len(rest) != 1 || rest[0].Key != "att_1" || rest[0].DataJSON != `{"id":"att_1"}` {
		t.Fatalf("unexpected tail: %+v", rest)
	}
}
