package duplicatefinder_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/familyvault/familyvault-core/internal/duplicatefinder"
	"github.com/familyvault/familyvault-core/internal/store"
)

func seed(t *testing.T) *store.DB {
	t.Helper()
	db, err := store.Open(filepath.Join(t.TempDir(), "index.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })

	ctx := context.Background()
	res, err := db.Execute(ctx, `INSERT INTO folders(path, name, enabled, default_visibility) VALUES ('/vault', 'vault', 1, 'private')`)
	if err != nil {
		t.Fatal(err)
	}
	folderID, _ := store.LastInsertID(res)

	insert := func(rel string, size int64, checksum string, isRemote int, sourceDevice string) int64 {
		var res sql.Result
		var err error
		if isRemote == 1 {
			res, err = db.Execute(ctx, `INSERT INTO files(folder_id, relative_path, name, extension, size, mime_type,
				content_type, checksum, created_at, modified_at, indexed_at, is_remote, source_device_id, remote_id, sync_version)
				VALUES (NULL, ?, ?, '.jpg', ?, 'image/jpeg', 'image', ?, 1, 1, 1, 1, ?, ?, 0)`,
				rel, rel, size, checksum, sourceDevice, rel)
		} else {
			res, err = db.Execute(ctx, `INSERT INTO files(folder_id, relative_path, name, extension, size, mime_type,
				content_type, checksum, created_at, modified_at, indexed_at, is_remote, sync_version)
				VALUES (?, ?, ?, '.jpg', ?, 'image/jpeg', 'image', ?, 1, 1, 1, 0, 0)`,
				folderID, rel, rel, size, checksum)
		}
		if err != nil {
			t.Fatal(err)
		}
		id, _ := store.LastInsertID(res)
		return id
	}

	insert("a.jpg", 100, "sum1", 0, "")
	insert("b.jpg", 100, "sum1", 0, "")
	insert("c.jpg", 200, "sum2", 0, "")
	insert("d.jpg", 200, "sum2", 1, "device-2")

	return db
}

func TestFindDuplicatesGroupsByChecksum(t *testing.T) {
	db := seed(t)
	f := duplicatefinder.New(db)
	defer f.Close()

	groups, err := f.FindDuplicates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(groups) != 1 {
		t.Fatalf("expected exactly one duplicate group (sum1 has 2 local copies), got %d: %+v", len(groups), groups)
	}
	g := groups[0]
	if g.Checksum != "sum1" || g.Copies != 2 {
		t.Fatalf("unexpected group: %+v", g)
	}
	if g.PotentialSavings != 100 {
		t.Fatalf("expected potential savings 100, got %d", g.PotentialSavings)
	}
}

func TestFilesWithoutBackupExcludesRemoteBackedChecksum(t *testing.T) {
	db := seed(t)
	f := duplicatefinder.New(db)
	defer f.Close()

	files, err := f.FilesWithoutBackup(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	for _, file := range files {
		if file.Checksum != nil && *file.Checksum == "sum2" {
			t.Fatalf("sum2 has a remote backup and should be excluded: %+v", file)
		}
	}
}

func TestKeepOnlyOneDeletesOtherCopies(t *testing.T) {
	db := seed(t)
	f := duplicatefinder.New(db)
	defer f.Close()

	groups, err := f.FindDuplicates(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	g := groups[0]
	keep := g.FileIDs[0]

	if err := f.KeepOnlyOne(context.Background(), g.Checksum, keep, nil); err != nil {
		t.Fatal(err)
	}

	count, err := store.QueryScalar[int64](context.Background(), db, `SELECT COUNT(*) FROM files WHERE checksum = ?`, g.Checksum)
	if err != nil {
		t.Fatal(err)
	}
	if count != 1 {
		t.Fatalf("expected 1 remaining row for checksum %s, got %d", g.Checksum, count)
	}
}
